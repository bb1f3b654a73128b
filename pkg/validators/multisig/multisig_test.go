package multisig

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/events"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/quorum"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatures"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	account    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	entryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	wallet     = common.HexToAddress("0x000000000000000000000000000000000000c0de")
)

type owner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newOwner(t *testing.T) owner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return owner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (o owner) sign(t *testing.T, hash common.Hash) signatures.SlotInput {
	sig, err := crypto.Sign(hash.Bytes(), o.key)
	require.NoError(t, err)
	return signatures.SlotInput{Kind: signatures.KindECDSA, Signer: o.addr, Signature: sig}
}

// fakeWallets accepts a contract signature when it equals the digest bytes.
type fakeWallets struct {
	contracts map[common.Address]bool
}

func (f *fakeWallets) IsContract(_ context.Context, addr common.Address) (bool, error) {
	return f.contracts[addr], nil
}

func (f *fakeWallets) IsValidSignature(_ context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error) {
	return f.contracts[signer] && common.BytesToHash(signature) == digest, nil
}

func setup(t *testing.T) (*MultisigValidator, *events.MemorySink) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	verifier := signatureVerifier.NewSignatureVerifier(&fakeWallets{contracts: map[common.Address]bool{wallet: true}}, l)
	sink := events.NewMemorySink()
	v, err := NewMultisigValidator(
		&Config{EntryPoint: entryPoint, ChainId: big.NewInt(1)},
		memory.NewMemoryPersistence(l),
		quorum.NewChecker(verifier, l),
		sink,
		l,
	)
	require.NoError(t, err)
	return v, sink
}

func install(t *testing.T, v *MultisigValidator, entityId types.EntityId, owners []types.Owner, threshold uint64) {
	data, err := EncodeInstallData(&InstallData{EntityId: entityId, Owners: owners, Threshold: threshold})
	require.NoError(t, err)
	require.NoError(t, v.OnInstall(context.Background(), account, data))
}

func newUserOp() *types.UserOperation {
	return &types.UserOperation{
		Sender:               account,
		Nonce:                big.NewInt(7),
		CallData:             []byte{0xde, 0xad, 0xbe, 0xef},
		CallGasLimit:         big.NewInt(100_000),
		VerificationGasLimit: big.NewInt(200_000),
		PreVerificationGas:   big.NewInt(50_000),
		MaxFeePerGas:         big.NewInt(30_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}
}

func Test_MultisigValidator_UserOp(t *testing.T) {
	ctx := context.Background()

	t.Run("Should require the first slot over the actual digest and the rest over the minimal digest", func(t *testing.T) {
		v, _ := setup(t)
		o1, o2, o3 := newOwner(t), newOwner(t), newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}, {Address: o2.addr, Weight: 1}, {Address: o3.addr, Weight: 1}}, 2)

		op := newUserOp()
		d, err := v.Digests(op)
		require.NoError(t, err)

		op.Signature = signatures.Encode([]signatures.SlotInput{o1.sign(t, d.Actual), o2.sign(t, d.Minimal)})
		vd, err := v.ValidateUserOp(ctx, account, 0, op, d.Actual)
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationPassed, vd)

		op.Signature = signatures.Encode([]signatures.SlotInput{o2.sign(t, d.Minimal), o1.sign(t, d.Actual)})
		vd, err = v.ValidateUserOp(ctx, account, 0, op, d.Actual)
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationFailed, vd)
	})

	t.Run("Should accept a zero user operation hash and reject a mismatched one", func(t *testing.T) {
		v, _ := setup(t)
		o1, o2 := newOwner(t), newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}, {Address: o2.addr, Weight: 1}}, 2)

		op := newUserOp()
		d, err := v.Digests(op)
		require.NoError(t, err)
		op.Signature = signatures.Encode([]signatures.SlotInput{o1.sign(t, d.Actual), o2.sign(t, d.Minimal)})

		vd, err := v.ValidateUserOp(ctx, account, 0, op, common.Hash{})
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationPassed, vd)

		vd, err = v.ValidateUserOp(ctx, account, 0, op, crypto.Keccak256Hash([]byte("other")))
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationFailed, vd)
	})

	t.Run("Should abort when actual and minimal digests coincide", func(t *testing.T) {
		v, _ := setup(t)
		o1 := newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}}, 1)

		op := &types.UserOperation{Sender: account, Nonce: big.NewInt(1)}
		_, err := v.ValidateUserOp(ctx, account, 0, op, common.Hash{})
		require.ErrorIs(t, err, types.ErrInvalidDigest)
	})

	t.Run("Should count weights and contract owners toward the threshold", func(t *testing.T) {
		v, _ := setup(t)
		a, b, c := newOwner(t), newOwner(t), newOwner(t)
		install(t, v, 3, []types.Owner{
			{Address: a.addr, Weight: 2},
			{Address: b.addr, Weight: 1},
			{Address: c.addr, Weight: 1},
			{Address: wallet, Weight: 1},
		}, 3)

		op := newUserOp()
		d, err := v.Digests(op)
		require.NoError(t, err)

		op.Signature = signatures.Encode([]signatures.SlotInput{a.sign(t, d.Actual), b.sign(t, d.Minimal)})
		vd, err := v.ValidateUserOp(ctx, account, 3, op, d.Actual)
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationPassed, vd)

		op.Signature = signatures.Encode([]signatures.SlotInput{b.sign(t, d.Actual), c.sign(t, d.Minimal)})
		res, err := v.CheckSignatures(ctx, account, 3, d.Actual, d.Minimal, op.Signature)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, quorum.FailureInsufficientWeight, res.Reason)
		assert.Equal(t, 1, res.FirstFailure)

		op.Signature = signatures.Encode([]signatures.SlotInput{
			b.sign(t, d.Actual),
			c.sign(t, d.Minimal),
			{Kind: signatures.KindContract, Signer: wallet, Signature: d.Minimal.Bytes()},
		})
		vd, err = v.ValidateUserOp(ctx, account, 3, op, d.Actual)
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationPassed, vd)
	})

	t.Run("Should fail for an entity that is not installed", func(t *testing.T) {
		v, _ := setup(t)
		op := newUserOp()
		op.Signature = make([]byte, signatures.SlotLength)
		vd, err := v.ValidateUserOp(ctx, account, 9, op, common.Hash{})
		require.NoError(t, err)
		assert.Equal(t, types.SigValidationFailed, vd)
	})

	t.Run("Should reject the same owner signing twice", func(t *testing.T) {
		v, _ := setup(t)
		o1, o2 := newOwner(t), newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}, {Address: o2.addr, Weight: 1}}, 2)

		op := newUserOp()
		d, err := v.Digests(op)
		require.NoError(t, err)
		op.Signature = signatures.Encode([]signatures.SlotInput{o1.sign(t, d.Actual), o1.sign(t, d.Minimal)})

		res, err := v.CheckSignatures(ctx, account, 0, d.Actual, d.Minimal, op.Signature)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, quorum.FailureDuplicateSigner, res.Reason)
		assert.Equal(t, 1, res.FirstFailure)
	})
}

func Test_MultisigValidator_Ownership(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject invalid install data", func(t *testing.T) {
		v, _ := setup(t)
		o1 := newOwner(t)

		err := v.OnInstall(ctx, account, []byte{0x01})
		require.ErrorIs(t, err, types.ErrInvalidInstallData)

		data, err := EncodeInstallData(&InstallData{Owners: []types.Owner{{Address: o1.addr, Weight: 1}}, Threshold: 2})
		require.NoError(t, err)
		require.ErrorIs(t, v.OnInstall(ctx, account, data), types.ErrInvalidThreshold)

		data, err = EncodeInstallData(&InstallData{Owners: []types.Owner{{Address: o1.addr, Weight: 1}}, Threshold: 0})
		require.NoError(t, err)
		require.ErrorIs(t, v.OnInstall(ctx, account, data), types.ErrInvalidThreshold)

		data, err = EncodeInstallData(&InstallData{Owners: []types.Owner{}, Threshold: 1})
		require.NoError(t, err)
		require.ErrorIs(t, v.OnInstall(ctx, account, data), types.ErrZeroOwnersInputNotAllowed)

		data, err = installArgs.Pack(uint32(0), []common.Address{o1.addr}, []*big.Int{}, big.NewInt(1))
		require.NoError(t, err)
		require.ErrorIs(t, v.OnInstall(ctx, account, data), types.ErrInvalidInstallData)

		owners, threshold, err := v.OwnershipInfoOf(ctx, account, 0)
		require.NoError(t, err)
		assert.Empty(t, owners)
		assert.Zero(t, threshold)
	})

	t.Run("Should refuse to install twice", func(t *testing.T) {
		v, _ := setup(t)
		o1 := newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}}, 1)

		data, err := EncodeInstallData(&InstallData{Owners: []types.Owner{{Address: o1.addr, Weight: 1}}, Threshold: 1})
		require.NoError(t, err)
		require.ErrorIs(t, v.OnInstall(ctx, account, data), types.ErrInvalidInstallData)
	})

	t.Run("Should update owners and threshold atomically", func(t *testing.T) {
		v, sink := setup(t)
		o1, o2, o3 := newOwner(t), newOwner(t), newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}, {Address: o2.addr, Weight: 1}}, 2)

		err := v.UpdateOwnership(ctx, account, 0, []types.Owner{{Address: o3.addr, Weight: 3}}, []common.Address{o1.addr}, 4)
		require.NoError(t, err)

		owners, threshold, err := v.OwnershipInfoOf(ctx, account, 0)
		require.NoError(t, err)
		assert.Equal(t, []types.Owner{{Address: o2.addr, Weight: 1}, {Address: o3.addr, Weight: 3}}, owners)
		assert.Equal(t, uint64(4), threshold)

		isOwner, err := v.IsOwnerOf(ctx, account, 0, o1.addr)
		require.NoError(t, err)
		assert.False(t, isOwner)

		// threshold above total weight leaves the configuration untouched
		err = v.UpdateOwnership(ctx, account, 0, nil, []common.Address{o3.addr}, 0)
		require.ErrorIs(t, err, types.ErrInvalidThreshold)
		owners, threshold, err = v.OwnershipInfoOf(ctx, account, 0)
		require.NoError(t, err)
		assert.Len(t, owners, 2)
		assert.Equal(t, uint64(4), threshold)

		emitted := sink.Events()
		require.Len(t, emitted, 2)
		update, ok := emitted[1].(*events.OwnershipUpdated)
		require.True(t, ok)
		assert.Equal(t, []common.Address{o1.addr}, update.RemovedOwners)
		assert.Equal(t, uint64(4), update.Threshold)
	})

	t.Run("Should reject removals that empty the set", func(t *testing.T) {
		v, _ := setup(t)
		o1, o2 := newOwner(t), newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}}, 1)

		err := v.UpdateOwnership(ctx, account, 0, nil, []common.Address{o1.addr}, 0)
		require.ErrorIs(t, err, types.ErrEmptyOwnersNotAllowed)

		err = v.UpdateOwnership(ctx, account, 0, []types.Owner{{Address: o2.addr, Weight: 1}}, []common.Address{o1.addr}, 0)
		require.NoError(t, err)

		err = v.UpdateOwnership(ctx, account, 0, nil, []common.Address{o1.addr}, 0)
		require.ErrorIs(t, err, types.ErrOwnerDoesNotExist)
	})

	t.Run("Should reject updates for an entity that is not installed", func(t *testing.T) {
		v, _ := setup(t)
		err := v.UpdateOwnership(ctx, account, 5, nil, nil, 1)
		require.ErrorIs(t, err, types.ErrNotInstalled)
	})

	t.Run("Should clear the configuration on uninstall", func(t *testing.T) {
		v, sink := setup(t)
		o1, o2 := newOwner(t), newOwner(t)
		install(t, v, 2, []types.Owner{{Address: o1.addr, Weight: 1}, {Address: o2.addr, Weight: 1}}, 1)
		installed, err := v.IsInstalled(ctx, account, 2)
		require.NoError(t, err)
		assert.True(t, installed)

		data, err := validators.EncodeUninstallData(2)
		require.NoError(t, err)
		require.NoError(t, v.OnUninstall(ctx, account, data))

		owners, threshold, err := v.OwnershipInfoOf(ctx, account, 2)
		require.NoError(t, err)
		assert.Empty(t, owners)
		assert.Zero(t, threshold)
		installed, err = v.IsInstalled(ctx, account, 2)
		require.NoError(t, err)
		assert.False(t, installed)

		emitted := sink.Events()
		require.Len(t, emitted, 2)
		update, ok := emitted[1].(*events.OwnershipUpdated)
		require.True(t, ok)
		assert.ElementsMatch(t, []common.Address{o1.addr, o2.addr}, update.RemovedOwners)
		assert.Zero(t, update.Threshold)
	})
}

func Test_MultisigValidator_SignatureAndRuntime(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the magic value for a quorum over the replay-safe hash", func(t *testing.T) {
		v, _ := setup(t)
		o1, o2 := newOwner(t), newOwner(t)
		install(t, v, 0, []types.Owner{{Address: o1.addr, Weight: 1}, {Address: o2.addr, Weight: 1}}, 2)

		raw := crypto.Keccak256Hash([]byte("message"))
		hash := v.ReplaySafeHash(account, raw)
		blob := signatures.Encode([]signatures.SlotInput{o1.sign(t, hash), o2.sign(t, hash)})

		magic, err := v.ValidateSignature(ctx, account, 0, common.Address{}, raw, blob)
		require.NoError(t, err)
		assert.Equal(t, types.ERC1271MagicValue, magic)

		other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
		magic, err = v.ValidateSignature(ctx, other, 0, common.Address{}, raw, blob)
		require.NoError(t, err)
		assert.Equal(t, types.ERC1271InvalidValue, magic)

		blob = signatures.Encode([]signatures.SlotInput{o1.sign(t, raw), o2.sign(t, raw)})
		magic, err = v.ValidateSignature(ctx, account, 0, common.Address{}, raw, blob)
		require.NoError(t, err)
		assert.Equal(t, types.ERC1271InvalidValue, magic)
	})

	t.Run("Should only allow the account to call itself at runtime", func(t *testing.T) {
		v, _ := setup(t)
		require.NoError(t, v.ValidateRuntime(ctx, account, 0, account, big.NewInt(0), nil, nil))

		err := v.ValidateRuntime(ctx, account, 0, wallet, big.NewInt(0), nil, nil)
		require.ErrorIs(t, err, types.ErrUnauthorizedCaller)
	})

	t.Run("Should advertise the module interfaces", func(t *testing.T) {
		v, _ := setup(t)
		assert.Equal(t, DefaultName, v.Metadata().Name)
		assert.True(t, v.SupportsInterface(validators.ValidationModuleInterfaceId))
		assert.False(t, v.SupportsInterface([4]byte{0xff, 0xff, 0xff, 0xff}))
	})
}

func Test_InstallData(t *testing.T) {
	t.Run("Should round trip install data", func(t *testing.T) {
		in := &InstallData{
			EntityId:  4,
			Owners:    []types.Owner{{Address: wallet, Weight: 3}, {Address: account, Weight: 1}},
			Threshold: 2,
		}
		data, err := EncodeInstallData(in)
		require.NoError(t, err)
		out, err := DecodeInstallData(data)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("Should reject weights that overflow", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 70)
		data, err := installArgs.Pack(uint32(0), []common.Address{wallet}, []*big.Int{huge}, big.NewInt(1))
		require.NoError(t, err)
		_, err = DecodeInstallData(data)
		require.ErrorIs(t, err, types.ErrInvalidOwner)
	})
}
