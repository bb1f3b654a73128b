package quorum

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSet"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatures"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type walletChecker struct {
	wallet   common.Address
	accepted []byte
}

func (w *walletChecker) IsContract(_ context.Context, addr common.Address) (bool, error) {
	return addr == w.wallet, nil
}

func (w *walletChecker) IsValidSignature(_ context.Context, signer common.Address, _ common.Hash, signature []byte) (bool, error) {
	return signer == w.wallet && bytes.Equal(signature, w.accepted), nil
}

type fixture struct {
	checker  *Checker
	owners   *ownerSet.OwnerSet
	keys     map[string]*ecdsa.PrivateKey
	outsider *ecdsa.PrivateKey
	wallet   common.Address
	actual   common.Hash
	minimal  common.Hash
}

func newFixture(t *testing.T) *fixture {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	f := &fixture{
		keys:    map[string]*ecdsa.PrivateKey{},
		wallet:  common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		actual:  crypto.Keccak256Hash([]byte("actual")),
		minimal: crypto.Keccak256Hash([]byte("minimal")),
	}
	for _, name := range []string{"A", "B", "C"} {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		f.keys[name] = key
	}
	f.outsider, err = crypto.GenerateKey()
	require.NoError(t, err)

	f.owners = ownerSet.New(0)
	require.NoError(t, f.owners.Add([]types.Owner{
		{Address: f.addr("A"), Weight: 2},
		{Address: f.addr("B"), Weight: 1},
		{Address: f.addr("C"), Weight: 1},
		{Address: f.wallet, Weight: 1},
	}))

	verifier := signatureVerifier.NewSignatureVerifier(&walletChecker{wallet: f.wallet, accepted: []byte("wallet-ok")}, l)
	f.checker = NewChecker(verifier, l)
	return f
}

func (f *fixture) addr(name string) common.Address {
	return crypto.PubkeyToAddress(f.keys[name].PublicKey)
}

func signWith(t *testing.T, key *ecdsa.PrivateKey, digest common.Hash) signatures.SlotInput {
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	return signatures.SlotInput{Kind: signatures.KindECDSA, Signature: sig}
}

func ethSignWith(t *testing.T, key *ecdsa.PrivateKey, digest common.Hash) signatures.SlotInput {
	sig, err := crypto.Sign(accounts.TextHash(digest.Bytes()), key)
	require.NoError(t, err)
	return signatures.SlotInput{Kind: signatures.KindEthSign, Signature: sig}
}

func Test_Checker(t *testing.T) {
	ctx := context.Background()
	const threshold = 3

	t.Run("Should reach quorum with the submitter on the actual digest", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["A"], f.actual),
			signWith(t, f.keys["B"], f.minimal),
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, uint64(3), res.Weight)
		assert.Equal(t, []common.Address{f.addr("A"), f.addr("B")}, res.Signers)
	})

	t.Run("Should report insufficient weight at the last index", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["B"], f.actual),
			signWith(t, f.keys["C"], f.minimal),
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.FirstFailure)
		assert.Equal(t, FailureInsufficientWeight, res.Reason)
		assert.Equal(t, uint64(2), res.Weight)
	})

	t.Run("Should fail a submitter slot signed over the minimal digest", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["A"], f.minimal),
			signWith(t, f.keys["B"], f.minimal),
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 0, res.FirstFailure)
		assert.Equal(t, FailureUnknownSigner, res.Reason)
	})

	t.Run("Should fail co-signer slots signed over the actual digest", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["A"], f.actual),
			signWith(t, f.keys["B"], f.actual),
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.FirstFailure)
	})

	t.Run("Should reject a repeated signer", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["A"], f.actual),
			signWith(t, f.keys["A"], f.minimal),
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, 2, blob)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.FirstFailure)
		assert.Equal(t, FailureDuplicateSigner, res.Reason)
	})

	t.Run("Should record the first failure and keep scanning", func(t *testing.T) {
		f := newFixture(t)
		unknown := signWith(t, f.keys["C"], f.minimal)
		unknown.Kind = signatures.KindUnknown
		unknown.Signature[64] = 40

		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["A"], f.actual),
			signWith(t, f.outsider, f.minimal),
			unknown,
			signWith(t, f.keys["B"], f.minimal),
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.FirstFailure)
		assert.Equal(t, FailureUnknownSigner, res.Reason)
		assert.Equal(t, uint64(3), res.Weight)
	})

	t.Run("Should accept eth_sign and contract slots", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["B"], f.actual),
			ethSignWith(t, f.keys["C"], f.minimal),
			{Kind: signatures.KindContract, Signer: f.wallet, Signature: []byte("wallet-ok")},
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, uint64(3), res.Weight)
	})

	t.Run("Should fail a rejected contract signature", func(t *testing.T) {
		f := newFixture(t)
		blob := signatures.Encode([]signatures.SlotInput{
			signWith(t, f.keys["A"], f.actual),
			{Kind: signatures.KindContract, Signer: f.wallet, Signature: []byte("forged")},
		})

		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, res.FirstFailure)
		assert.Equal(t, FailureInvalidSignature, res.Reason)
	})

	t.Run("Should return an empty result for an empty blob", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 0, res.FirstFailure)
		assert.Equal(t, FailureEmpty, res.Reason)
	})

	t.Run("Should abort on a malformed blob", func(t *testing.T) {
		f := newFixture(t)
		blob := append(signatures.Encode([]signatures.SlotInput{signWith(t, f.keys["A"], f.actual)}), 0x01)

		_, err := f.checker.Check(ctx, f.actual, f.minimal, f.owners, threshold, blob)
		assert.ErrorIs(t, err, types.ErrInvalidSignatureLength)
	})
}
