package validators

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthorizer(t *testing.T, now time.Time) *MutationAuthorizer {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	a := NewMutationAuthorizer(signatureVerifier.NewSignatureVerifier(nil, l), l)
	a.now = func() time.Time { return now }
	return a
}

func Test_MutationAuthorizer(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	accountKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	accountAddr := crypto.PubkeyToAddress(accountKey.PublicKey)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	mutation := func() *Mutation {
		return &Mutation{
			Operation: MutationTransferSigner,
			Module:    "stub",
			Account:   accountAddr,
			EntityId:  1,
			Payload:   TransferPayload(common.HexToAddress("0xbeef")),
			ExpiresAt: uint64(now.Add(time.Minute).Unix()),
		}
	}
	sign := func(t *testing.T, m *Mutation, module IValidationModule, key []byte) []byte {
		priv, err := crypto.ToECDSA(key)
		require.NoError(t, err)
		sig, err := crypto.Sign(module.ReplaySafeHash(m.Account, m.Digest()).Bytes(), priv)
		require.NoError(t, err)
		sig[64] += 27
		return sig
	}
	accountKeyBytes := crypto.FromECDSA(accountKey)
	otherKeyBytes := crypto.FromECDSA(otherKey)

	t.Run("Should accept the account's own signature", func(t *testing.T) {
		a := newTestAuthorizer(t, now)
		module := &stubModule{}
		m := mutation()
		require.NoError(t, a.Authorize(ctx, module, m, sign(t, m, module, accountKeyBytes)))
		assert.Empty(t, module.calls)
	})

	t.Run("Should accept approval from an installed entity", func(t *testing.T) {
		a := newTestAuthorizer(t, now)
		module := &stubModule{installed: true, magic: types.ERC1271MagicValue}
		m := mutation()
		require.NoError(t, a.Authorize(ctx, module, m, sign(t, m, module, otherKeyBytes)))
		assert.Equal(t, []FunctionKind{FunctionKindSignature}, module.calls)
	})

	rejected := []struct {
		name   string
		module *stubModule
		proof  func(t *testing.T, m *Mutation, module IValidationModule) []byte
		edit   func(m *Mutation)
	}{
		{
			name:   "Should reject a missing authorization",
			module: &stubModule{},
			proof:  func(*testing.T, *Mutation, IValidationModule) []byte { return nil },
		},
		{
			name:   "Should reject a stranger's signature for an entity that is not installed",
			module: &stubModule{magic: types.ERC1271MagicValue},
			proof:  func(t *testing.T, m *Mutation, module IValidationModule) []byte { return sign(t, m, module, otherKeyBytes) },
		},
		{
			name:   "Should reject a signature the installed entity does not accept",
			module: &stubModule{installed: true, magic: types.ERC1271InvalidValue},
			proof:  func(t *testing.T, m *Mutation, module IValidationModule) []byte { return sign(t, m, module, otherKeyBytes) },
		},
		{
			name:   "Should reject an expired authorization",
			module: &stubModule{},
			proof:  func(t *testing.T, m *Mutation, module IValidationModule) []byte { return sign(t, m, module, accountKeyBytes) },
			edit:   func(m *Mutation) { m.ExpiresAt = uint64(now.Unix()) },
		},
		{
			name:   "Should reject an expiry beyond the allowed window",
			module: &stubModule{},
			proof:  func(t *testing.T, m *Mutation, module IValidationModule) []byte { return sign(t, m, module, accountKeyBytes) },
			edit:   func(m *Mutation) { m.ExpiresAt = uint64(now.Add(MaxAuthorizationWindow + time.Minute).Unix()) },
		},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAuthorizer(t, now)
			m := mutation()
			if tc.edit != nil {
				tc.edit(m)
			}
			err := a.Authorize(ctx, tc.module, m, tc.proof(t, m, tc.module))
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrUnauthorizedCaller))
		})
	}

	t.Run("Should reject a signature over a different payload", func(t *testing.T) {
		a := newTestAuthorizer(t, now)
		module := &stubModule{}
		signed := mutation()
		proof := sign(t, signed, module, accountKeyBytes)

		submitted := mutation()
		submitted.Payload = TransferPayload(common.HexToAddress("0xbad"))
		err := a.Authorize(ctx, module, submitted, proof)
		assert.True(t, errors.Is(err, types.ErrUnauthorizedCaller))
	})
}

func Test_MutationDigest(t *testing.T) {
	base := &Mutation{
		Operation: MutationUpdateOwnership,
		Module:    "stub",
		Account:   common.HexToAddress("0xaa"),
		EntityId:  2,
		Payload:   OwnershipPayload([]types.Owner{{Address: common.HexToAddress("0x01"), Weight: 1}}, nil, 1),
		ExpiresAt: 100,
	}
	edits := map[string]func(m *Mutation){
		"operation": func(m *Mutation) { m.Operation = MutationInstall },
		"module":    func(m *Mutation) { m.Module = "other" },
		"account":   func(m *Mutation) { m.Account = common.HexToAddress("0xbb") },
		"entity":    func(m *Mutation) { m.EntityId = 3 },
		"payload":   func(m *Mutation) { m.Payload = OwnershipPayload(nil, []common.Address{common.HexToAddress("0x01")}, 1) },
		"expiry":    func(m *Mutation) { m.ExpiresAt = 101 },
	}
	for field, edit := range edits {
		t.Run("Should commit to the "+field, func(t *testing.T) {
			changed := *base
			edit(&changed)
			assert.NotEqual(t, base.Digest(), changed.Digest())
		})
	}
}
