package signatureVerifier

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

type fakeContractChecker struct {
	contracts map[common.Address]bool
	accept    map[common.Address][]byte
	err       error
}

func (f *fakeContractChecker) IsContract(_ context.Context, addr common.Address) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.contracts[addr], nil
}

func (f *fakeContractChecker) IsValidSignature(_ context.Context, signer common.Address, _ common.Hash, signature []byte) (bool, error) {
	want, ok := f.accept[signer]
	return ok && string(want) == string(signature), nil
}

func sign(t *testing.T, key *ecdsa.PrivateKey, digest common.Hash) []byte {
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	sig[64] += 27
	return sig
}

func newVerifier(t *testing.T, contracts IContractSignatureChecker) *SignatureVerifier {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	return NewSignatureVerifier(contracts, l)
}

func Test_SignatureVerifier(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)
	digest := crypto.Keccak256Hash([]byte("digest"))
	ctx := context.Background()

	t.Run("Should recover the ECDSA signer", func(t *testing.T) {
		sv := newVerifier(t, nil)
		sig := sign(t, key, digest)

		recovered, err := sv.RecoverSigner(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, signer, recovered)

		ok, err := sv.IsValidSignatureNow(ctx, signer, digest, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should accept recovery ids 0 and 1", func(t *testing.T) {
		sig := sign(t, key, digest)
		sig[64] -= 27
		recovered, err := RecoverSigner(digest, sig)
		require.NoError(t, err)
		assert.Equal(t, signer, recovered)
	})

	t.Run("Should reject a signature for another digest or signer", func(t *testing.T) {
		sv := newVerifier(t, nil)
		sig := sign(t, key, digest)

		ok, err := sv.IsValidSignatureNow(ctx, signer, crypto.Keccak256Hash([]byte("other")), sig)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = sv.IsValidSignatureNow(ctx, common.HexToAddress("0x01"), digest, sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should reject a signature with a corrupted r or s byte", func(t *testing.T) {
		sv := newVerifier(t, nil)
		sig := sign(t, key, digest)
		for _, index := range []int{0, 15, 31, 32, 48, 63} {
			corrupted := append([]byte{}, sig...)
			corrupted[index] ^= 0xff

			ok, err := sv.IsValidSignatureNow(ctx, signer, digest, corrupted)
			require.NoError(t, err)
			assert.False(t, ok, "byte %d", index)
		}
	})

	t.Run("Should reject the zero signer", func(t *testing.T) {
		sv := newVerifier(t, nil)
		ok, err := sv.IsValidSignatureNow(ctx, common.Address{}, digest, sign(t, key, digest))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should reject malleable high-s signatures", func(t *testing.T) {
		sig := sign(t, key, digest)
		s := new(big.Int).SetBytes(sig[32:64])
		highS := new(big.Int).Sub(secp256k1N, s)

		malleated := make([]byte, 65)
		copy(malleated, sig[:32])
		copy(malleated[32:64], common.LeftPadBytes(highS.Bytes(), 32))
		malleated[64] = 27 + (1 - (sig[64] - 27))

		_, err := RecoverSigner(digest, malleated)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
	})

	t.Run("Should reject signatures of the wrong length", func(t *testing.T) {
		_, err := RecoverSigner(digest, make([]byte, 64))
		assert.ErrorIs(t, err, types.ErrInvalidSignatureLength)

		sv := newVerifier(t, nil)
		ok, err := sv.IsValidSignatureNow(ctx, signer, digest, make([]byte, 64))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should delegate contract signers to ERC-1271", func(t *testing.T) {
		wallet := common.HexToAddress("0x00000000000000000000000000000000000000c1")
		checker := &fakeContractChecker{
			contracts: map[common.Address]bool{wallet: true},
			accept:    map[common.Address][]byte{wallet: []byte("ok")},
		}
		sv := newVerifier(t, checker)

		ok, err := sv.IsValidSignatureNow(ctx, wallet, digest, []byte("ok"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = sv.IsValidSignatureNow(ctx, wallet, digest, []byte("nope"))
		require.NoError(t, err)
		assert.False(t, ok)

		// EOAs still go through recovery when a checker is configured.
		ok, err = sv.IsValidSignatureNow(ctx, signer, digest, sign(t, key, digest))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should surface code lookup failures", func(t *testing.T) {
		sv := newVerifier(t, &fakeContractChecker{err: errors.New("rpc down")})
		_, err := sv.IsValidSignatureNow(ctx, signer, digest, sign(t, key, digest))
		assert.Error(t, err)
	})

	t.Run("Should reject contract signatures without a checker", func(t *testing.T) {
		sv := newVerifier(t, nil)
		ok, err := sv.IsValidContractSignature(ctx, signer, digest, []byte("ok"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
