package awsKmsOwnerSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS signs with a local key and answers in the DER shapes AWS returns.
type fakeKMS struct {
	key    *cryptoEcdsa.PrivateKey
	highS  bool
	signed int
}

type derSig struct {
	R, S *big.Int
}

func (f *fakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	if params.KeyId == nil || *params.KeyId == "missing" {
		return nil, errors.New("NotFoundException")
	}
	raw := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{
			Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1},
			Parameters: asn1.ObjectIdentifier{1, 3, 132, 0, 10},
		},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: len(raw) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: params.KeyId, PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signed++
	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(derSig{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: params.KeyId, Signature: der}, nil
}

func Test_AWSKMSOwnerSigner(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	ctx := context.Background()
	digest := crypto.Keccak256Hash([]byte("owner digest"))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)

	t.Run("Should derive the owner address from the KMS public key", func(t *testing.T) {
		signer, err := NewAWSKMSOwnerSigner(ctx, &fakeKMS{key: key}, "key-1", l)
		require.NoError(t, err)
		assert.Equal(t, expected, signer.Address())
	})

	t.Run("Should produce signatures that recover to the owner", func(t *testing.T) {
		for _, highS := range []bool{false, true} {
			client := &fakeKMS{key: key, highS: highS}
			signer, err := NewAWSKMSOwnerSigner(ctx, client, "key-1", l)
			require.NoError(t, err)

			sig, err := signer.SignDigest(ctx, digest)
			require.NoError(t, err)
			require.Len(t, sig, 65)
			assert.Contains(t, []byte{27, 28}, sig[64])
			assert.Equal(t, 1, client.signed)

			recovered, err := signatureVerifier.RecoverSigner(digest, sig)
			require.NoError(t, err)
			assert.Equal(t, expected, recovered)
		}
	})

	t.Run("Should fail when the key cannot be loaded", func(t *testing.T) {
		_, err := NewAWSKMSOwnerSigner(ctx, &fakeKMS{key: key}, "missing", l)
		require.Error(t, err)

		_, err = NewAWSKMSOwnerSigner(ctx, &fakeKMS{key: key}, "", l)
		require.Error(t, err)
	})

	t.Run("Should reject a signature from a different key", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)
		client := &fakeKMS{key: key}
		signer, err := NewAWSKMSOwnerSigner(ctx, client, "key-1", l)
		require.NoError(t, err)

		client.key = other
		_, err = signer.SignDigest(ctx, digest)
		require.Error(t, err)
		assert.NotEqual(t, common.Address{}, signer.Address())
	})
}
