package awsKmsOwnerSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSigner"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSClient is the subset of the AWS KMS API the signer calls.
type KMSClient interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// AWSKMSOwnerSigner signs owner digests with an ECC_SECG_P256K1 key held in AWS KMS.
type AWSKMSOwnerSigner struct {
	logger    *zap.Logger
	kmsClient KMSClient
	keyId     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
}

var _ ownerSigner.IOwnerSigner = (*AWSKMSOwnerSigner)(nil)

func NewAWSKMSOwnerSignerFromConfig(ctx context.Context, awsCfg aws.Config, keyId string, logger *zap.Logger) (*AWSKMSOwnerSigner, error) {
	return NewAWSKMSOwnerSigner(ctx, kms.NewFromConfig(awsCfg), keyId, logger)
}

// NewAWSKMSOwnerSigner fetches the key's public half once to derive the owner address.
func NewAWSKMSOwnerSigner(ctx context.Context, client KMSClient, keyId string, logger *zap.Logger) (*AWSKMSOwnerSigner, error) {
	if keyId == "" {
		return nil, errors.New("kms key id is required")
	}
	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}
	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}
	address := crypto.PubkeyToAddress(*pub)

	logger.Sugar().Infow("Loaded KMS owner key", "keyId", keyId, "address", address.Hex())
	return &AWSKMSOwnerSigner{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
		publicKey: pub,
		address:   address,
	}, nil
}

func (a *AWSKMSOwnerSigner) Address() common.Address {
	return a.address
}

// SignDigest asks KMS for a DER signature over digest, canonicalises s to the lower half of
// the curve order and finds the recovery id that yields this key.
func (a *AWSKMSOwnerSigner) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	out, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest.Bytes(),
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "kms sign failed for key %s", a.keyId)
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(out.Signature, &sigAsn1); err != nil {
		return nil, errors.Wrap(err, "failed to parse kms signature")
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	sig := make([]byte, 65)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])
	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		sig[64] = recoveryId
		recovered, err := crypto.SigToPub(digest.Bytes(), sig)
		if err != nil {
			a.logger.Sugar().Debugw("Recovery failed", "recoveryId", recoveryId, "error", err)
			continue
		}
		if recovered.X.Cmp(a.publicKey.X) == 0 && recovered.Y.Cmp(a.publicKey.Y) == 0 {
			return ownerSigner.NormalizeV(sig), nil
		}
	}
	return nil, fmt.Errorf("could not determine recovery id for key %s", a.keyId)
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var pub asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &pub); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(pub.PublicKey.Bytes)
}
