package inMemoryOwnerSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSigner"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type InMemoryOwnerSigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ ownerSigner.IOwnerSigner = (*InMemoryOwnerSigner)(nil)

// NewInMemoryOwnerSignerFromHex loads a secp256k1 key; the hex string may carry a 0x prefix.
func NewInMemoryOwnerSignerFromHex(privateKeyHex string, logger *zap.Logger) (*InMemoryOwnerSigner, error) {
	key, err := ecdsa.NewPrivateKeyFromHexString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemoryOwnerSigner(key, logger)
}

// GenerateInMemoryOwnerSigner creates a signer around a fresh key.
func GenerateInMemoryOwnerSigner(logger *zap.Logger) (*InMemoryOwnerSigner, error) {
	key, _, err := ecdsa.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewInMemoryOwnerSigner(key, logger)
}

func NewInMemoryOwnerSigner(key *ecdsa.PrivateKey, logger *zap.Logger) (*InMemoryOwnerSigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	address, err := key.DeriveAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive Ethereum address from private key: %w", err)
	}
	return &InMemoryOwnerSigner{
		logger:     logger,
		privateKey: key,
		address:    address,
	}, nil
}

func (s *InMemoryOwnerSigner) Address() common.Address {
	return s.address
}

func (s *InMemoryOwnerSigner) SignDigest(_ context.Context, digest common.Hash) ([]byte, error) {
	sig, err := s.privateKey.SignAndPack(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	s.logger.Sugar().Debugw("Signed digest with in-memory owner key",
		"address", s.address.Hex(),
		"digest", digest.Hex(),
	)
	return ownerSigner.NormalizeV(sig), nil
}
