package signatureVerifier

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrInvalidSignature covers any ECDSA signature that does not recover to a signer.
var ErrInvalidSignature = errors.New("invalid ecdsa signature")

// IContractSignatureChecker delegates verification to a signer that is itself a contract.
type IContractSignatureChecker interface {
	IsContract(ctx context.Context, addr common.Address) (bool, error)
	IsValidSignature(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error)
}

// ISignatureVerifier answers whether a signature by signer over digest is valid right now.
type ISignatureVerifier interface {
	IsValidSignatureNow(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error)
	IsValidContractSignature(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error)
	RecoverSigner(digest common.Hash, signature []byte) (common.Address, error)
}

type SignatureVerifier struct {
	contracts IContractSignatureChecker
	logger    *zap.Logger
}

// NewSignatureVerifier builds a verifier. contracts may be nil, in which case every signer is
// treated as an externally owned account.
func NewSignatureVerifier(contracts IContractSignatureChecker, logger *zap.Logger) *SignatureVerifier {
	return &SignatureVerifier{
		contracts: contracts,
		logger:    logger,
	}
}

// RecoverSigner recovers the address behind a 65-byte r ‖ s ‖ v signature. High-s signatures
// are rejected.
func (sv *SignatureVerifier) RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	return RecoverSigner(digest, signature)
}

// RecoverSigner is the stateless form of SignatureVerifier.RecoverSigner.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, errors.Wrapf(types.ErrInvalidSignatureLength, "expected 65 bytes, got %d", len(signature))
	}
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, "signature values out of range")
	}

	normalized := make([]byte, 65)
	copy(normalized, signature)
	normalized[64] = v

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// IsValidSignatureNow verifies through ERC-1271 when signer has code, otherwise by ECDSA
// recovery. Malformed or mismatched signatures yield false; only infrastructure failures
// return an error.
func (sv *SignatureVerifier) IsValidSignatureNow(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error) {
	if signer == (common.Address{}) {
		return false, nil
	}
	if sv.contracts != nil {
		isContract, err := sv.contracts.IsContract(ctx, signer)
		if err != nil {
			return false, errors.Wrapf(err, "failed to look up code for %s", signer.Hex())
		}
		if isContract {
			return sv.IsValidContractSignature(ctx, signer, digest, signature)
		}
	}

	recovered, err := RecoverSigner(digest, signature)
	if err != nil {
		sv.logger.Sugar().Debugw("Signature did not recover", "signer", signer.Hex(), "error", err)
		return false, nil
	}
	return recovered == signer, nil
}

// IsValidContractSignature always delegates to the contract checker.
func (sv *SignatureVerifier) IsValidContractSignature(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error) {
	if sv.contracts == nil {
		sv.logger.Sugar().Debugw("No contract checker configured, rejecting contract signature", "signer", signer.Hex())
		return false, nil
	}
	return sv.contracts.IsValidSignature(ctx, signer, digest, signature)
}
