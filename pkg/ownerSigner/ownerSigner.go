package ownerSigner

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatures"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// IOwnerSigner produces owner signatures over 32-byte digests. Signatures are r ‖ s ‖ v with
// v in {27, 28}.
type IOwnerSigner interface {
	Address() common.Address
	SignDigest(ctx context.Context, digest common.Hash) ([]byte, error)
}

// SignSlot signs digest for a multisig slot of the given kind. KindEthSign signs the EIP-191
// wrapped digest; the encoder shifts v when packing.
func SignSlot(ctx context.Context, signer IOwnerSigner, kind signatures.Kind, digest common.Hash) (signatures.SlotInput, error) {
	var toSign common.Hash
	switch kind {
	case signatures.KindECDSA:
		toSign = digest
	case signatures.KindEthSign:
		toSign = common.BytesToHash(accounts.TextHash(digest.Bytes()))
	default:
		return signatures.SlotInput{}, fmt.Errorf("owner signers cannot produce %s slots", kind)
	}

	sig, err := signer.SignDigest(ctx, toSign)
	if err != nil {
		return signatures.SlotInput{}, fmt.Errorf("failed to sign digest with %s: %w", signer.Address().Hex(), err)
	}
	return signatures.SlotInput{Kind: kind, Signer: signer.Address(), Signature: sig}, nil
}

// NormalizeV rewrites a recovery id in {0, 1} to {27, 28} in place.
func NormalizeV(sig []byte) []byte {
	if len(sig) == signatures.SlotLength && sig[64] < 27 {
		sig[64] += 27
	}
	return sig
}
