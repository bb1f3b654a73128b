package quorum

import (
	"context"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatures"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// FailureReason explains why a quorum check did not pass.
type FailureReason string

const (
	FailureNone               FailureReason = ""
	FailureEmpty              FailureReason = "empty"
	FailureInvalidSignature   FailureReason = "invalid_signature"
	FailureUnknownSigner      FailureReason = "unknown_signer"
	FailureDuplicateSigner    FailureReason = "duplicate_signer"
	FailureUnsupportedKind    FailureReason = "unsupported_kind"
	FailureInsufficientWeight FailureReason = "insufficient_weight"
)

// OwnerView is the read side of an owner set.
type OwnerView interface {
	WeightOf(addr common.Address) (uint64, bool)
}

// Result of one quorum check. FirstFailure is the index of the first failing slot, or of the
// last slot scanned when every slot verified but the weight fell short.
type Result struct {
	Success      bool             `json:"success"`
	FirstFailure int              `json:"firstFailure"`
	Reason       FailureReason    `json:"reason,omitempty"`
	Weight       uint64           `json:"weight"`
	Signers      []common.Address `json:"signers"`
}

type Checker struct {
	verifier signatureVerifier.ISignatureVerifier
	logger   *zap.Logger
}

func NewChecker(verifier signatureVerifier.ISignatureVerifier, logger *zap.Logger) *Checker {
	return &Checker{
		verifier: verifier,
		logger:   logger,
	}
}

// Check verifies every slot of blob. Slot 0 belongs to the submitting owner and is checked
// against actual; the remaining slots against minimal. Decode errors abort the check and are
// returned; signature failures only shape the Result.
func (c *Checker) Check(
	ctx context.Context,
	actual common.Hash,
	minimal common.Hash,
	owners OwnerView,
	threshold uint64,
	blob []byte,
) (*Result, error) {
	if len(blob) == 0 {
		return &Result{Success: false, FirstFailure: 0, Reason: FailureEmpty}, nil
	}

	slots, err := signatures.Decode(blob)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return &Result{Success: false, FirstFailure: 0, Reason: FailureEmpty}, nil
	}

	res := &Result{FirstFailure: -1, Signers: make([]common.Address, 0, len(slots))}
	seen := make(map[common.Address]struct{}, len(slots))
	fail := func(index int, reason FailureReason) {
		if res.FirstFailure < 0 {
			res.FirstFailure = index
			res.Reason = reason
		}
	}

	for _, slot := range slots {
		digest := minimal
		if slot.Index == 0 {
			digest = actual
		}

		signer, reason, err := c.verifySlot(ctx, slot, digest)
		if err != nil {
			return nil, err
		}
		if reason != FailureNone {
			c.logger.Sugar().Debugw("Quorum slot failed", "index", slot.Index, "kind", slot.Kind.String(), "reason", reason)
			fail(slot.Index, reason)
			continue
		}

		if _, dup := seen[signer]; dup {
			fail(slot.Index, FailureDuplicateSigner)
			continue
		}
		weight, ok := owners.WeightOf(signer)
		if !ok {
			fail(slot.Index, FailureUnknownSigner)
			continue
		}
		seen[signer] = struct{}{}
		res.Signers = append(res.Signers, signer)
		res.Weight += weight
	}

	if res.FirstFailure >= 0 {
		return res, nil
	}
	if res.Weight < threshold || threshold == 0 {
		res.FirstFailure = len(slots) - 1
		res.Reason = FailureInsufficientWeight
		return res, nil
	}
	res.Success = true
	res.FirstFailure = 0
	return res, nil
}

func (c *Checker) verifySlot(ctx context.Context, slot signatures.Slot, digest common.Hash) (common.Address, FailureReason, error) {
	switch slot.Kind {
	case signatures.KindECDSA:
		signer, err := c.verifier.RecoverSigner(digest, slot.Signature)
		if err != nil {
			return common.Address{}, FailureInvalidSignature, nil
		}
		return signer, FailureNone, nil
	case signatures.KindEthSign:
		signer, err := c.verifier.RecoverSigner(common.BytesToHash(accounts.TextHash(digest.Bytes())), slot.Signature)
		if err != nil {
			return common.Address{}, FailureInvalidSignature, nil
		}
		return signer, FailureNone, nil
	case signatures.KindContract:
		ok, err := c.verifier.IsValidContractSignature(ctx, slot.Signer, digest, slot.Signature)
		if err != nil {
			return common.Address{}, FailureNone, err
		}
		if !ok {
			return common.Address{}, FailureInvalidSignature, nil
		}
		return slot.Signer, FailureNone, nil
	default:
		return common.Address{}, FailureUnsupportedKind, nil
	}
}
