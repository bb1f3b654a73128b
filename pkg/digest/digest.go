// Package digest computes the two user-operation digests a multisig quorum is checked against.
//
// The actual digest covers every field of the operation and is what the submitting owner signs.
// The minimal digest zeroes the gas and fee fields and drops the paymaster, so co-signers can
// approve an operation before the bundler settles its fees.
package digest

import (
	"math/big"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Digests holds both digests of one operation.
type Digests struct {
	Actual  common.Hash `json:"actual"`
	Minimal common.Hash `json:"minimal"`
}

var (
	// sender, nonce, initCode hash, callData hash, five gas/fee words, paymasterAndData hash
	packedOpArgs = util.Arguments(
		"address", "uint256", "bytes32", "bytes32",
		"uint256", "uint256", "uint256", "uint256", "uint256",
		"bytes32",
	)

	boundDigestArgs = util.Arguments("bytes32", "address", "uint256")

	emptyHash = crypto.Keccak256Hash(nil)
)

// Compute returns the actual and minimal digests of op bound to entryPoint and chainId.
// ErrInvalidDigest is returned when the two coincide, since a co-signer approval would then
// also authorize the fee-bearing form.
func Compute(op *types.UserOperation, entryPoint common.Address, chainId *big.Int) (*Digests, error) {
	actual, err := ActualDigest(op, entryPoint, chainId)
	if err != nil {
		return nil, err
	}
	minimal, err := MinimalDigest(op, entryPoint, chainId)
	if err != nil {
		return nil, err
	}
	if actual == minimal {
		return nil, types.ErrInvalidDigest
	}
	return &Digests{Actual: actual, Minimal: minimal}, nil
}

// ActualDigest is the ERC-4337 v0.6 userOpHash.
func ActualDigest(op *types.UserOperation, entryPoint common.Address, chainId *big.Int) (common.Hash, error) {
	if op == nil {
		return common.Hash{}, errors.New("user operation is nil")
	}
	inner, err := packOp(op,
		types.BigOrZero(op.CallGasLimit),
		types.BigOrZero(op.VerificationGasLimit),
		types.BigOrZero(op.PreVerificationGas),
		types.BigOrZero(op.MaxFeePerGas),
		types.BigOrZero(op.MaxPriorityFeePerGas),
		crypto.Keccak256Hash(op.PaymasterAndData),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return bind(inner, entryPoint, chainId)
}

// MinimalDigest is the userOpHash of op with all gas and fee fields zeroed and no paymaster.
func MinimalDigest(op *types.UserOperation, entryPoint common.Address, chainId *big.Int) (common.Hash, error) {
	if op == nil {
		return common.Hash{}, errors.New("user operation is nil")
	}
	zero := new(big.Int)
	inner, err := packOp(op, zero, zero, zero, zero, zero, emptyHash)
	if err != nil {
		return common.Hash{}, err
	}
	return bind(inner, entryPoint, chainId)
}

func packOp(op *types.UserOperation, callGas, verificationGas, preVerificationGas, maxFee, maxPriorityFee *big.Int, paymasterHash common.Hash) (common.Hash, error) {
	packed, err := packedOpArgs.Pack(
		op.Sender,
		types.BigOrZero(op.Nonce),
		crypto.Keccak256Hash(op.InitCode),
		crypto.Keccak256Hash(op.CallData),
		callGas,
		verificationGas,
		preVerificationGas,
		maxFee,
		maxPriorityFee,
		paymasterHash,
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to pack user operation")
	}
	return crypto.Keccak256Hash(packed), nil
}

func bind(inner common.Hash, entryPoint common.Address, chainId *big.Int) (common.Hash, error) {
	packed, err := boundDigestArgs.Pack(inner, entryPoint, types.BigOrZero(chainId))
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to bind digest to entry point")
	}
	return crypto.Keccak256Hash(packed), nil
}
