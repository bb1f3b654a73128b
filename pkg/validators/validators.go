package validators

import (
	"context"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/metrics"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Canonical solidity signatures behind the ERC-165 ids every module reports.
var (
	ERC165Signatures = []string{
		"supportsInterface(bytes4)",
	}
	ModuleSignatures = []string{
		"onInstall(bytes)",
		"onUninstall(bytes)",
		"moduleId()",
	}
	ValidationModuleSignatures = []string{
		"validateUserOp(uint32,(address,uint256,bytes,bytes,uint256,uint256,uint256,uint256,uint256,bytes,bytes),bytes32)",
		"validateRuntime(address,uint32,address,uint256,bytes,bytes)",
		"validateSignature(address,uint32,address,bytes32,bytes)",
	}

	ERC165InterfaceId           = types.InterfaceId(ERC165Signatures...)
	ModuleInterfaceId           = types.InterfaceId(ModuleSignatures...)
	ValidationModuleInterfaceId = types.InterfaceId(ValidationModuleSignatures...)
)

// IValidationModule is implemented by every validation module. Account and entity are always
// explicit; modules hold no implicit per-caller state.
type IValidationModule interface {
	Metadata() types.ModuleMetadata
	SupportsInterface(interfaceId [4]byte) bool

	OnInstall(ctx context.Context, account common.Address, data []byte) error
	OnUninstall(ctx context.Context, account common.Address, data []byte) error
	// IsInstalled reports whether (account, entityId) has a configuration in this module.
	IsInstalled(ctx context.Context, account common.Address, entityId types.EntityId) (bool, error)
	// ReplaySafeHash binds raw to account under the module's EIP-712 domain.
	ReplaySafeHash(account common.Address, raw common.Hash) common.Hash

	// ValidateUserOp returns SigValidationFailed for bad signatures; errors are structural.
	ValidateUserOp(ctx context.Context, account common.Address, entityId types.EntityId, op *types.UserOperation, userOpHash common.Hash) (types.ValidationData, error)
	// ValidateRuntime returns nil when sender may call through the account directly.
	ValidateRuntime(ctx context.Context, account common.Address, entityId types.EntityId, sender common.Address, value *big.Int, data []byte, authorization []byte) error
	// ValidateSignature returns the ERC-1271 magic value or the invalid value.
	ValidateSignature(ctx context.Context, account common.Address, entityId types.EntityId, sender common.Address, digest common.Hash, signature []byte) ([4]byte, error)
}

// SupportsStandardInterfaces reports the ids shared by every validation module.
func SupportsStandardInterfaces(interfaceId [4]byte) bool {
	return interfaceId == ERC165InterfaceId ||
		interfaceId == ModuleInterfaceId ||
		interfaceId == ValidationModuleInterfaceId
}

type FunctionKind int

const (
	FunctionKindUserOp FunctionKind = iota + 1
	FunctionKindRuntime
	FunctionKindSignature
)

func (k FunctionKind) String() string {
	switch k {
	case FunctionKindUserOp:
		return "user_op"
	case FunctionKindRuntime:
		return "runtime"
	case FunctionKindSignature:
		return "signature"
	default:
		return "unknown"
	}
}

// Request is one validation call. Only the fields of its Kind are read.
type Request struct {
	Kind     FunctionKind
	Account  common.Address
	EntityId types.EntityId

	// FunctionKindUserOp
	UserOp     *types.UserOperation
	UserOpHash common.Hash

	// FunctionKindRuntime and FunctionKindSignature
	Sender common.Address

	// FunctionKindRuntime
	Value         *big.Int
	CallData      []byte
	Authorization []byte

	// FunctionKindSignature
	Digest    common.Hash
	Signature []byte
}

// Response carries the result field matching the request kind.
type Response struct {
	Kind           FunctionKind          `json:"-"`
	ValidationData *types.ValidationData `json:"validationData,omitempty"`
	Authorized     *bool                 `json:"authorized,omitempty"`
	MagicValue     *string               `json:"magicValue,omitempty"`
}

// Dispatch routes req to the matching module call and records the outcome. An unauthorized
// runtime caller is a negative Response, not an error.
func Dispatch(ctx context.Context, module IValidationModule, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	name := module.Metadata().Name
	kind := req.Kind.String()
	start := time.Now()
	defer func() {
		metrics.ValidationDuration.WithLabelValues(name, kind).Observe(time.Since(start).Seconds())
	}()

	switch req.Kind {
	case FunctionKindUserOp:
		if req.UserOp == nil {
			return nil, errors.New("user operation is required")
		}
		vd, err := module.ValidateUserOp(ctx, req.Account, req.EntityId, req.UserOp, req.UserOpHash)
		metrics.RecordValidation(name, kind, vd == types.SigValidationPassed, err)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: req.Kind, ValidationData: &vd}, nil

	case FunctionKindRuntime:
		err := module.ValidateRuntime(ctx, req.Account, req.EntityId, req.Sender, req.Value, req.CallData, req.Authorization)
		authorized := err == nil
		if err != nil && !errors.Is(err, types.ErrUnauthorizedCaller) {
			metrics.RecordValidation(name, kind, false, err)
			return nil, err
		}
		metrics.RecordValidation(name, kind, authorized, nil)
		return &Response{Kind: req.Kind, Authorized: &authorized}, nil

	case FunctionKindSignature:
		magic, err := module.ValidateSignature(ctx, req.Account, req.EntityId, req.Sender, req.Digest, req.Signature)
		metrics.RecordValidation(name, kind, magic == types.ERC1271MagicValue, err)
		if err != nil {
			return nil, err
		}
		encoded := "0x" + common.Bytes2Hex(magic[:])
		return &Response{Kind: req.Kind, MagicValue: &encoded}, nil

	default:
		return nil, errors.Wrapf(types.ErrNotImplemented, "function kind %d", req.Kind)
	}
}
