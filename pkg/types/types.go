package types

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EntityId scopes one independent validation configuration within a single account.
type EntityId uint32

// ValidationData is the packed ERC-4337 validation result returned from userOp validation.
// Only the signature-failure bit is produced by these modules.
type ValidationData uint64

const (
	SigValidationPassed ValidationData = 0
	SigValidationFailed ValidationData = 1
)

// ERC-1271 return values.
var (
	ERC1271MagicValue   = [4]byte{0x16, 0x26, 0xba, 0x7e}
	ERC1271InvalidValue = [4]byte{0xff, 0xff, 0xff, 0xff}
)

// UserOperation is an ERC-4337 (entry point v0.6) user operation.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

type userOperationJSON struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// MarshalJSON encodes the operation in the eth_sendUserOperation hex format.
func (op UserOperation) MarshalJSON() ([]byte, error) {
	return json.Marshal(userOperationJSON{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(BigOrZero(op.Nonce)),
		InitCode:             op.InitCode,
		CallData:             op.CallData,
		CallGasLimit:         (*hexutil.Big)(BigOrZero(op.CallGasLimit)),
		VerificationGasLimit: (*hexutil.Big)(BigOrZero(op.VerificationGasLimit)),
		PreVerificationGas:   (*hexutil.Big)(BigOrZero(op.PreVerificationGas)),
		MaxFeePerGas:         (*hexutil.Big)(BigOrZero(op.MaxFeePerGas)),
		MaxPriorityFeePerGas: (*hexutil.Big)(BigOrZero(op.MaxPriorityFeePerGas)),
		PaymasterAndData:     op.PaymasterAndData,
		Signature:            op.Signature,
	})
}

// UnmarshalJSON decodes the eth_sendUserOperation hex format. Missing numeric fields decode as zero.
func (op *UserOperation) UnmarshalJSON(data []byte) error {
	var raw userOperationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	op.Sender = raw.Sender
	op.Nonce = raw.Nonce.ToInt()
	op.InitCode = raw.InitCode
	op.CallData = raw.CallData
	op.CallGasLimit = raw.CallGasLimit.ToInt()
	op.VerificationGasLimit = raw.VerificationGasLimit.ToInt()
	op.PreVerificationGas = raw.PreVerificationGas.ToInt()
	op.MaxFeePerGas = raw.MaxFeePerGas.ToInt()
	op.MaxPriorityFeePerGas = raw.MaxPriorityFeePerGas.ToInt()
	op.PaymasterAndData = raw.PaymasterAndData
	op.Signature = raw.Signature
	return nil
}

// BigOrZero returns v, or a fresh zero when v is nil.
func BigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Owner is a multisig participant and the weight its signature contributes to a quorum.
type Owner struct {
	Address common.Address `json:"address"`
	Weight  uint64         `json:"weight"`
}

// ModuleMetadata is the identity surface reported by every validation module.
type ModuleMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Author  string `json:"author"`
}

// Selector returns the 4-byte function selector for a canonical solidity signature.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// InterfaceId computes an ERC-165 interface id as the XOR of the function selectors.
func InterfaceId(signatures ...string) [4]byte {
	var id [4]byte
	for _, sig := range signatures {
		sel := Selector(sig)
		for i := range id {
			id[i] ^= sel[i]
		}
	}
	return id
}
