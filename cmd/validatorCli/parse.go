package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatures"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// parseOwner reads "address:weight".
func parseOwner(s string) (types.Owner, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return types.Owner{}, fmt.Errorf("owner %q must be address:weight", s)
	}
	if !common.IsHexAddress(parts[0]) {
		return types.Owner{}, fmt.Errorf("invalid owner address %q", parts[0])
	}
	weight, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return types.Owner{}, fmt.Errorf("invalid weight for %s: %w", parts[0], err)
	}
	return types.Owner{Address: common.HexToAddress(parts[0]), Weight: weight}, nil
}

// parseSlot reads "kind:signer:signatureHex". The signer is only used for contract slots and
// may be left empty for ECDSA kinds.
func parseSlot(s string) (signatures.SlotInput, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return signatures.SlotInput{}, fmt.Errorf("slot %q must be kind:signer:signature", s)
	}
	kind, err := signatures.ParseKind(parts[0])
	if err != nil {
		return signatures.SlotInput{}, err
	}
	var signer common.Address
	if parts[1] != "" {
		if !common.IsHexAddress(parts[1]) {
			return signatures.SlotInput{}, fmt.Errorf("invalid signer address %q", parts[1])
		}
		signer = common.HexToAddress(parts[1])
	}
	if kind == signatures.KindContract && signer == (common.Address{}) {
		return signatures.SlotInput{}, fmt.Errorf("contract slot requires a signer")
	}
	sig, err := hexutil.Decode(parts[2])
	if err != nil {
		return signatures.SlotInput{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	if kind != signatures.KindContract && len(sig) != signatures.SlotLength {
		return signatures.SlotInput{}, fmt.Errorf("%s signature must be %d bytes, got %d", kind, signatures.SlotLength, len(sig))
	}
	return signatures.SlotInput{Kind: kind, Signer: signer, Signature: sig}, nil
}

// readUserOp accepts inline JSON or @path to a JSON file.
func readUserOp(arg string) (*types.UserOperation, error) {
	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read user operation: %w", err)
		}
		raw = data
	}
	var op types.UserOperation
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, fmt.Errorf("failed to parse user operation: %w", err)
	}
	return &op, nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(name, s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must be a 0x-prefixed 32 byte hex string", name)
	}
	return common.BytesToHash(b), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
