package erc1271Caller

import (
	"bytes"
	"context"
	"math/big"
	"strings"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const erc1271ABI = `[{
	"type": "function",
	"name": "isValidSignature",
	"stateMutability": "view",
	"inputs": [
		{"name": "hash", "type": "bytes32"},
		{"name": "signature", "type": "bytes"}
	],
	"outputs": [
		{"name": "magicValue", "type": "bytes4"}
	]
}]`

// ChainCaller is the read-only subset of ethclient.Client the caller needs.
type ChainCaller interface {
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC1271Caller checks contract signatures by calling isValidSignature on chain at the latest block.
type ERC1271Caller struct {
	client ChainCaller
	abi    abi.ABI
	logger *zap.Logger
}

func NewERC1271Caller(client ChainCaller, logger *zap.Logger) (*ERC1271Caller, error) {
	parsed, err := abi.JSON(strings.NewReader(erc1271ABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ERC-1271 ABI")
	}
	return &ERC1271Caller{
		client: client,
		abi:    parsed,
		logger: logger,
	}, nil
}

func (c *ERC1271Caller) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, errors.Wrapf(err, "failed to get code at %s", addr.Hex())
	}
	return len(code) > 0, nil
}

// IsValidSignature returns true only when the contract answers with the ERC-1271 magic value.
// A reverting call is a failed signature, not an error.
func (c *ERC1271Caller) IsValidSignature(ctx context.Context, signer common.Address, digest common.Hash, signature []byte) (bool, error) {
	data, err := c.abi.Pack("isValidSignature", digest, signature)
	if err != nil {
		return false, errors.Wrap(err, "failed to pack isValidSignature call")
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &signer, Data: data}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			c.logger.Sugar().Debugw("isValidSignature reverted", "signer", signer.Hex(), "error", err)
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to call isValidSignature on %s", signer.Hex())
	}
	if len(out) < 4 {
		return false, nil
	}
	return bytes.Equal(out[:4], types.ERC1271MagicValue[:]), nil
}
