package server

import (
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Authorization is carried by every request that changes configuration. Signature is the
// account's own signature, or one the installed entity accepts, over the module's replay-safe
// hash of the mutation digest. ExpiresAt is a Unix timestamp in seconds.
type Authorization struct {
	ExpiresAt uint64        `json:"expiresAt"`
	Signature hexutil.Bytes `json:"signature"`
}

type InstallRequest struct {
	Module        string         `json:"module"`
	Account       common.Address `json:"account"`
	Data          hexutil.Bytes  `json:"data"`
	Authorization Authorization  `json:"authorization"`
}

type UserOpValidationRequest struct {
	Module     string               `json:"module"`
	Account    common.Address       `json:"account"`
	EntityId   types.EntityId       `json:"entityId"`
	UserOp     *types.UserOperation `json:"userOp"`
	UserOpHash common.Hash          `json:"userOpHash"`
}

type RuntimeValidationRequest struct {
	Module        string         `json:"module"`
	Account       common.Address `json:"account"`
	EntityId      types.EntityId `json:"entityId"`
	Sender        common.Address `json:"sender"`
	Value         *hexutil.Big   `json:"value"`
	CallData      hexutil.Bytes  `json:"callData"`
	Authorization hexutil.Bytes  `json:"authorization"`
}

type SignatureValidationRequest struct {
	Module    string         `json:"module"`
	Account   common.Address `json:"account"`
	EntityId  types.EntityId `json:"entityId"`
	Sender    common.Address `json:"sender"`
	Digest    common.Hash    `json:"digest"`
	Signature hexutil.Bytes  `json:"signature"`
}

type OwnershipUpdateRequest struct {
	Module        string           `json:"module,omitempty"`
	Account       common.Address   `json:"account"`
	EntityId      types.EntityId   `json:"entityId"`
	Add           []types.Owner    `json:"add"`
	Remove        []common.Address `json:"remove"`
	Threshold     uint64           `json:"threshold"`
	Authorization Authorization    `json:"authorization"`
}

type OwnershipResponse struct {
	Account   common.Address `json:"account"`
	EntityId  types.EntityId `json:"entityId"`
	Owners    []types.Owner  `json:"owners"`
	Threshold uint64         `json:"threshold"`
}

type SignerTransferRequest struct {
	Module        string         `json:"module,omitempty"`
	Account       common.Address `json:"account"`
	EntityId      types.EntityId `json:"entityId"`
	Signer        common.Address `json:"signer"`
	Authorization Authorization  `json:"authorization"`
}

type SignerResponse struct {
	Account  common.Address `json:"account"`
	EntityId types.EntityId `json:"entityId"`
	Signer   common.Address `json:"signer"`
}

type DigestsRequest struct {
	Module string               `json:"module,omitempty"`
	UserOp *types.UserOperation `json:"userOp"`
}

type ReplaySafeHashRequest struct {
	Module  string         `json:"module"`
	Account common.Address `json:"account"`
	Hash    common.Hash    `json:"hash"`
}

type ReplaySafeHashResponse struct {
	Hash common.Hash `json:"hash"`
}

type ModuleInfo struct {
	types.ModuleMetadata
	InterfaceIds []string `json:"interfaceIds"`
}

type AccountEntitiesResponse struct {
	Account    common.Address                 `json:"account"`
	Signers    []*persistence.SignerRecord    `json:"signers"`
	Ownerships []*persistence.OwnershipRecord `json:"ownerships"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
