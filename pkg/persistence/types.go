package persistence

import (
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// SignerRecord is the single-signer registration of one (account, entity) pair.
type SignerRecord struct {
	Account  common.Address `json:"account"`
	EntityId types.EntityId `json:"entityId"`
	Signer   common.Address `json:"signer"`

	// UpdatedAt is the Unix timestamp of the last transfer.
	UpdatedAt int64 `json:"updatedAt"`
}

// OwnershipRecord is the multisig configuration of one (account, entity) pair.
// Owners keep their insertion order.
type OwnershipRecord struct {
	Account   common.Address `json:"account"`
	EntityId  types.EntityId `json:"entityId"`
	Owners    []types.Owner  `json:"owners"`
	Threshold uint64         `json:"threshold"`
	UpdatedAt int64          `json:"updatedAt"`
}

// Copy returns a deep copy of the record.
func (r *SignerRecord) Copy() *SignerRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Copy returns a deep copy of the record.
func (r *OwnershipRecord) Copy() *OwnershipRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Owners = make([]types.Owner, len(r.Owners))
	copy(c.Owners, r.Owners)
	return &c
}
