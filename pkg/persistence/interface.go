package persistence

import (
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// IValidatorPersistence stores validation module state keyed explicitly by account, then entity.
// All implementations must be thread-safe as validation requests are served concurrently.
//
// The interface supports:
// - Single-signer registrations (save, load, list per account, delete)
// - Multisig ownership configurations (save, load, list per account, delete)
// - Lifecycle management (close, health check)
type IValidatorPersistence interface {
	// Single-signer registrations

	// SaveSigner persists the signer of (record.Account, record.EntityId), replacing any previous one.
	SaveSigner(record *SignerRecord) error

	// LoadSigner returns nil if no signer is registered, error only on storage failure.
	LoadSigner(account common.Address, entityId types.EntityId) (*SignerRecord, error)

	// ListSigners returns every signer registration of account sorted by entity id.
	ListSigners(account common.Address) ([]*SignerRecord, error)

	// DeleteSigner is idempotent.
	DeleteSigner(account common.Address, entityId types.EntityId) error

	// Multisig ownership

	// SaveOwnership overwrites the owner list and threshold of (record.Account, record.EntityId).
	SaveOwnership(record *OwnershipRecord) error

	// LoadOwnership returns nil if the entity has no multisig configuration.
	LoadOwnership(account common.Address, entityId types.EntityId) (*OwnershipRecord, error)

	// ListOwnerships returns every multisig configuration of account sorted by entity id.
	ListOwnerships(account common.Address) ([]*OwnershipRecord, error)

	// DeleteOwnership is idempotent.
	DeleteOwnership(account common.Address, entityId types.EntityId) error

	// Lifecycle Management

	// Close is idempotent. After Close(), all other operations return errors.
	Close() error

	// HealthCheck returns nil if the backend is operational.
	HealthCheck() error
}
