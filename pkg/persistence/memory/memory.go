package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MemoryPersistence is an in-memory implementation of IValidatorPersistence.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// account -> entity -> record
	signers    map[common.Address]map[types.EntityId]*persistence.SignerRecord
	ownerships map[common.Address]map[types.EntityId]*persistence.OwnershipRecord

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	logger.Sugar().Warnw("Using in-memory persistence, all signer and owner state is lost on restart",
		"hint", "set VALIDATOR_PERSISTENCE_TYPE=badger or redis for production",
	)

	return &MemoryPersistence{
		signers:    make(map[common.Address]map[types.EntityId]*persistence.SignerRecord),
		ownerships: make(map[common.Address]map[types.EntityId]*persistence.OwnershipRecord),
	}
}

// SaveSigner persists a signer registration.
func (m *MemoryPersistence) SaveSigner(record *persistence.SignerRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SignerRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	entities, ok := m.signers[record.Account]
	if !ok {
		entities = make(map[types.EntityId]*persistence.SignerRecord)
		m.signers[record.Account] = entities
	}
	entities[record.EntityId] = record.Copy()
	return nil
}

// LoadSigner retrieves a signer registration.
func (m *MemoryPersistence) LoadSigner(account common.Address, entityId types.EntityId) (*persistence.SignerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.signers[account][entityId]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return record.Copy(), nil
}

// ListSigners returns all signer registrations of an account sorted by entity.
func (m *MemoryPersistence) ListSigners(account common.Address) ([]*persistence.SignerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	entities := m.signers[account]
	result := make([]*persistence.SignerRecord, 0, len(entities))
	for _, id := range sortedEntities(entities) {
		result = append(result, entities[id].Copy())
	}
	return result, nil
}

// DeleteSigner removes a signer registration.
func (m *MemoryPersistence) DeleteSigner(account common.Address, entityId types.EntityId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	if entities, ok := m.signers[account]; ok {
		delete(entities, entityId)
		if len(entities) == 0 {
			delete(m.signers, account)
		}
	}
	return nil
}

// SaveOwnership persists a multisig configuration.
func (m *MemoryPersistence) SaveOwnership(record *persistence.OwnershipRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil OwnershipRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	entities, ok := m.ownerships[record.Account]
	if !ok {
		entities = make(map[types.EntityId]*persistence.OwnershipRecord)
		m.ownerships[record.Account] = entities
	}
	entities[record.EntityId] = record.Copy()
	return nil
}

// LoadOwnership retrieves a multisig configuration.
func (m *MemoryPersistence) LoadOwnership(account common.Address, entityId types.EntityId) (*persistence.OwnershipRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.ownerships[account][entityId]
	if !exists {
		return nil, nil
	}
	return record.Copy(), nil
}

// ListOwnerships returns all multisig configurations of an account sorted by entity.
func (m *MemoryPersistence) ListOwnerships(account common.Address) ([]*persistence.OwnershipRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	entities := m.ownerships[account]
	result := make([]*persistence.OwnershipRecord, 0, len(entities))
	for _, id := range sortedEntities(entities) {
		result = append(result, entities[id].Copy())
	}
	return result, nil
}

// DeleteOwnership removes a multisig configuration.
func (m *MemoryPersistence) DeleteOwnership(account common.Address, entityId types.EntityId) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	if entities, ok := m.ownerships[account]; ok {
		delete(entities, entityId)
		if len(entities) == 0 {
			delete(m.ownerships, account)
		}
	}
	return nil
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck always succeeds while open.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}

func sortedEntities[T any](entities map[types.EntityId]T) []types.EntityId {
	ids := make([]types.EntityId, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
