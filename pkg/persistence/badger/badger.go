package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Key layout: <prefix><account hex>:<entity, zero padded>. The padding keeps prefix
// iteration over one account in entity order.
const (
	keyPrefixSigner      = "signer:"
	keyPrefixOwnership   = "ownership:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a durable, disk-based persistence implementation using Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens the database at dataPath with SyncWrites enabled and starts
// background value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func accountPrefix(prefix string, account common.Address) string {
	return prefix + strings.ToLower(account.Hex()) + ":"
}

func entityKey(prefix string, account common.Address, entityId types.EntityId) []byte {
	return []byte(fmt.Sprintf("%s%010d", accountPrefix(prefix, account), entityId))
}

// SaveSigner persists a signer registration
func (b *BadgerPersistence) SaveSigner(record *persistence.SignerRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SignerRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalSignerRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SignerRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(entityKey(keyPrefixSigner, record.Account, record.EntityId), data)
	})
}

// LoadSigner retrieves a signer registration
func (b *BadgerPersistence) LoadSigner(account common.Address, entityId types.EntityId) (*persistence.SignerRecord, error) {
	data, err := b.get(entityKey(keyPrefixSigner, account, entityId))
	if err != nil {
		return nil, fmt.Errorf("failed to load SignerRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	record, err := persistence.UnmarshalSignerRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal SignerRecord: %w", err)
	}
	return record, nil
}

// ListSigners returns the signer registrations of an account sorted by entity
func (b *BadgerPersistence) ListSigners(account common.Address) ([]*persistence.SignerRecord, error) {
	records := make([]*persistence.SignerRecord, 0)
	err := b.scan(accountPrefix(keyPrefixSigner, account), func(key, data []byte) {
		record, err := persistence.UnmarshalSignerRecord(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal SignerRecord, skipping", "key", string(key), "error", err)
			return
		}
		records = append(records, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list SignerRecords: %w", err)
	}
	return records, nil
}

// DeleteSigner removes a signer registration
func (b *BadgerPersistence) DeleteSigner(account common.Address, entityId types.EntityId) error {
	return b.delete(entityKey(keyPrefixSigner, account, entityId))
}

// SaveOwnership persists a multisig configuration
func (b *BadgerPersistence) SaveOwnership(record *persistence.OwnershipRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil OwnershipRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalOwnershipRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal OwnershipRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(entityKey(keyPrefixOwnership, record.Account, record.EntityId), data)
	})
}

// LoadOwnership retrieves a multisig configuration
func (b *BadgerPersistence) LoadOwnership(account common.Address, entityId types.EntityId) (*persistence.OwnershipRecord, error) {
	data, err := b.get(entityKey(keyPrefixOwnership, account, entityId))
	if err != nil {
		return nil, fmt.Errorf("failed to load OwnershipRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	record, err := persistence.UnmarshalOwnershipRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal OwnershipRecord: %w", err)
	}
	return record, nil
}

// ListOwnerships returns the multisig configurations of an account sorted by entity
func (b *BadgerPersistence) ListOwnerships(account common.Address) ([]*persistence.OwnershipRecord, error) {
	records := make([]*persistence.OwnershipRecord, 0)
	err := b.scan(accountPrefix(keyPrefixOwnership, account), func(key, data []byte) {
		record, err := persistence.UnmarshalOwnershipRecord(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal OwnershipRecord, skipping", "key", string(key), "error", err)
			return
		}
		records = append(records, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list OwnershipRecords: %w", err)
	}
	return records, nil
}

// DeleteOwnership removes a multisig configuration
func (b *BadgerPersistence) DeleteOwnership(account common.Address, entityId types.EntityId) error {
	return b.delete(entityKey(keyPrefixOwnership, account, entityId))
}

// get returns a copy of the value at key, or nil when absent
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	return data, err
}

// scan visits every key under prefix in key order
func (b *BadgerPersistence) scan(prefix string, visit func(key, data []byte)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			visit(item.KeyCopy(nil), data)
		}
		return nil
	})
}

func (b *BadgerPersistence) delete(key []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(key)
	})
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the database is readable and carries a schema version
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
