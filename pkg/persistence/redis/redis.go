package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key layout. Records live at <prefix><account>:<entity>; each account has one index set per
// record kind because Redis cannot iterate a prefix cheaply.
const (
	keyPrefixSigner      = "validators:signer:"
	keyPrefixOwnership   = "validators:ownership:"
	keyPrefixSignerIdx   = "validators:signers:index:"
	keyPrefixOwnerIdx    = "validators:ownerships:index:"
	keySchemaVersion     = "validators:metadata:schema_version"
	currentSchemaVersion = "v1"

	operationTimeout = 5 * time.Second
)

// RedisPersistence stores validator state in Redis so several service replicas can share it.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "tenant-a:" for shared deployments.
	KeyPrefix string
}

// NewRedisPersistence connects, pings and initializes the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) recordKey(prefix string, account common.Address, entityId types.EntityId) string {
	return r.prefixKey(fmt.Sprintf("%s%s:%d", prefix, strings.ToLower(account.Hex()), entityId))
}

func (r *RedisPersistence) indexKey(prefix string, account common.Address) string {
	return r.prefixKey(prefix + strings.ToLower(account.Hex()))
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveSigner persists a signer registration and indexes its entity
func (r *RedisPersistence) SaveSigner(record *persistence.SignerRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SignerRecord")
	}

	data, err := persistence.MarshalSignerRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal SignerRecord: %w", err)
	}
	return r.put(keyPrefixSigner, keyPrefixSignerIdx, record.Account, record.EntityId, data)
}

// LoadSigner retrieves a signer registration
func (r *RedisPersistence) LoadSigner(account common.Address, entityId types.EntityId) (*persistence.SignerRecord, error) {
	data, err := r.get(r.recordKey(keyPrefixSigner, account, entityId))
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
func (r *RedisPersistence) ListSigners(account common.Address) ([]*persistence.SignerRecord, error) {
	records := make([]*persistence.SignerRecord, 0)
	err := r.list(keyPrefixSigner, keyPrefixSignerIdx, account, func(key string, data []byte) {
		record, err := persistence.UnmarshalSignerRecord(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal SignerRecord, skipping", "key", key, "error", err)
			return
		}
		records = append(records, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list SignerRecords: %w", err)
	}
	return records, nil
}

// DeleteSigner removes a signer registration and its index entry
func (r *RedisPersistence) DeleteSigner(account common.Address, entityId types.EntityId) error {
	return r.remove(keyPrefixSigner, keyPrefixSignerIdx, account, entityId)
}

// SaveOwnership persists a multisig configuration and indexes its entity
func (r *RedisPersistence) SaveOwnership(record *persistence.OwnershipRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil OwnershipRecord")
	}

	data, err := persistence.MarshalOwnershipRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal OwnershipRecord: %w", err)
	}
	return r.put(keyPrefixOwnership, keyPrefixOwnerIdx, record.Account, record.EntityId, data)
}

// LoadOwnership retrieves a multisig configuration
func (r *RedisPersistence) LoadOwnership(account common.Address, entityId types.EntityId) (*persistence.OwnershipRecord, error) {
	data, err := r.get(r.recordKey(keyPrefixOwnership, account, entityId))
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
func (r *RedisPersistence) ListOwnerships(account common.Address) ([]*persistence.OwnershipRecord, error) {
	records := make([]*persistence.OwnershipRecord, 0)
	err := r.list(keyPrefixOwnership, keyPrefixOwnerIdx, account, func(key string, data []byte) {
		record, err := persistence.UnmarshalOwnershipRecord(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal OwnershipRecord, skipping", "key", key, "error", err)
			return
		}
		records = append(records, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list OwnershipRecords: %w", err)
	}
	return records, nil
}

// DeleteOwnership removes a multisig configuration and its index entry
func (r *RedisPersistence) DeleteOwnership(account common.Address, entityId types.EntityId) error {
	return r.remove(keyPrefixOwnership, keyPrefixOwnerIdx, account, entityId)
}

func (r *RedisPersistence) put(recordPrefix, indexPrefix string, account common.Address, entityId types.EntityId, data []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.recordKey(recordPrefix, account, entityId), data, 0)
	pipe.SAdd(ctx, r.indexKey(indexPrefix, account), uint32(entityId))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (r *RedisPersistence) get(key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisPersistence) list(recordPrefix, indexPrefix string, account common.Address, visit func(key string, data []byte)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.indexKey(indexPrefix, account)
	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read index %s: %w", indexKey, err)
	}
	if len(members) == 0 {
		return nil
	}

	entityIds := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 32)
		if err != nil {
			r.logger.Sugar().Warnw("Skipping malformed index member", "index", indexKey, "member", m)
			continue
		}
		entityIds = append(entityIds, id)
	}
	sort.Slice(entityIds, func(i, j int) bool {
		return entityIds[i] < entityIds[j]
	})

	keys := make([]string, len(entityIds))
	for i, id := range entityIds {
		keys[i] = r.recordKey(recordPrefix, account, types.EntityId(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch records: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// Indexed but missing, clean up the index
			r.client.SRem(ctx, indexKey, entityIds[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for record", "key", keys[i])
			continue
		}
		visit(keys[i], []byte(data))
	}
	return nil
}

func (r *RedisPersistence) remove(recordPrefix, indexPrefix string, account common.Address, entityId types.EntityId) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.recordKey(recordPrefix, account, entityId))
	pipe.SRem(ctx, r.indexKey(indexPrefix, account), uint32(entityId))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck pings Redis and verifies the schema version key
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
