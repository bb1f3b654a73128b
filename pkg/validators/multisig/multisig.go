package multisig

import (
	"context"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/digest"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/events"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/metrics"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSet"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/quorum"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/replaySafe"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultName    = "MultisigValidation"
	DefaultVersion = "1.0.0"
	DefaultAuthor  = "Layr-Labs"
)

// Config binds the module to one chain and entry point.
type Config struct {
	Metadata   types.ModuleMetadata
	EntryPoint common.Address
	ChainId    *big.Int
	MaxOwners  int
}

// MultisigValidator authorizes an entity when owners holding at least the threshold weight sign.
type MultisigValidator struct {
	metadata   types.ModuleMetadata
	entryPoint common.Address
	chainId    *big.Int
	maxOwners  int

	store      persistence.IValidatorPersistence
	checker    *quorum.Checker
	replaySafe *replaySafe.Builder
	sink       events.IEventSink
	locks      *validators.EntityLocks
	logger     *zap.Logger
}

var _ validators.IValidationModule = (*MultisigValidator)(nil)

func NewMultisigValidator(
	cfg *Config,
	store persistence.IValidatorPersistence,
	checker *quorum.Checker,
	sink events.IEventSink,
	logger *zap.Logger,
) (*MultisigValidator, error) {
	if cfg == nil {
		return nil, errors.New("multisig config is required")
	}
	if cfg.ChainId == nil || cfg.ChainId.Sign() <= 0 {
		return nil, errors.New("multisig config requires a positive chain id")
	}
	if cfg.EntryPoint == (common.Address{}) {
		return nil, errors.New("multisig config requires an entry point")
	}
	metadata := cfg.Metadata
	if metadata.Name == "" {
		metadata.Name = DefaultName
	}
	if metadata.Version == "" {
		metadata.Version = DefaultVersion
	}
	if metadata.Author == "" {
		metadata.Author = DefaultAuthor
	}
	maxOwners := cfg.MaxOwners
	if maxOwners <= 0 {
		maxOwners = ownerSet.DefaultMaxOwners
	}
	builder, err := replaySafe.NewBuilder(metadata.Name, metadata.Version)
	if err != nil {
		return nil, err
	}
	return &MultisigValidator{
		metadata:   metadata,
		entryPoint: cfg.EntryPoint,
		chainId:    new(big.Int).Set(cfg.ChainId),
		maxOwners:  maxOwners,
		store:      store,
		checker:    checker,
		replaySafe: builder,
		sink:       sink,
		locks:      validators.NewEntityLocks(),
		logger:     logger,
	}, nil
}

func (m *MultisigValidator) Metadata() types.ModuleMetadata {
	return m.metadata
}

func (m *MultisigValidator) SupportsInterface(interfaceId [4]byte) bool {
	return validators.SupportsStandardInterfaces(interfaceId)
}

// Digests returns the actual and minimal digests owners sign for op on this module's chain.
func (m *MultisigValidator) Digests(op *types.UserOperation) (*digest.Digests, error) {
	return digest.Compute(op, m.entryPoint, m.chainId)
}

// ReplaySafeHash returns the digest owners sign for ValidateSignature to accept raw.
func (m *MultisigValidator) ReplaySafeHash(account common.Address, raw common.Hash) common.Hash {
	return m.replaySafe.Build(account, raw)
}

// OnInstall creates the entity's owner set. Installing over an existing configuration fails.
func (m *MultisigValidator) OnInstall(ctx context.Context, account common.Address, data []byte) (err error) {
	defer func() { metrics.RecordMutation(m.metadata.Name, err) }()

	install, err := DecodeInstallData(data)
	if err != nil {
		return err
	}

	release := m.locks.Lock(account, install.EntityId)
	defer release()

	existing, err := m.store.LoadOwnership(account, install.EntityId)
	if err != nil {
		return errors.Wrap(err, "failed to load ownership")
	}
	if existing != nil {
		return errors.Wrapf(types.ErrInvalidInstallData, "entity %d already installed for %s", install.EntityId, account.Hex())
	}

	owners := ownerSet.New(m.maxOwners)
	if err := owners.Add(install.Owners); err != nil {
		return err
	}
	if err := checkThreshold(install.Threshold, owners); err != nil {
		return err
	}

	if err := m.save(account, install.EntityId, owners, install.Threshold); err != nil {
		return err
	}
	m.publish(ctx, &events.OwnershipUpdated{
		Account:       account,
		EntityId:      install.EntityId,
		AddedOwners:   owners.Owners(),
		RemovedOwners: []common.Address{},
		Threshold:     install.Threshold,
	})
	return nil
}

// OnUninstall deletes the entity's owners and threshold.
func (m *MultisigValidator) OnUninstall(ctx context.Context, account common.Address, data []byte) (err error) {
	defer func() { metrics.RecordMutation(m.metadata.Name, err) }()

	entityId, err := validators.DecodeUninstallData(data)
	if err != nil {
		return err
	}

	release := m.locks.Lock(account, entityId)
	defer release()

	existing, err := m.store.LoadOwnership(account, entityId)
	if err != nil {
		return errors.Wrap(err, "failed to load ownership")
	}
	if existing == nil {
		return nil
	}
	if err := m.store.DeleteOwnership(account, entityId); err != nil {
		return errors.Wrap(err, "failed to delete ownership")
	}

	removed := make([]common.Address, 0, len(existing.Owners))
	for _, o := range existing.Owners {
		removed = append(removed, o.Address)
	}
	m.publish(ctx, &events.OwnershipUpdated{
		Account:       account,
		EntityId:      entityId,
		AddedOwners:   []types.Owner{},
		RemovedOwners: removed,
		Threshold:     0,
	})
	return nil
}

// UpdateOwnership removes then adds owners and optionally changes the threshold, all or nothing.
// A zero newThreshold keeps the current one.
func (m *MultisigValidator) UpdateOwnership(
	ctx context.Context,
	account common.Address,
	entityId types.EntityId,
	add []types.Owner,
	remove []common.Address,
	newThreshold uint64,
) (err error) {
	defer func() { metrics.RecordMutation(m.metadata.Name, err) }()

	release := m.locks.Lock(account, entityId)
	defer release()

	record, err := m.store.LoadOwnership(account, entityId)
	if err != nil {
		return errors.Wrap(err, "failed to load ownership")
	}
	if record == nil {
		return errors.Wrapf(types.ErrNotInstalled, "entity %d of %s", entityId, account.Hex())
	}
	if len(add) == 0 && len(remove) == 0 && newThreshold == 0 {
		return nil
	}

	owners, err := ownerSet.FromOwners(record.Owners, m.maxOwners)
	if err != nil {
		return errors.Wrap(err, "stored owner set is invalid")
	}
	if len(remove) > 0 {
		if err := owners.Remove(remove, len(add) == 0); err != nil {
			return err
		}
	}
	if len(add) > 0 {
		if err := owners.Add(add); err != nil {
			return err
		}
	}
	if owners.IsEmpty() {
		return types.ErrEmptyOwnersNotAllowed
	}

	threshold := record.Threshold
	if newThreshold != 0 {
		threshold = newThreshold
	}
	if err := checkThreshold(threshold, owners); err != nil {
		return err
	}

	if err := m.save(account, entityId, owners, threshold); err != nil {
		return err
	}
	if add == nil {
		add = []types.Owner{}
	}
	if remove == nil {
		remove = []common.Address{}
	}
	m.publish(ctx, &events.OwnershipUpdated{
		Account:       account,
		EntityId:      entityId,
		AddedOwners:   add,
		RemovedOwners: remove,
		Threshold:     threshold,
	})
	return nil
}

// OwnershipInfoOf returns the owners in insertion order and the threshold. An entity that is not
// installed has no owners and a zero threshold.
func (m *MultisigValidator) OwnershipInfoOf(ctx context.Context, account common.Address, entityId types.EntityId) ([]types.Owner, uint64, error) {
	record, err := m.store.LoadOwnership(account, entityId)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to load ownership")
	}
	if record == nil {
		return []types.Owner{}, 0, nil
	}
	return record.Owners, record.Threshold, nil
}

func (m *MultisigValidator) IsInstalled(ctx context.Context, account common.Address, entityId types.EntityId) (bool, error) {
	record, err := m.store.LoadOwnership(account, entityId)
	if err != nil {
		return false, errors.Wrap(err, "failed to load ownership")
	}
	return record != nil, nil
}

func (m *MultisigValidator) IsOwnerOf(ctx context.Context, account common.Address, entityId types.EntityId, addr common.Address) (bool, error) {
	owners, _, err := m.OwnershipInfoOf(ctx, account, entityId)
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if o.Address == addr {
			return true, nil
		}
	}
	return false, nil
}

// CheckSignatures runs the quorum check for (account, entityId) over blob.
func (m *MultisigValidator) CheckSignatures(
	ctx context.Context,
	account common.Address,
	entityId types.EntityId,
	actual common.Hash,
	minimal common.Hash,
	blob []byte,
) (*quorum.Result, error) {
	record, err := m.store.LoadOwnership(account, entityId)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ownership")
	}
	if record == nil {
		return nil, errors.Wrapf(types.ErrNotInstalled, "entity %d of %s", entityId, account.Hex())
	}
	owners, err := ownerSet.FromOwners(record.Owners, m.maxOwners)
	if err != nil {
		return nil, errors.Wrap(err, "stored owner set is invalid")
	}

	res, err := m.checker.Check(ctx, actual, minimal, owners, record.Threshold, blob)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		metrics.QuorumFailuresTotal.WithLabelValues(string(res.Reason)).Inc()
	}
	return res, nil
}

// ValidateUserOp aborts with ErrInvalidDigest when the operation's digests coincide. A non-zero
// userOpHash that differs from the computed actual digest fails validation.
func (m *MultisigValidator) ValidateUserOp(ctx context.Context, account common.Address, entityId types.EntityId, op *types.UserOperation, userOpHash common.Hash) (types.ValidationData, error) {
	digests, err := m.Digests(op)
	if err != nil {
		return types.SigValidationFailed, err
	}
	if userOpHash != (common.Hash{}) && userOpHash != digests.Actual {
		m.logger.Sugar().Warnw("User operation hash does not match computed digest",
			"account", account.Hex(),
			"entityId", entityId,
			"userOpHash", userOpHash.Hex(),
			"computed", digests.Actual.Hex(),
		)
		return types.SigValidationFailed, nil
	}

	res, err := m.CheckSignatures(ctx, account, entityId, digests.Actual, digests.Minimal, op.Signature)
	if errors.Is(err, types.ErrNotInstalled) {
		return types.SigValidationFailed, nil
	}
	if err != nil {
		return types.SigValidationFailed, err
	}
	if !res.Success {
		m.logger.Sugar().Debugw("Multisig user operation rejected",
			"account", account.Hex(),
			"entityId", entityId,
			"firstFailure", res.FirstFailure,
			"reason", res.Reason,
			"weight", res.Weight,
		)
		return types.SigValidationFailed, nil
	}
	return types.SigValidationPassed, nil
}

// ValidateRuntime only admits calls the account makes to itself.
func (m *MultisigValidator) ValidateRuntime(_ context.Context, account common.Address, entityId types.EntityId, sender common.Address, _ *big.Int, _ []byte, _ []byte) error {
	if sender != account {
		return errors.Wrapf(types.ErrUnauthorizedCaller, "sender %s for account %s entity %d", sender.Hex(), account.Hex(), entityId)
	}
	return nil
}

// ValidateSignature checks a quorum over the replay-safe hash of digest. Every slot, including
// the first, signs that same hash.
func (m *MultisigValidator) ValidateSignature(ctx context.Context, account common.Address, entityId types.EntityId, _ common.Address, digest common.Hash, signature []byte) ([4]byte, error) {
	hash := m.replaySafe.Build(account, digest)
	res, err := m.CheckSignatures(ctx, account, entityId, hash, hash, signature)
	if errors.Is(err, types.ErrNotInstalled) {
		return types.ERC1271InvalidValue, nil
	}
	if err != nil {
		return types.ERC1271InvalidValue, err
	}
	if !res.Success {
		return types.ERC1271InvalidValue, nil
	}
	return types.ERC1271MagicValue, nil
}

func (m *MultisigValidator) save(account common.Address, entityId types.EntityId, owners *ownerSet.OwnerSet, threshold uint64) error {
	err := m.store.SaveOwnership(&persistence.OwnershipRecord{
		Account:   account,
		EntityId:  entityId,
		Owners:    owners.Owners(),
		Threshold: threshold,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to store ownership")
	}
	return nil
}

func (m *MultisigValidator) publish(ctx context.Context, event events.Event) {
	if err := m.sink.Publish(ctx, event); err != nil {
		m.logger.Sugar().Warnw("Failed to publish ownership event", "type", event.Type(), "key", event.PartitionKey(), "error", err)
	}
}

func checkThreshold(threshold uint64, owners *ownerSet.OwnerSet) error {
	if threshold == 0 {
		return errors.Wrap(types.ErrInvalidThreshold, "threshold must be positive")
	}
	if total := owners.TotalWeight(); threshold > total {
		return errors.Wrapf(types.ErrInvalidThreshold, "threshold %d exceeds total weight %d", threshold, total)
	}
	return nil
}
