package singleSigner

import (
	"context"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/events"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/metrics"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/replaySafe"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/util"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultName    = "SingleSignerValidation"
	DefaultVersion = "1.0.0"
	DefaultAuthor  = "Layr-Labs"
)

var installArgs = util.Arguments("uint32", "address")

// SingleSignerValidator authorizes an entity through one signer address, which may be an
// EOA or an ERC-1271 contract.
type SingleSignerValidator struct {
	metadata   types.ModuleMetadata
	store      persistence.IValidatorPersistence
	verifier   signatureVerifier.ISignatureVerifier
	replaySafe *replaySafe.Builder
	sink       events.IEventSink
	locks      *validators.EntityLocks
	logger     *zap.Logger
}

var _ validators.IValidationModule = (*SingleSignerValidator)(nil)

func NewSingleSignerValidator(
	metadata types.ModuleMetadata,
	store persistence.IValidatorPersistence,
	verifier signatureVerifier.ISignatureVerifier,
	sink events.IEventSink,
	logger *zap.Logger,
) (*SingleSignerValidator, error) {
	if metadata.Name == "" {
		metadata.Name = DefaultName
	}
	if metadata.Version == "" {
		metadata.Version = DefaultVersion
	}
	if metadata.Author == "" {
		metadata.Author = DefaultAuthor
	}
	builder, err := replaySafe.NewBuilder(metadata.Name, metadata.Version)
	if err != nil {
		return nil, err
	}
	return &SingleSignerValidator{
		metadata:   metadata,
		store:      store,
		verifier:   verifier,
		replaySafe: builder,
		sink:       sink,
		locks:      validators.NewEntityLocks(),
		logger:     logger,
	}, nil
}

func (v *SingleSignerValidator) Metadata() types.ModuleMetadata {
	return v.metadata
}

func (v *SingleSignerValidator) SupportsInterface(interfaceId [4]byte) bool {
	return validators.SupportsStandardInterfaces(interfaceId)
}

// ReplaySafeHash returns the digest a signer must sign for ValidateSignature to accept raw.
func (v *SingleSignerValidator) ReplaySafeHash(account common.Address, raw common.Hash) common.Hash {
	return v.replaySafe.Build(account, raw)
}

// EncodeInstallData returns abi.encode(uint32 entityId, address signer).
func EncodeInstallData(entityId types.EntityId, signer common.Address) ([]byte, error) {
	return installArgs.Pack(uint32(entityId), signer)
}

// DecodeInstallData parses abi.encode(uint32 entityId, address signer).
func DecodeInstallData(data []byte) (types.EntityId, common.Address, error) {
	values, err := installArgs.Unpack(data)
	if err != nil {
		return 0, common.Address{}, errors.Wrapf(types.ErrInvalidInstallData, "%v", err)
	}
	entityId, ok := values[0].(uint32)
	if !ok {
		return 0, common.Address{}, errors.Wrap(types.ErrInvalidInstallData, "entity id is not uint32")
	}
	signer, ok := values[1].(common.Address)
	if !ok {
		return 0, common.Address{}, errors.Wrap(types.ErrInvalidInstallData, "signer is not an address")
	}
	return types.EntityId(entityId), signer, nil
}

func (v *SingleSignerValidator) OnInstall(ctx context.Context, account common.Address, data []byte) error {
	entityId, signer, err := DecodeInstallData(data)
	if err != nil {
		return err
	}
	return v.TransferSigner(ctx, account, entityId, signer)
}

// OnUninstall clears the entity's signer.
func (v *SingleSignerValidator) OnUninstall(ctx context.Context, account common.Address, data []byte) error {
	entityId, err := validators.DecodeUninstallData(data)
	if err != nil {
		return err
	}
	return v.TransferSigner(ctx, account, entityId, common.Address{})
}

// TransferSigner atomically replaces the signer of (account, entityId). The zero address
// removes the registration.
func (v *SingleSignerValidator) TransferSigner(ctx context.Context, account common.Address, entityId types.EntityId, newSigner common.Address) (err error) {
	defer func() { metrics.RecordMutation(v.metadata.Name, err) }()

	release := v.locks.Lock(account, entityId)
	defer release()

	previous, err := v.store.LoadSigner(account, entityId)
	if err != nil {
		return errors.Wrap(err, "failed to load current signer")
	}
	previousSigner := common.Address{}
	if previous != nil {
		previousSigner = previous.Signer
	}

	if newSigner == (common.Address{}) {
		err = v.store.DeleteSigner(account, entityId)
	} else {
		err = v.store.SaveSigner(&persistence.SignerRecord{
			Account:   account,
			EntityId:  entityId,
			Signer:    newSigner,
			UpdatedAt: time.Now().Unix(),
		})
	}
	if err != nil {
		return errors.Wrap(err, "failed to store signer")
	}

	if previousSigner == newSigner {
		return nil
	}

	event := &events.SignerTransferred{
		Account:        account,
		EntityId:       entityId,
		PreviousSigner: previousSigner,
		NewSigner:      newSigner,
	}
	if perr := v.sink.Publish(ctx, event); perr != nil {
		v.logger.Sugar().Warnw("Failed to publish signer transfer",
			"account", account.Hex(),
			"entityId", entityId,
			"error", perr,
		)
	}
	return nil
}

// SignerOf returns the registered signer, or the zero address when none is set.
func (v *SingleSignerValidator) SignerOf(ctx context.Context, account common.Address, entityId types.EntityId) (common.Address, error) {
	record, err := v.store.LoadSigner(account, entityId)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to load signer")
	}
	if record == nil {
		return common.Address{}, nil
	}
	return record.Signer, nil
}

func (v *SingleSignerValidator) IsInstalled(ctx context.Context, account common.Address, entityId types.EntityId) (bool, error) {
	signer, err := v.SignerOf(ctx, account, entityId)
	if err != nil {
		return false, err
	}
	return signer != (common.Address{}), nil
}

// ValidateUserOp checks op.Signature over the EIP-191 "Ethereum Signed Message" form of userOpHash.
func (v *SingleSignerValidator) ValidateUserOp(ctx context.Context, account common.Address, entityId types.EntityId, op *types.UserOperation, userOpHash common.Hash) (types.ValidationData, error) {
	if op == nil {
		return types.SigValidationFailed, errors.New("user operation is nil")
	}
	signer, err := v.SignerOf(ctx, account, entityId)
	if err != nil {
		return types.SigValidationFailed, err
	}
	if signer == (common.Address{}) {
		return types.SigValidationFailed, nil
	}

	ethSigned := common.BytesToHash(accounts.TextHash(userOpHash.Bytes()))
	ok, err := v.verifier.IsValidSignatureNow(ctx, signer, ethSigned, op.Signature)
	if err != nil {
		return types.SigValidationFailed, err
	}
	if !ok {
		return types.SigValidationFailed, nil
	}
	return types.SigValidationPassed, nil
}

// ValidateRuntime allows the registered signer or the account itself.
func (v *SingleSignerValidator) ValidateRuntime(ctx context.Context, account common.Address, entityId types.EntityId, sender common.Address, _ *big.Int, _ []byte, _ []byte) error {
	if sender == account {
		return nil
	}
	signer, err := v.SignerOf(ctx, account, entityId)
	if err != nil {
		return err
	}
	if signer != (common.Address{}) && sender == signer {
		return nil
	}
	return errors.Wrapf(types.ErrUnauthorizedCaller, "sender %s for account %s entity %d", sender.Hex(), account.Hex(), entityId)
}

// ValidateSignature checks signature over the replay-safe form of digest.
func (v *SingleSignerValidator) ValidateSignature(ctx context.Context, account common.Address, entityId types.EntityId, _ common.Address, digest common.Hash, signature []byte) ([4]byte, error) {
	signer, err := v.SignerOf(ctx, account, entityId)
	if err != nil {
		return types.ERC1271InvalidValue, err
	}
	if signer == (common.Address{}) {
		return types.ERC1271InvalidValue, nil
	}

	ok, err := v.verifier.IsValidSignatureNow(ctx, signer, v.replaySafe.Build(account, digest), signature)
	if err != nil {
		return types.ERC1271InvalidValue, err
	}
	if !ok {
		return types.ERC1271InvalidValue, nil
	}
	return types.ERC1271MagicValue, nil
}
