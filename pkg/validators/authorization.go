package validators

import (
	"context"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Configuration changes a module accepts from outside the account.
const (
	MutationInstall         = "install"
	MutationUninstall       = "uninstall"
	MutationTransferSigner  = "transferSigner"
	MutationUpdateOwnership = "updateOwnership"
)

// MaxAuthorizationWindow bounds how far in the future an authorization may expire.
const MaxAuthorizationWindow = 10 * time.Minute

var (
	mutationArgs        = util.Arguments("bytes32", "bytes32", "address", "uint32", "bytes32", "uint64")
	transferPayloadArgs = util.Arguments("address")
	ownershipArgs       = util.Arguments("address[]", "uint256[]", "address[]", "uint256")
)

// Mutation describes one configuration change of (Account, EntityId) in Module.
type Mutation struct {
	Operation string
	Module    string
	Account   common.Address
	EntityId  types.EntityId
	Payload   []byte
	// ExpiresAt is a Unix timestamp in seconds.
	ExpiresAt uint64
}

// Digest commits to every field of the mutation:
// keccak256(abi.encode(keccak(operation), keccak(module), account, entityId, keccak(payload), expiresAt)).
// The authority signs the module's replay-safe hash of this digest.
func (m *Mutation) Digest() common.Hash {
	packed, err := mutationArgs.Pack(
		crypto.Keccak256Hash([]byte(m.Operation)),
		crypto.Keccak256Hash([]byte(m.Module)),
		m.Account,
		uint32(m.EntityId),
		crypto.Keccak256Hash(m.Payload),
		m.ExpiresAt,
	)
	if err != nil {
		// every argument is a fixed-size word
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// TransferPayload is the mutation payload of a signer transfer: abi.encode(address newSigner).
func TransferPayload(newSigner common.Address) []byte {
	packed, err := transferPayloadArgs.Pack(newSigner)
	if err != nil {
		panic(err)
	}
	return packed
}

// OwnershipPayload is the mutation payload of an ownership update:
// abi.encode(address[] add, uint256[] weights, address[] remove, uint256 threshold).
func OwnershipPayload(add []types.Owner, remove []common.Address, threshold uint64) []byte {
	addrs := make([]common.Address, 0, len(add))
	weights := make([]*big.Int, 0, len(add))
	for _, o := range add {
		addrs = append(addrs, o.Address)
		weights = append(weights, new(big.Int).SetUint64(o.Weight))
	}
	if remove == nil {
		remove = []common.Address{}
	}
	packed, err := ownershipArgs.Pack(addrs, weights, remove, new(big.Int).SetUint64(threshold))
	if err != nil {
		panic(err)
	}
	return packed
}

// MutationAuthorizer decides whether a configuration change was approved by the account's
// current authority.
type MutationAuthorizer struct {
	verifier signatureVerifier.ISignatureVerifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewMutationAuthorizer(verifier signatureVerifier.ISignatureVerifier, logger *zap.Logger) *MutationAuthorizer {
	return &MutationAuthorizer{
		verifier: verifier,
		now:      time.Now,
		logger:   logger,
	}
}

// Authorize accepts proof when it is the account's own signature (ECDSA or ERC-1271) over the
// module's replay-safe hash of the mutation digest, or, for an installed entity, when the module
// itself validates proof as a signature of the entity. Any other proof is ErrUnauthorizedCaller.
func (a *MutationAuthorizer) Authorize(ctx context.Context, module IValidationModule, m *Mutation, proof []byte) error {
	if len(proof) == 0 {
		return errors.Wrap(types.ErrUnauthorizedCaller, "authorization is required")
	}
	now := a.now()
	expiresAt := time.Unix(int64(m.ExpiresAt), 0)
	if !expiresAt.After(now) {
		return errors.Wrapf(types.ErrUnauthorizedCaller, "authorization expired at %d", m.ExpiresAt)
	}
	if expiresAt.After(now.Add(MaxAuthorizationWindow)) {
		return errors.Wrapf(types.ErrUnauthorizedCaller, "authorization expiry %d is more than %s ahead", m.ExpiresAt, MaxAuthorizationWindow)
	}

	digest := m.Digest()
	byAccount, err := a.verifier.IsValidSignatureNow(ctx, m.Account, module.ReplaySafeHash(m.Account, digest), proof)
	if err != nil {
		return err
	}
	if byAccount {
		return nil
	}

	installed, err := module.IsInstalled(ctx, m.Account, m.EntityId)
	if err != nil {
		return err
	}
	if installed {
		magic, err := module.ValidateSignature(ctx, m.Account, m.EntityId, m.Account, digest, proof)
		if err != nil && !isSignatureFormatError(err) {
			return err
		}
		if err == nil && magic == types.ERC1271MagicValue {
			return nil
		}
	}

	a.logger.Sugar().Infow("Rejected unauthorized mutation",
		"operation", m.Operation,
		"module", m.Module,
		"account", m.Account.Hex(),
		"entityId", m.EntityId,
	)
	return errors.Wrapf(types.ErrUnauthorizedCaller, "%s of entity %d for %s", m.Operation, m.EntityId, m.Account.Hex())
}

func isSignatureFormatError(err error) bool {
	return errors.Is(err, types.ErrInvalidSignatureLength) || errors.Is(err, types.ErrInvalidSignatureOffset)
}
