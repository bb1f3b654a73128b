package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/digest"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type ownershipManager interface {
	validators.IValidationModule
	UpdateOwnership(ctx context.Context, account common.Address, entityId types.EntityId, add []types.Owner, remove []common.Address, newThreshold uint64) error
	OwnershipInfoOf(ctx context.Context, account common.Address, entityId types.EntityId) ([]types.Owner, uint64, error)
}

type digestBuilder interface {
	Digests(op *types.UserOperation) (*digest.Digests, error)
}

type signerManager interface {
	validators.IValidationModule
	TransferSigner(ctx context.Context, account common.Address, entityId types.EntityId, newSigner common.Address) error
	SignerOf(ctx context.Context, account common.Address, entityId types.EntityId) (common.Address, error)
}

type replaySafeHasher interface {
	ReplaySafeHash(account common.Address, raw common.Hash) common.Hash
}

var errUnsupportedOperation = errors.New("module does not support this operation")

// findModule resolves name, or the first module implementing T when name is empty.
func findModule[T any](s *Server, name string) (T, error) {
	var zero T
	if name != "" {
		m, err := s.registry.Get(name)
		if err != nil {
			return zero, err
		}
		typed, ok := m.(T)
		if !ok {
			return zero, errors.Wrapf(errUnsupportedOperation, "%q", name)
		}
		return typed, nil
	}
	for _, m := range s.registry.List() {
		if typed, ok := m.(T); ok {
			return typed, nil
		}
	}
	return zero, errors.Wrap(validators.ErrModuleNotFound, "no module supports this operation")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, validators.ErrModuleNotFound), errors.Is(err, types.ErrNotInstalled):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnauthorizedCaller):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, errUnsupportedOperation),
		errors.Is(err, types.ErrInvalidInstallData),
		errors.Is(err, types.ErrInvalidThreshold),
		errors.Is(err, types.ErrInvalidOwner),
		errors.Is(err, types.ErrDuplicateOwner),
		errors.Is(err, types.ErrOwnerDoesNotExist),
		errors.Is(err, types.ErrEmptyOwnersNotAllowed),
		errors.Is(err, types.ErrZeroOwnersInputNotAllowed),
		errors.Is(err, types.ErrTooManyOwners),
		errors.Is(err, types.ErrInvalidSignatureLength),
		errors.Is(err, types.ErrInvalidSignatureOffset),
		errors.Is(err, types.ErrInvalidDigest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Request failed", "requestId", RequestId(r.Context()), "path", r.URL.Path, "error", err)
		http.Error(w, "Internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func entityQuery(r *http.Request) (common.Address, types.EntityId, error) {
	q := r.URL.Query()
	account := q.Get("account")
	if !common.IsHexAddress(account) {
		return common.Address{}, 0, fmt.Errorf("invalid account %q", account)
	}
	entityId, err := strconv.ParseUint(q.Get("entityId"), 10, 32)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("invalid entityId: %v", err)
	}
	return common.HexToAddress(account), types.EntityId(entityId), nil
}

// authorize checks the request's authorization for one configuration change of module.
func (s *Server) authorize(r *http.Request, module validators.IValidationModule, operation string, account common.Address, entityId types.EntityId, payload []byte, auth Authorization) error {
	return s.authorizer.Authorize(r.Context(), module, &validators.Mutation{
		Operation: operation,
		Module:    module.Metadata().Name,
		Account:   account,
		EntityId:  entityId,
		Payload:   payload,
		ExpiresAt: auth.ExpiresAt,
	}, auth.Signature)
}

// lifecycleModule resolves the module of an install or uninstall request and authorizes it.
func (s *Server) lifecycleModule(r *http.Request, operation string, req *InstallRequest) (validators.IValidationModule, error) {
	module, err := s.registry.Get(req.Module)
	if err != nil {
		return nil, err
	}
	entityId, err := validators.EntityIdOf(req.Data)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(r, module, operation, req.Account, entityId, req.Data, req.Authorization); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if !decode(w, r, &req) {
		return
	}
	module, err := s.lifecycleModule(r, validators.MutationInstall, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := module.OnInstall(r.Context(), req.Account, req.Data); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Sugar().Infow("Module installed", "requestId", RequestId(r.Context()), "module", req.Module, "account", req.Account.Hex())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	var req InstallRequest
	if !decode(w, r, &req) {
		return
	}
	module, err := s.lifecycleModule(r, validators.MutationUninstall, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := module.OnUninstall(r.Context(), req.Account, req.Data); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Sugar().Infow("Module uninstalled", "requestId", RequestId(r.Context()), "module", req.Module, "account", req.Account.Hex())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, moduleName string, req *validators.Request) {
	module, err := s.registry.Get(moduleName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := validators.Dispatch(r.Context(), module, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, res)
}

func (s *Server) handleValidateUserOp(w http.ResponseWriter, r *http.Request) {
	var req UserOpValidationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserOp == nil {
		http.Error(w, "userOp is required", http.StatusBadRequest)
		return
	}
	s.dispatch(w, r, req.Module, &validators.Request{
		Kind:       validators.FunctionKindUserOp,
		Account:    req.Account,
		EntityId:   req.EntityId,
		UserOp:     req.UserOp,
		UserOpHash: req.UserOpHash,
	})
}

func (s *Server) handleValidateRuntime(w http.ResponseWriter, r *http.Request) {
	var req RuntimeValidationRequest
	if !decode(w, r, &req) {
		return
	}
	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}
	s.dispatch(w, r, req.Module, &validators.Request{
		Kind:          validators.FunctionKindRuntime,
		Account:       req.Account,
		EntityId:      req.EntityId,
		Sender:        req.Sender,
		Value:         value,
		CallData:      req.CallData,
		Authorization: req.Authorization,
	})
}

func (s *Server) handleValidateSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureValidationRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, req.Module, &validators.Request{
		Kind:      validators.FunctionKindSignature,
		Account:   req.Account,
		EntityId:  req.EntityId,
		Sender:    req.Sender,
		Digest:    req.Digest,
		Signature: req.Signature,
	})
}

func (s *Server) handleOwnership(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		account, entityId, err := entityQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		manager, err := findModule[ownershipManager](s, r.URL.Query().Get("module"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		owners, threshold, err := manager.OwnershipInfoOf(r.Context(), account, entityId)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, &OwnershipResponse{Account: account, EntityId: entityId, Owners: owners, Threshold: threshold})

	case http.MethodPost:
		var req OwnershipUpdateRequest
		if !decode(w, r, &req) {
			return
		}
		manager, err := findModule[ownershipManager](s, req.Module)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		payload := validators.OwnershipPayload(req.Add, req.Remove, req.Threshold)
		if err := s.authorize(r, manager, validators.MutationUpdateOwnership, req.Account, req.EntityId, payload, req.Authorization); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := manager.UpdateOwnership(r.Context(), req.Account, req.EntityId, req.Add, req.Remove, req.Threshold); err != nil {
			s.writeError(w, r, err)
			return
		}
		owners, threshold, err := manager.OwnershipInfoOf(r.Context(), req.Account, req.EntityId)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, &OwnershipResponse{Account: req.Account, EntityId: req.EntityId, Owners: owners, Threshold: threshold})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDigests(w http.ResponseWriter, r *http.Request) {
	var req DigestsRequest
	if !decode(w, r, &req) {
		return
	}
	builder, err := findModule[digestBuilder](s, req.Module)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	digests, err := builder.Digests(req.UserOp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, digests)
}

func (s *Server) handleGetSigner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	account, entityId, err := entityQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	manager, err := findModule[signerManager](s, r.URL.Query().Get("module"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	signer, err := manager.SignerOf(r.Context(), account, entityId)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, &SignerResponse{Account: account, EntityId: entityId, Signer: signer})
}

func (s *Server) handleTransferSigner(w http.ResponseWriter, r *http.Request) {
	var req SignerTransferRequest
	if !decode(w, r, &req) {
		return
	}
	manager, err := findModule[signerManager](s, req.Module)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := validators.TransferPayload(req.Signer)
	if err := s.authorize(r, manager, validators.MutationTransferSigner, req.Account, req.EntityId, payload, req.Authorization); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := manager.TransferSigner(r.Context(), req.Account, req.EntityId, req.Signer); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, &SignerResponse{Account: req.Account, EntityId: req.EntityId, Signer: req.Signer})
}

func (s *Server) handleReplaySafeHash(w http.ResponseWriter, r *http.Request) {
	var req ReplaySafeHashRequest
	if !decode(w, r, &req) {
		return
	}
	hasher, err := findModule[replaySafeHasher](s, req.Module)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, &ReplaySafeHashResponse{Hash: hasher.ReplaySafeHash(req.Account, req.Hash)})
}

func (s *Server) handleAccountEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := r.URL.Query().Get("account")
	if !common.IsHexAddress(raw) {
		http.Error(w, fmt.Sprintf("invalid account %q", raw), http.StatusBadRequest)
		return
	}
	account := common.HexToAddress(raw)
	signers, err := s.store.ListSigners(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ownerships, err := s.store.ListOwnerships(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if signers == nil {
		signers = []*persistence.SignerRecord{}
	}
	if ownerships == nil {
		ownerships = []*persistence.OwnershipRecord{}
	}
	s.writeJSON(w, &AccountEntitiesResponse{Account: account, Signers: signers, Ownerships: ownerships})
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	standard := [][4]byte{validators.ERC165InterfaceId, validators.ModuleInterfaceId, validators.ValidationModuleInterfaceId}
	modules := make([]ModuleInfo, 0)
	for _, m := range s.registry.List() {
		info := ModuleInfo{ModuleMetadata: m.Metadata(), InterfaceIds: make([]string, 0, len(standard))}
		for _, id := range standard {
			if m.SupportsInterface(id) {
				info.InterfaceIds = append(info.InterfaceIds, "0x"+common.Bytes2Hex(id[:]))
			}
		}
		modules = append(modules, info)
	}
	s.writeJSON(w, modules)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(); err != nil {
		s.logger.Sugar().Warnw("Health check failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(&HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	s.writeJSON(w, &HealthResponse{Status: "ok"})
}
