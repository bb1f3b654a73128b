package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes the validation modules to hosts that cannot link them directly.

  Module lifecycle:
    POST /v1/install           { module, account, data, authorization }
    POST /v1/uninstall         { module, account, data, authorization }

  Validation (one call per validation function):
    POST /v1/validate/userop    { module, account, entityId, userOp, userOpHash } -> { validationData }
    POST /v1/validate/runtime   { module, account, entityId, sender, value, callData, authorization } -> { authorized }
    POST /v1/validate/signature { module, account, entityId, sender, digest, signature } -> { magicValue }

  Configuration:
    GET|POST /v1/multisig/ownership     owners and threshold of an entity
    POST     /v1/multisig/digests       actual and minimal digests of a user operation
    GET      /v1/single-signer/signer   current signer of an entity
    POST     /v1/single-signer/transfer
    POST     /v1/replay-safe-hash
    GET      /v1/accounts/entities      every signer and multisig configuration of an account

  Operations:
    GET /v1/modules, GET /health, GET /metrics

Requests that change configuration carry { expiresAt, signature } signed by the account itself
or accepted by the entity's current configuration; anything else is rejected with 403.

Every request gets an X-Request-ID (kept when the caller supplies one). When a rate limit is
configured, requests over the limit are rejected with 429 before reaching a handler.
*/

type Config struct {
	Port      int
	RateLimit float64 // requests per second, 0 disables limiting
	RateBurst int
}

type Server struct {
	registry   *validators.Registry
	store      persistence.IValidatorPersistence
	authorizer *validators.MutationAuthorizer
	limiter    *rate.Limiter
	logger     *zap.Logger
	httpServer *http.Server
}

func NewServer(
	cfg *Config,
	registry *validators.Registry,
	store persistence.IValidatorPersistence,
	authorizer *validators.MutationAuthorizer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		registry:   registry,
		store:      store,
		authorizer: authorizer,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/v1/install", s.handleInstall)
	mux.HandleFunc("/v1/uninstall", s.handleUninstall)

	mux.HandleFunc("/v1/validate/userop", s.handleValidateUserOp)
	mux.HandleFunc("/v1/validate/runtime", s.handleValidateRuntime)
	mux.HandleFunc("/v1/validate/signature", s.handleValidateSignature)

	mux.HandleFunc("/v1/multisig/ownership", s.handleOwnership)
	mux.HandleFunc("/v1/multisig/digests", s.handleDigests)
	mux.HandleFunc("/v1/single-signer/signer", s.handleGetSigner)
	mux.HandleFunc("/v1/single-signer/transfer", s.handleTransferSigner)
	mux.HandleFunc("/v1/replay-safe-hash", s.handleReplaySafeHash)
	mux.HandleFunc("/v1/accounts/entities", s.handleAccountEntities)

	mux.HandleFunc("/v1/modules", s.handleModules)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withRequestId(s.withRateLimit(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start serves in the background until Stop.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
