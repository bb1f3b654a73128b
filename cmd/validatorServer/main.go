package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/config"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/events"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence"
	badgerPersistence "github.com/Layr-Labs/eigenx-account-validators/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/persistence/memory"
	redisPersistence "github.com/Layr-Labs/eigenx-account-validators/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/quorum"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/server"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatureVerifier/erc1271Caller"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators/multisig"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators/singleSigner"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "validator-server",
		Usage: "Smart account validation modules over HTTP",
		Description: `Serves the single-signer and multisig validation modules for modular smart accounts.

This server implements:
- ERC-4337 user operation, runtime and ERC-1271 signature validation
- Weighted multisig quorum checks over actual and minimal user operation digests
- Per-entity signer and owner configuration with durable persistence
- Configuration change events to logs or Kafka`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvValidatorPort},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars:  []string{config.EnvValidatorChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "entry-point",
				Usage:   "ERC-4337 entry point address (defaults to the chain's v0.6 entry point)",
				EnvVars: []string{config.EnvValidatorEntryPoint},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL, enables ERC-1271 checks for contract owners",
				EnvVars: []string{config.EnvValidatorRPCURL},
			},
			&cli.IntFlag{
				Name:    "max-owners",
				Usage:   "Maximum owners per multisig entity (0 uses the default)",
				EnvVars: []string{config.EnvValidatorMaxOwners},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Requests per second accepted by the HTTP server (0 disables limiting)",
				EnvVars: []string{config.EnvValidatorRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Value:   50,
				Usage:   "Burst size for the HTTP rate limiter",
				EnvVars: []string{config.EnvValidatorRateBurst},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   string(config.PersistenceType_Memory),
				Usage:   "Persistence backend: memory, badger or redis",
				EnvVars: []string{config.EnvValidatorPersistence},
			},
			&cli.StringFlag{
				Name:    "badger-dir",
				Usage:   "Data directory for badger persistence",
				EnvVars: []string{config.EnvValidatorBadgerDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for redis persistence",
				EnvVars: []string{config.EnvValidatorRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvValidatorRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvValidatorRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every redis key",
				EnvVars: []string{config.EnvValidatorRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "events",
				Value:   string(config.EventsType_Log),
				Usage:   "Event sink: log or kafka",
				EnvVars: []string{config.EnvValidatorEvents},
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses",
				EnvVars: []string{config.EnvValidatorKafkaBrokers},
			},
			&cli.StringFlag{
				Name:    "kafka-topic",
				Value:   "account-validator-events",
				Usage:   "Kafka topic for configuration events",
				EnvVars: []string{config.EnvValidatorKafkaTopic},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvValidatorDebug},
			},
		},
		Action: runValidatorServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runValidatorServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseValidatorConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID, "entry_point", cfg.EntryPoint)

	store, err := newPersistence(&cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to create persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	sink, err := newEventSink(&cfg.Events, l)
	if err != nil {
		return fmt.Errorf("failed to create event sink: %w", err)
	}
	defer func() { _ = sink.Close() }()

	var contracts signatureVerifier.IContractSignatureChecker
	if cfg.RpcUrl != "" {
		client, err := ethclient.DialContext(c.Context, cfg.RpcUrl)
		if err != nil {
			return fmt.Errorf("failed to dial rpc: %w", err)
		}
		defer client.Close()
		caller, err := erc1271Caller.NewERC1271Caller(client, l)
		if err != nil {
			return fmt.Errorf("failed to create ERC-1271 caller: %w", err)
		}
		contracts = caller
	} else {
		l.Sugar().Warnw("No RPC URL configured, contract owners cannot sign")
	}
	verifier := signatureVerifier.NewSignatureVerifier(contracts, l)

	single, err := singleSigner.NewSingleSignerValidator(
		types.ModuleMetadata{Name: cfg.SingleSigner.Name, Version: cfg.SingleSigner.Version},
		store, verifier, sink, l,
	)
	if err != nil {
		return fmt.Errorf("failed to create single signer module: %w", err)
	}
	multi, err := multisig.NewMultisigValidator(&multisig.Config{
		Metadata:   types.ModuleMetadata{Name: cfg.Multisig.Name, Version: cfg.Multisig.Version},
		EntryPoint: cfg.EntryPointAddress(),
		ChainId:    new(big.Int).SetUint64(uint64(cfg.ChainID)),
		MaxOwners:  cfg.MaxOwners,
	}, store, quorum.NewChecker(verifier, l), sink, l)
	if err != nil {
		return fmt.Errorf("failed to create multisig module: %w", err)
	}

	registry, err := validators.NewRegistry(single, multi)
	if err != nil {
		return err
	}

	srv := server.NewServer(&server.Config{
		Port:      cfg.Port,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}, registry, store, validators.NewMutationAuthorizer(verifier, l), l)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Validator server running", "port", cfg.Port, "persistence", cfg.Persistence.Type, "events", cfg.Events.Type)
	l.Sugar().Infow("Available endpoints",
		"install", "POST /v1/install, /v1/uninstall",
		"validate", "POST /v1/validate/{userop,runtime,signature}",
		"multisig", "GET|POST /v1/multisig/ownership, POST /v1/multisig/digests",
		"single_signer", "GET /v1/single-signer/signer, POST /v1/single-signer/transfer",
		"accounts", "GET /v1/accounts/entities",
		"ops", "GET /v1/modules, /health, /metrics")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	l.Sugar().Infow("Shutting down validator server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func parseValidatorConfig(c *cli.Context) *config.ValidatorServerConfig {
	return &config.ValidatorServerConfig{
		Port:       c.Int("port"),
		ChainID:    config.ChainId(c.Uint64("chain-id")),
		EntryPoint: c.String("entry-point"),
		RpcUrl:     c.String("rpc-url"),
		MaxOwners:  c.Int("max-owners"),
		RateLimit:  c.Float64("rate-limit"),
		RateBurst:  c.Int("rate-burst"),
		Persistence: config.PersistenceConfig{
			Type:      config.PersistenceType(c.String("persistence")),
			BadgerDir: c.String("badger-dir"),
			Redis: config.RedisSettings{
				Address:   c.String("redis-address"),
				Password:  c.String("redis-password"),
				DB:        c.Int("redis-db"),
				KeyPrefix: c.String("redis-key-prefix"),
			},
		},
		Events: config.EventsConfig{
			Type:         config.EventsType(c.String("events")),
			KafkaBrokers: c.StringSlice("kafka-brokers"),
			KafkaTopic:   c.String("kafka-topic"),
		},
		Debug: c.Bool("debug"),
	}
}

func newPersistence(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IValidatorPersistence, error) {
	switch cfg.Type {
	case config.PersistenceType_Badger:
		return badgerPersistence.NewBadgerPersistence(cfg.BadgerDir, l)
	case config.PersistenceType_Redis:
		return redisPersistence.NewRedisPersistence(&redisPersistence.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return memory.NewMemoryPersistence(l), nil
	}
}

func newEventSink(cfg *config.EventsConfig, l *zap.Logger) (events.IEventSink, error) {
	switch cfg.Type {
	case config.EventsType_Kafka:
		return events.NewKafkaSink(&events.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			ClientId: "account-validators",
		}, l)
	default:
		return events.NewLogSink(l), nil
	}
}
