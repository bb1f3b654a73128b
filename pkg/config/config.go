package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for validator server configuration
const (
	EnvValidatorPort           = "VALIDATOR_PORT"
	EnvValidatorChainID        = "VALIDATOR_CHAIN_ID"
	EnvValidatorEntryPoint     = "VALIDATOR_ENTRY_POINT"
	EnvValidatorRPCURL         = "VALIDATOR_RPC_URL"
	EnvValidatorMaxOwners      = "VALIDATOR_MAX_OWNERS"
	EnvValidatorRateLimit      = "VALIDATOR_RATE_LIMIT"
	EnvValidatorRateBurst      = "VALIDATOR_RATE_BURST"
	EnvValidatorDebug          = "VALIDATOR_DEBUG"
	EnvValidatorPersistence    = "VALIDATOR_PERSISTENCE"
	EnvValidatorBadgerDir      = "VALIDATOR_BADGER_DIR"
	EnvValidatorRedisAddress   = "VALIDATOR_REDIS_ADDRESS"
	EnvValidatorRedisPassword  = "VALIDATOR_REDIS_PASSWORD"
	EnvValidatorRedisDB        = "VALIDATOR_REDIS_DB"
	EnvValidatorRedisKeyPrefix = "VALIDATOR_REDIS_KEY_PREFIX"
	EnvValidatorEvents         = "VALIDATOR_EVENTS"
	EnvValidatorKafkaBrokers   = "VALIDATOR_KAFKA_BROKERS"
	EnvValidatorKafkaTopic     = "VALIDATOR_KAFKA_TOPIC"
	EnvValidatorOwnerKey       = "VALIDATOR_OWNER_PRIVATE_KEY"
	EnvValidatorKMSKeyId       = "VALIDATOR_KMS_KEY_ID"
	EnvValidatorAWSRegion      = "VALIDATOR_AWS_REGION"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// EntryPointV06 is the canonical ERC-4337 v0.6 entry point, deployed at the same address on
// every supported chain.
const EntryPointV06 = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"

var EntryPoints = map[ChainId]string{
	ChainId_EthereumMainnet: EntryPointV06,
	ChainId_EthereumSepolia: EntryPointV06,
	ChainId_EthereumAnvil:   EntryPointV06, // fork of ethereum sepolia
}

func GetEntryPointForChainId(chainId ChainId) (common.Address, error) {
	addr, ok := EntryPoints[chainId]
	if !ok {
		return common.Address{}, fmt.Errorf("unsupported chain ID: %d", chainId)
	}
	return common.HexToAddress(addr), nil
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type RedisSettings struct {
	Address   string `json:"address"`
	Password  string `json:"-"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"keyPrefix"`
}

type PersistenceConfig struct {
	Type      PersistenceType `json:"type"`
	BadgerDir string          `json:"badgerDir"`
	Redis     RedisSettings   `json:"redis"`
}

func (pc *PersistenceConfig) Validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.BadgerDir == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerDir"), "badgerDir is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis", "address"), "address is required for redis persistence"))
		}
		if pc.Redis.DB < 0 || pc.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis", "db"), pc.Redis.DB, "db must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type,
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}
	return allErrors
}

type EventsType string

const (
	EventsType_Log   EventsType = "log"
	EventsType_Kafka EventsType = "kafka"
)

type EventsConfig struct {
	Type         EventsType `json:"type"`
	KafkaBrokers []string   `json:"kafkaBrokers"`
	KafkaTopic   string     `json:"kafkaTopic"`
}

func (ec *EventsConfig) Validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch ec.Type {
	case EventsType_Log:
	case EventsType_Kafka:
		if len(ec.KafkaBrokers) == 0 {
			allErrors = append(allErrors, field.Required(path.Child("kafkaBrokers"), "at least one broker is required for kafka events"))
		}
		if ec.KafkaTopic == "" {
			allErrors = append(allErrors, field.Required(path.Child("kafkaTopic"), "kafkaTopic is required for kafka events"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), ec.Type,
			[]string{string(EventsType_Log), string(EventsType_Kafka)}))
	}
	return allErrors
}

// ModuleConfig overrides a module's advertised name and version. Empty fields keep the module
// defaults. The name and version also seed the module's EIP-712 domain.
type ModuleConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ValidatorServerConfig represents the complete configuration for a validator server
type ValidatorServerConfig struct {
	Port int `json:"port"`

	ChainID    ChainId   `json:"chain_id"`
	ChainName  ChainName `json:"chain_name"`
	EntryPoint string    `json:"entry_point"` // defaults to the chain's v0.6 entry point
	RpcUrl     string    `json:"rpc_url"`     // optional, enables ERC-1271 owner checks

	MaxOwners int     `json:"max_owners"`
	RateLimit float64 `json:"rate_limit"` // requests per second, 0 disables limiting
	RateBurst int     `json:"rate_burst"`

	Persistence PersistenceConfig `json:"persistence"`
	Events      EventsConfig      `json:"events"`

	SingleSigner ModuleConfig `json:"single_signer"`
	Multisig     ModuleConfig `json:"multisig"`

	Debug bool `json:"debug"`
}

// Validate checks every field and reports all problems at once. On success ChainName and an
// empty EntryPoint are filled from the chain table.
func (c *ValidatorServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), c.ChainID,
			fmt.Sprintf("unsupported chain ID. Supported: %s", GetSupportedChainIDsString())))
	}

	if c.EntryPoint != "" && !common.IsHexAddress(c.EntryPoint) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("entryPoint"), c.EntryPoint, "invalid address format"))
	}
	if c.MaxOwners < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxOwners"), c.MaxOwners, "maxOwners cannot be negative"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "rateLimit cannot be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateBurst"), c.RateBurst, "rateBurst must be at least 1 when rate limiting"))
	}

	allErrors = append(allErrors, c.Persistence.Validate(field.NewPath("persistence"))...)
	allErrors = append(allErrors, c.Events.Validate(field.NewPath("events"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}

	c.ChainName = chainName
	if c.EntryPoint == "" {
		entryPoint, err := GetEntryPointForChainId(c.ChainID)
		if err != nil {
			return err
		}
		c.EntryPoint = entryPoint.Hex()
	}
	return nil
}

// EntryPointAddress returns the configured entry point. Call after Validate.
func (c *ValidatorServerConfig) EntryPointAddress() common.Address {
	return common.HexToAddress(c.EntryPoint)
}
