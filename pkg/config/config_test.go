package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ValidatorServerConfig {
	return &ValidatorServerConfig{
		Port:        8080,
		ChainID:     ChainId_EthereumSepolia,
		Persistence: PersistenceConfig{Type: PersistenceType_Memory},
		Events:      EventsConfig{Type: EventsType_Log},
	}
}

func Test_ValidatorServerConfig(t *testing.T) {
	t.Run("Should fill chain name and entry point", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, ChainName_EthereumSepolia, cfg.ChainName)
		assert.Equal(t, common.HexToAddress(EntryPointV06), cfg.EntryPointAddress())
	})

	t.Run("Should keep an explicit entry point", func(t *testing.T) {
		cfg := validConfig()
		cfg.EntryPoint = "0x0000000000000000000000000000000000000001"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, common.HexToAddress("0x01"), cfg.EntryPointAddress())
	})

	tests := []struct {
		name   string
		mutate func(c *ValidatorServerConfig)
		field  string
	}{
		{"Should reject an out of range port", func(c *ValidatorServerConfig) { c.Port = 0 }, "port"},
		{"Should reject an unsupported chain", func(c *ValidatorServerConfig) { c.ChainID = 5 }, "chainId"},
		{"Should reject a malformed entry point", func(c *ValidatorServerConfig) { c.EntryPoint = "0x1234" }, "entryPoint"},
		{"Should reject negative max owners", func(c *ValidatorServerConfig) { c.MaxOwners = -1 }, "maxOwners"},
		{"Should require a burst when rate limiting", func(c *ValidatorServerConfig) { c.RateLimit = 10 }, "rateBurst"},
		{"Should require a badger directory", func(c *ValidatorServerConfig) {
			c.Persistence = PersistenceConfig{Type: PersistenceType_Badger}
		}, "persistence.badgerDir"},
		{"Should require a redis address", func(c *ValidatorServerConfig) {
			c.Persistence = PersistenceConfig{Type: PersistenceType_Redis}
		}, "persistence.redis.address"},
		{"Should reject an unknown persistence type", func(c *ValidatorServerConfig) {
			c.Persistence = PersistenceConfig{Type: "postgres"}
		}, "persistence.type"},
		{"Should require kafka brokers", func(c *ValidatorServerConfig) {
			c.Events = EventsConfig{Type: EventsType_Kafka, KafkaTopic: "validators"}
		}, "events.kafkaBrokers"},
		{"Should reject an unknown events type", func(c *ValidatorServerConfig) {
			c.Events = EventsConfig{Type: "sqs"}
		}, "events.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
			assert.Empty(t, cfg.ChainName)
		})
	}

	t.Run("Should report every problem at once", func(t *testing.T) {
		cfg := validConfig()
		cfg.Port = 70000
		cfg.ChainID = 5
		cfg.Events = EventsConfig{Type: EventsType_Kafka}
		err := cfg.Validate()
		require.Error(t, err)
		for _, f := range []string{"port", "chainId", "events.kafkaBrokers", "events.kafkaTopic"} {
			assert.Contains(t, err.Error(), f)
		}
	})
}

func Test_GetEntryPointForChainId(t *testing.T) {
	for _, id := range GetSupportedChainIDs() {
		addr, err := GetEntryPointForChainId(id)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(EntryPointV06), addr)
	}
	_, err := GetEntryPointForChainId(5)
	require.Error(t, err)
}
