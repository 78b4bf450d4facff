// Package config loads the registry configuration file.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/ajna-inc/kanon-registry/ledger"
	"github.com/ajna-inc/kanon-registry/signingkey"
)

// DefaultResourceCacheSize is the number of decoded resources kept in memory.
const DefaultResourceCacheSize = 1024

// Config is the top-level configuration of the registry.
type Config struct {
	// Networks lists every ledger network the registry may use.
	Networks []NetworkConfig `yaml:"networks"`

	// ContractAddress overrides the registry contract address on every network.
	ContractAddress string `yaml:"contract_address"`

	Timeouts Timeouts `yaml:"timeouts"`

	// GasLimit disables gas estimation when set.
	GasLimit uint64 `yaml:"gas_limit"`

	// ResourceCacheSize bounds the resolver cache. Zero means the default,
	// a negative value disables caching.
	ResourceCacheSize int `yaml:"resource_cache_size"`

	Vault          VaultConfig          `yaml:"vault"`
	SecretsManager SecretsManagerConfig `yaml:"secrets_manager"`
}

// NetworkConfig configures one ledger network.
type NetworkConfig struct {
	Name string `yaml:"name"`

	// RPCEndpoint may be omitted for networks with a built-in default.
	RPCEndpoint string `yaml:"rpc_endpoint"`

	// SigningKey is a hex key or a reference understood by the signingkey package.
	SigningKey string `yaml:"signing_key"`
}

// Timeouts bound ledger operations.
type Timeouts struct {
	Dial         time.Duration `yaml:"dial"`
	Read         time.Duration `yaml:"read"`
	Write        time.Duration `yaml:"write"`
	Confirmation time.Duration `yaml:"confirmation"`
}

type VaultConfig struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
}

type SecretsManagerConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads and validates a configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := ledger.DefaultClientConfig()
	if config.Timeouts.Read == 0 {
		config.Timeouts.Read = defaults.ReadTimeout
	}
	if config.Timeouts.Write == 0 {
		config.Timeouts.Write = defaults.WriteTimeout
	}
	if config.Timeouts.Confirmation == 0 {
		config.Timeouts.Confirmation = defaults.ConfirmationTimeout
	}
	if config.ResourceCacheSize == 0 {
		config.ResourceCacheSize = DefaultResourceCacheSize
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks that the configuration is usable. Signing keys are only
// checked for presence since references are resolved later.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}

	seen := make(map[string]bool, len(c.Networks))
	for i, network := range c.Networks {
		name := ledger.NormalizeNetwork(network.Name)
		if name == "" {
			return fmt.Errorf("network %d: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("network %q: configured more than once", network.Name)
		}
		seen[name] = true

		if network.SigningKey == "" {
			return fmt.Errorf("network %q: signing_key is required", network.Name)
		}
		if network.RPCEndpoint == "" && ledger.DefaultRPCEndpoints[name] == "" {
			return fmt.Errorf("network %q: rpc_endpoint is required", network.Name)
		}
	}

	if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("contract_address %q is not an address", c.ContractAddress)
	}

	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Confirmation < 0 || c.Timeouts.Dial < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}

// SigningKeyOptions returns the secret store settings for signing key references.
func (c *Config) SigningKeyOptions() signingkey.Options {
	return signingkey.Options{
		VaultAddress: c.Vault.Address,
		VaultToken:   c.Vault.Token,
		AWSEndpoint:  c.SecretsManager.Endpoint,
		AWSRegion:    c.SecretsManager.Region,
	}
}

// PoolConfig resolves every signing key and returns the connection pool settings.
func (c *Config) PoolConfig(ctx context.Context, keys *signingkey.Resolver) (ledger.PoolConfig, error) {
	networks := make([]ledger.NetworkConfig, 0, len(c.Networks))
	for _, network := range c.Networks {
		key, err := keys.Resolve(ctx, network.SigningKey)
		if err != nil {
			return ledger.PoolConfig{}, fmt.Errorf("network %q: %w", network.Name, err)
		}
		networks = append(networks, ledger.NetworkConfig{
			Name:        network.Name,
			RPCEndpoint: network.RPCEndpoint,
			SigningKey:  key,
		})
	}

	return ledger.PoolConfig{
		Networks:    networks,
		DialTimeout: c.Timeouts.Dial,
	}, nil
}

// ClientConfig returns the contract call settings.
func (c *Config) ClientConfig() ledger.ClientConfig {
	cfg := ledger.DefaultClientConfig()
	if c.ContractAddress != "" {
		cfg.ContractAddress = common.HexToAddress(c.ContractAddress)
	}
	cfg.ReadTimeout = c.Timeouts.Read
	cfg.WriteTimeout = c.Timeouts.Write
	cfg.ConfirmationTimeout = c.Timeouts.Confirmation
	cfg.GasLimit = c.GasLimit
	return cfg
}
