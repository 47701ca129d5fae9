// Package config holds the daemon configuration, loaded from config.yaml in
// the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// Config holds all configuration for the daemon.
type Config struct {
	// Network is the network (mainnet or testnet).
	Network chain.Network `yaml:"network"`

	// API is the JSON-RPC / WebSocket listener.
	API APIConfig `yaml:"api"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Bridge is the hardware wallet bridge process.
	Bridge BridgeConfig `yaml:"bridge"`

	// Detection tunes standalone ledger chain detection.
	Detection DetectionConfig `yaml:"detection"`

	// Balances tunes balance fetching.
	Balances BalancesConfig `yaml:"balances"`

	// Backends holds blockchain API configurations per chain symbol.
	// If not specified, defaults to public APIs (mempool.space, etc.)
	Backends map[string]*backend.Config `yaml:"backends,omitempty"`
}

// APIConfig holds the RPC listener settings.
type APIConfig struct {
	// Listen is the host:port of the JSON-RPC server.
	Listen string `yaml:"listen"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// File is the log file path (empty for stdout).
	File string `yaml:"file"`
}

// BridgeConfig holds hardware bridge settings.
type BridgeConfig struct {
	// URL is the WebSocket endpoint of the device bridge.
	URL string `yaml:"url"`

	// RequestTimeout bounds a single device call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DetectionConfig holds chain detection settings.
type DetectionConfig struct {
	// MaxAttempts is the number of bridge calls before detection gives up.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryInterval is the wait between attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// Timeout bounds a whole detection run. Zero means
	// max_attempts × retry_interval.
	Timeout time.Duration `yaml:"timeout"`
}

// BalancesConfig holds balance fetch settings.
type BalancesConfig struct {
	// RequestTimeout bounds a single backend request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RateLimit is the per-backend request rate (requests/second, 0 = unlimited).
	RateLimit float64 `yaml:"rate_limit"`

	// Concurrency is the number of chains refreshed in parallel.
	Concurrency int `yaml:"concurrency"`
}

// IsTestnet returns true if running on testnet.
func (c *Config) IsTestnet() bool {
	return c.Network == chain.Testnet
}

// GetBackendConfig returns the backend config for a chain symbol.
// Returns default config if not explicitly configured.
func (c *Config) GetBackendConfig(symbol string) *backend.Config {
	if c.Backends != nil {
		if cfg, ok := c.Backends[symbol]; ok && cfg != nil {
			return cfg
		}
	}
	// Return default config
	defaults := backend.DefaultConfigs()
	if cfg, ok := defaults[symbol]; ok {
		return cfg
	}
	return nil
}

// GetBackendURL returns the appropriate backend URL for the chain and network.
func (c *Config) GetBackendURL(symbol string) string {
	cfg := c.GetBackendConfig(symbol)
	if cfg == nil {
		return ""
	}
	return cfg.URL(c.Network)
}

// BackendOptions returns the request options shared by all backends.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		Timeout:   c.Balances.RequestTimeout,
		RateLimit: c.Balances.RateLimit,
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Network {
	case chain.Mainnet, chain.Testnet:
	default:
		return fmt.Errorf("invalid network: %q", c.Network)
	}
	if c.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	if c.Detection.MaxAttempts < 1 {
		return fmt.Errorf("detection.max_attempts must be at least 1")
	}
	if c.Detection.RetryInterval < 0 {
		return fmt.Errorf("detection.retry_interval must not be negative")
	}
	if c.Detection.Timeout < 0 {
		return fmt.Errorf("detection.timeout must not be negative")
	}
	if c.Balances.Concurrency < 1 {
		return fmt.Errorf("balances.concurrency must be at least 1")
	}
	for symbol, b := range c.Backends {
		if _, err := chain.Parse(symbol); err != nil {
			return fmt.Errorf("backends: %w", err)
		}
		if b == nil || b.URL(c.Network) == "" {
			return fmt.Errorf("backends.%s: no %s url", symbol, c.Network)
		}
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: chain.Mainnet,
		API: APIConfig{
			Listen: "127.0.0.1:8546",
		},
		Storage: StorageConfig{
			DataDir: "~/.asgardex",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Bridge: BridgeConfig{
			URL:            "ws://127.0.0.1:21325/ledger",
			RequestTimeout: 30 * time.Second,
		},
		Detection: DetectionConfig{
			MaxAttempts:   30,
			RetryInterval: time.Second,
		},
		Balances: BalancesConfig{
			RequestTimeout: 30 * time.Second,
			RateLimit:      5,
			Concurrency:    4,
		},
	}
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# asgardexd Configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(ExpandPath(dataDir), ConfigFileName)
}

// ExpandPath expands ~ to home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
