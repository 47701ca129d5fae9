// Package backend provides read-only blockchain API access for balance reads.
// Nothing in this package sees key material.
package backend

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// Common errors
var (
	ErrNotConnected       = errors.New("backend not connected")
	ErrAddressNotFound    = errors.New("address not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnsupportedBackend = errors.New("unsupported backend type")
	ErrUnsupportedAsset   = errors.New("asset not supported by backend")
	ErrInvalidResponse    = errors.New("invalid backend response")
)

// Type represents the backend type.
type Type string

const (
	TypeMempool   Type = "mempool"   // mempool.space API
	TypeBlockbook Type = "blockbook" // Trezor Blockbook
	TypeEVM       Type = "evm"       // EVM JSON-RPC node
	TypeCosmos    Type = "cosmos"    // Cosmos SDK LCD (REST)
	TypeTronGrid  Type = "trongrid"  // TronGrid REST API
)

// BalanceType selects which part of an account balance is reported.
type BalanceType string

const (
	BalanceAll       BalanceType = "all"       // confirmed plus pending
	BalanceConfirmed BalanceType = "confirmed" // confirmed only
)

// ParseBalanceType parses a balance type. Empty means BalanceAll.
func ParseBalanceType(s string) (BalanceType, error) {
	switch BalanceType(s) {
	case "", BalanceAll:
		return BalanceAll, nil
	case BalanceConfirmed:
		return BalanceConfirmed, nil
	}
	return "", fmt.Errorf("unknown balance type: %s", s)
}

// Balance is the amount of one asset held by an address, in base units.
type Balance struct {
	Asset  chain.Asset `json:"asset"`
	Amount *big.Int    `json:"amount"`
}

// Backend defines the interface for blockchain data providers.
type Backend interface {
	// Type returns the backend type (mempool, evm, etc.)
	Type() Type

	// Connect establishes connection to the backend.
	Connect(ctx context.Context) error

	// Close closes the connection.
	Close() error

	// IsConnected returns true if connected.
	IsConnected() bool

	// Balances returns one balance per requested asset, in request order.
	// Assets the address has never held are reported as zero. An asset the
	// backend cannot query fails the whole call with ErrUnsupportedAsset.
	Balances(ctx context.Context, address string, assets []chain.Asset, bt BalanceType) ([]Balance, error)
}

// Options tunes the HTTP behaviour shared by all backends.
type Options struct {
	// Timeout bounds a single request. Zero means 30s.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64

	// Burst is the limiter bucket size. Zero means 1.
	Burst int
}

const defaultTimeout = 30 * time.Second

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

// Config contains backend configuration.
type Config struct {
	Type       Type   `yaml:"type"`
	MainnetURL string `yaml:"mainnet"`
	TestnetURL string `yaml:"testnet"`

	// Optional settings
	Timeout   int     `yaml:"timeout,omitempty"`    // seconds, default 30
	RateLimit float64 `yaml:"rate_limit,omitempty"` // requests per second
}

// URL returns the endpoint for the network.
func (c *Config) URL(network chain.Network) string {
	if network == chain.Testnet {
		return c.TestnetURL
	}
	return c.MainnetURL
}

// DefaultConfigs returns default backend configurations for all supported chains.
func DefaultConfigs() map[string]*Config {
	return map[string]*Config{
		"BTC": {
			Type:       TypeMempool,
			MainnetURL: "https://mempool.space/api",
			TestnetURL: "https://mempool.space/testnet4/api",
		},
		"LTC": {
			Type:       TypeMempool,
			MainnetURL: "https://litecoinspace.org/api",
			TestnetURL: "https://litecoinspace.org/testnet/api",
		},
		"BCH": {
			Type:       TypeBlockbook,
			MainnetURL: "https://bch1.trezor.io/api/v2",
			TestnetURL: "https://tbch4.trezor.io/api/v2",
		},
		"DASH": {
			Type:       TypeBlockbook,
			MainnetURL: "https://dash1.trezor.io/api/v2",
			TestnetURL: "https://dash1.trezor.io/api/v2", // No public testnet
		},
		"DOGE": {
			Type:       TypeBlockbook,
			MainnetURL: "https://doge1.trezor.io/api/v2",
			TestnetURL: "https://doge1.trezor.io/api/v2", // No public testnet
		},
		"ETH": {
			Type:       TypeEVM,
			MainnetURL: "https://eth.llamarpc.com",
			TestnetURL: "https://ethereum-sepolia-rpc.publicnode.com",
		},
		"BSC": {
			Type:       TypeEVM,
			MainnetURL: "https://bsc-dataseed.binance.org",
			TestnetURL: "https://data-seed-prebsc-1-s1.binance.org:8545",
		},
		"ARB": {
			Type:       TypeEVM,
			MainnetURL: "https://arb1.arbitrum.io/rpc",
			TestnetURL: "https://sepolia-rollup.arbitrum.io/rpc",
		},
		"BASE": {
			Type:       TypeEVM,
			MainnetURL: "https://mainnet.base.org",
			TestnetURL: "https://sepolia.base.org",
		},
		"AVAX": {
			Type:       TypeEVM,
			MainnetURL: "https://api.avax.network/ext/bc/C/rpc",
			TestnetURL: "https://api.avax-test.network/ext/bc/C/rpc",
		},
		"THOR": {
			Type:       TypeCosmos,
			MainnetURL: "https://thornode.ninerealms.com",
			TestnetURL: "https://stagenet-thornode.ninerealms.com",
		},
		"GAIA": {
			Type:       TypeCosmos,
			MainnetURL: "https://cosmos-rest.publicnode.com",
			TestnetURL: "https://rest.sentry-01.theta-testnet.polypore.xyz",
		},
		"TRON": {
			Type:       TypeTronGrid,
			MainnetURL: "https://api.trongrid.io",
			TestnetURL: "https://nile.trongrid.io",
		},
	}
}

// New builds the backend described by cfg for chain c on network.
func New(c chain.Chain, cfg *Config, network chain.Network, opts Options) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no config for %s", ErrUnsupportedBackend, c)
	}
	url := cfg.URL(network)
	if url == "" {
		return nil, fmt.Errorf("no %s endpoint configured for %s", network, c)
	}
	if cfg.Timeout > 0 {
		opts.Timeout = time.Duration(cfg.Timeout) * time.Second
	}
	if cfg.RateLimit > 0 {
		opts.RateLimit = cfg.RateLimit
	}

	switch cfg.Type {
	case TypeMempool:
		return NewMempoolBackend(url, opts), nil
	case TypeBlockbook:
		return NewBlockbookBackend(url, opts), nil
	case TypeEVM:
		return NewEVMBackend(url, opts), nil
	case TypeCosmos:
		cb, err := NewCosmosBackend(url, c, network, opts)
		if err != nil {
			return nil, err
		}
		return cb, nil
	case TypeTronGrid:
		return NewTronGridBackend(url, opts), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Type)
}

// Registry holds backend instances by chain.
type Registry struct {
	mu       sync.RWMutex
	backends map[chain.Chain]Backend
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[chain.Chain]Backend),
	}
}

// NewRegistryFromConfig creates a registry with one backend per configured
// chain. configs is keyed by chain symbol; chains missing from it, or every
// chain when configs is nil, fall back to DefaultConfigs.
func NewRegistryFromConfig(configs map[string]*Config, network chain.Network, opts Options) (*Registry, error) {
	r := NewRegistry()
	defaults := DefaultConfigs()

	for _, c := range chain.Supported() {
		cfg, ok := configs[c.String()]
		if !ok || cfg == nil {
			cfg = defaults[c.String()]
		}
		if cfg == nil {
			continue
		}
		b, err := New(c, cfg, network, opts)
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", c, err)
		}
		r.Register(c, b)
	}

	return r, nil
}

// Register adds a backend to the registry.
func (r *Registry) Register(c chain.Chain, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[c] = backend
}

// Get returns the backend of a chain.
func (r *Registry) Get(c chain.Chain) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[c]
	return b, ok
}

// List returns all registered chains, sorted.
func (r *Registry) List() []chain.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chains := make([]chain.Chain, 0, len(r.backends))
	for c := range r.backends {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// ConnectAll connects all registered backends.
func (r *Registry) ConnectAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c, b := range r.backends {
		if err := b.Connect(ctx); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	return nil
}

// CloseAll closes all registered backends.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.backends {
		b.Close()
	}
}

// zeroBalances returns a zero balance for each asset.
func zeroBalances(assets []chain.Asset) []Balance {
	out := make([]Balance, len(assets))
	for i, a := range assets {
		out[i] = Balance{Asset: a, Amount: new(big.Int)}
	}
	return out
}

// parseAmount parses a decimal integer string in base units.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount %q", ErrInvalidResponse, s)
	}
	return v, nil
}
