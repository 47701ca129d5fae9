// Package chain defines the supported chains, their derivation parameters and
// the asset lists used for balance reads.
// All chain-specific values are hardcoded here - no external configuration needed.
package chain

import (
	"fmt"
	"strings"
)

// Chain identifies a supported blockchain.
type Chain string

const (
	BTC  Chain = "BTC"
	ETH  Chain = "ETH"
	THOR Chain = "THOR"
	LTC  Chain = "LTC"
	BCH  Chain = "BCH"
	DASH Chain = "DASH"
	DOGE Chain = "DOGE"
	GAIA Chain = "GAIA"
	AVAX Chain = "AVAX"
	BSC  Chain = "BSC"
	ARB  Chain = "ARB"
	BASE Chain = "BASE"
	TRON Chain = "TRON"
)

// supported is the fixed, ordered list of chains the wallet can operate on.
var supported = []Chain{BTC, ETH, THOR, LTC, BCH, DASH, DOGE, GAIA, AVAX, BSC, ARB, BASE, TRON}

// Supported returns a copy of the supported chain list in display order.
func Supported() []Chain {
	out := make([]Chain, len(supported))
	copy(out, supported)
	return out
}

// Parse converts a symbol into a supported Chain (case-insensitive).
func Parse(s string) (Chain, error) {
	c := Chain(strings.ToUpper(strings.TrimSpace(s)))
	for _, sc := range supported {
		if sc == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported chain: %s", s)
}

// String implements fmt.Stringer.
func (c Chain) String() string {
	return string(c)
}

// Network represents mainnet or testnet.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Family represents the blockchain family a chain belongs to.
type Family string

const (
	FamilyUTXO   Family = "utxo"   // BTC and forks (LTC, BCH, DASH, DOGE)
	FamilyEVM    Family = "evm"    // Ethereum and EVM chains
	FamilyCosmos Family = "cosmos" // THORChain and Cosmos Hub
	FamilyTron   Family = "tron"
)

// AddressType represents the address encoding format.
type AddressType string

const (
	AddressP2PKH  AddressType = "p2pkh"  // Legacy (1..., D..., X...)
	AddressP2WPKH AddressType = "p2wpkh" // Native SegWit (bc1q..., ltc1q...)
	AddressEVM    AddressType = "evm"    // 0x...
	AddressBech32 AddressType = "bech32" // thor1..., cosmos1...
	AddressTron   AddressType = "tron"   // T...
)

// Params contains all parameters for a blockchain on one network.
type Params struct {
	// Identity
	Chain       Chain
	Name        string
	Family      Family
	Decimals    uint8
	NativeAsset string // Ticker of the gas asset (ETH, BNB, RUNE, ...)

	// BIP44 derivation
	CoinType       uint32
	DefaultPurpose uint32 // 44 or 84

	// UTXO network params
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	Bech32HRP        string // segwit HRP for UTXO chains, account prefix for cosmos chains

	// BIP32 HD key magic bytes
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	// EVM params
	ChainID uint64

	DefaultAddressType AddressType
}

// IsEVM reports whether the params describe an EVM chain.
func (p *Params) IsEVM() bool {
	return p.Family == FamilyEVM
}

var registry = make(map[Chain]map[Network]*Params)

// Register adds chain params to the registry.
func Register(c Chain, network Network, params *Params) {
	if registry[c] == nil {
		registry[c] = make(map[Network]*Params)
	}
	registry[c][network] = params
}

// Get returns chain params for a chain and network.
func Get(c Chain, network Network) (*Params, bool) {
	nets, ok := registry[c]
	if !ok {
		return nil, false
	}
	params, ok := nets[network]
	return params, ok
}

// MustGet is Get for chains known to be registered. It panics otherwise.
func MustGet(c Chain, network Network) *Params {
	p, ok := Get(c, network)
	if !ok {
		panic(fmt.Sprintf("chain: no params for %s/%s", c, network))
	}
	return p
}

// IsEVM reports whether c is one of the EVM chains.
func IsEVM(c Chain) bool {
	p, ok := Get(c, Mainnet)
	return ok && p.IsEVM()
}

// ListByFamily returns supported chains of one family in display order.
func ListByFamily(f Family) []Chain {
	var out []Chain
	for _, c := range supported {
		if p, ok := Get(c, Mainnet); ok && p.Family == f {
			out = append(out, c)
		}
	}
	return out
}
