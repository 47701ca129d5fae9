package chain

import (
	"fmt"
	"strings"
)

// Asset identifies a balance-bearing asset on a chain. Native assets have an
// empty Contract.
type Asset struct {
	Chain    Chain  `json:"chain"`
	Symbol   string `json:"symbol"`
	Contract string `json:"contract,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// IsNative reports whether the asset is the chain's gas asset.
func (a Asset) IsNative() bool {
	return a.Contract == ""
}

// String renders the asset as CHAIN.SYMBOL or CHAIN.SYMBOL-CONTRACT.
func (a Asset) String() string {
	if a.IsNative() {
		return fmt.Sprintf("%s.%s", a.Chain, a.Symbol)
	}
	return fmt.Sprintf("%s.%s-%s", a.Chain, a.Symbol, a.Contract)
}

// ParseAsset is the inverse of Asset.String. Decimals are filled from the
// token registry when known.
func ParseAsset(s string, network Network) (Asset, error) {
	chainPart, rest, ok := strings.Cut(s, ".")
	if !ok || rest == "" {
		return Asset{}, fmt.Errorf("invalid asset: %s", s)
	}
	c, err := Parse(chainPart)
	if err != nil {
		return Asset{}, err
	}
	symbol, contract, _ := strings.Cut(rest, "-")
	a := Asset{Chain: c, Symbol: strings.ToUpper(symbol), Contract: contract}
	if contract == "" {
		a.Decimals = MustGet(c, network).Decimals
		return a, nil
	}
	for _, t := range tokenRegistry[tokenKey{c, network}] {
		if strings.EqualFold(t.Contract, contract) {
			a.Decimals = t.Decimals
			a.Contract = t.Contract
			return a, nil
		}
	}
	return a, nil
}

// NativeAsset returns the gas asset of c.
func NativeAsset(c Chain, network Network) Asset {
	p := MustGet(c, network)
	return Asset{Chain: c, Symbol: p.NativeAsset, Decimals: p.Decimals}
}

type tokenKey struct {
	chain   Chain
	network Network
}

// tokenInfo is one known token contract on a chain.
type tokenInfo struct {
	Asset
	fallback bool // part of the minimal list retried when the primary list fails
}

var tokenRegistry = make(map[tokenKey][]tokenInfo)

func registerToken(c Chain, network Network, symbol, contract string, decimals uint8, fallback bool) {
	k := tokenKey{c, network}
	tokenRegistry[k] = append(tokenRegistry[k], tokenInfo{
		Asset:    Asset{Chain: c, Symbol: symbol, Contract: contract, Decimals: decimals},
		fallback: fallback,
	})
}

// DefaultAssets returns the primary asset list for balance reads: the native
// asset followed by every known token of the chain.
func DefaultAssets(c Chain, network Network) []Asset {
	out := []Asset{NativeAsset(c, network)}
	for _, t := range tokenRegistry[tokenKey{c, network}] {
		out = append(out, t.Asset)
	}
	return out
}

// FallbackAssets returns the reduced asset list used when a read of the
// primary list fails: the native asset plus the major stablecoins.
func FallbackAssets(c Chain, network Network) []Asset {
	out := []Asset{NativeAsset(c, network)}
	for _, t := range tokenRegistry[tokenKey{c, network}] {
		if t.fallback {
			out = append(out, t.Asset)
		}
	}
	return out
}

func init() {
	// Ethereum Mainnet
	registerToken(ETH, Mainnet, "USDT", "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6, true)
	registerToken(ETH, Mainnet, "USDC", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6, true)
	registerToken(ETH, Mainnet, "WETH", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18, false)
	registerToken(ETH, Mainnet, "WBTC", "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", 8, false)
	registerToken(ETH, Mainnet, "DAI", "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, false)

	// Arbitrum One
	registerToken(ARB, Mainnet, "USDT", "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", 6, true)
	registerToken(ARB, Mainnet, "USDC", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", 6, true)
	registerToken(ARB, Mainnet, "WETH", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18, false)
	registerToken(ARB, Mainnet, "WBTC", "0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f", 8, false)

	// Base
	registerToken(BASE, Mainnet, "USDC", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6, true)
	registerToken(BASE, Mainnet, "WETH", "0x4200000000000000000000000000000000000006", 18, false)

	// BNB Smart Chain
	registerToken(BSC, Mainnet, "USDT", "0x55d398326f99059fF775485246999027B3197955", 18, true)
	registerToken(BSC, Mainnet, "USDC", "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18, true)
	registerToken(BSC, Mainnet, "WBNB", "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", 18, false)

	// Avalanche C-Chain
	registerToken(AVAX, Mainnet, "USDT", "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7", 6, true)
	registerToken(AVAX, Mainnet, "USDC", "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", 6, true)
	registerToken(AVAX, Mainnet, "WAVAX", "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", 18, false)

	// TRON (TRC-20)
	registerToken(TRON, Mainnet, "USDT", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", 6, true)

	// Ethereum Sepolia
	registerToken(ETH, Testnet, "USDC", "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", 6, true)
}
