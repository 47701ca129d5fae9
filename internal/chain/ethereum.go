package chain

// evmParams builds params for an EVM chain. All EVM chains share coin type 60.
func evmParams(c Chain, name, native string, chainID uint64) *Params {
	return &Params{
		Chain:       c,
		Name:        name,
		Family:      FamilyEVM,
		Decimals:    18,
		NativeAsset: native,

		CoinType:       60,
		DefaultPurpose: 44,

		ChainID: chainID,

		DefaultAddressType: AddressEVM,
	}
}

func init() {
	// Ethereum
	Register(ETH, Mainnet, evmParams(ETH, "Ethereum", "ETH", 1))
	Register(ETH, Testnet, evmParams(ETH, "Ethereum Sepolia", "ETH", 11155111))

	// BNB Smart Chain
	Register(BSC, Mainnet, evmParams(BSC, "BNB Smart Chain", "BNB", 56))
	Register(BSC, Testnet, evmParams(BSC, "BNB Smart Chain Testnet", "BNB", 97))

	// Arbitrum One
	Register(ARB, Mainnet, evmParams(ARB, "Arbitrum One", "ETH", 42161))
	Register(ARB, Testnet, evmParams(ARB, "Arbitrum Sepolia", "ETH", 421614))

	// Base
	Register(BASE, Mainnet, evmParams(BASE, "Base", "ETH", 8453))
	Register(BASE, Testnet, evmParams(BASE, "Base Sepolia", "ETH", 84532))

	// Avalanche C-Chain
	Register(AVAX, Mainnet, evmParams(AVAX, "Avalanche C-Chain", "AVAX", 43114))
	Register(AVAX, Testnet, evmParams(AVAX, "Avalanche Fuji", "AVAX", 43113))
}

// GetByChainID returns EVM chain params for a chain ID.
func GetByChainID(chainID uint64, network Network) (*Params, bool) {
	for _, nets := range registry {
		if params, ok := nets[network]; ok {
			if params.IsEVM() && params.ChainID == chainID {
				return params, true
			}
		}
	}
	return nil, false
}
