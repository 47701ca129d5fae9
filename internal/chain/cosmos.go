package chain

func init() {
	// THORChain. Same prefix on both networks except stagenet, which is not supported.
	Register(THOR, Mainnet, &Params{
		Chain:       THOR,
		Name:        "THORChain",
		Family:      FamilyCosmos,
		Decimals:    8,
		NativeAsset: "RUNE",

		CoinType:       931,
		DefaultPurpose: 44,
		Bech32HRP:      "thor",

		DefaultAddressType: AddressBech32,
	})
	Register(THOR, Testnet, &Params{
		Chain:       THOR,
		Name:        "THORChain Testnet",
		Family:      FamilyCosmos,
		Decimals:    8,
		NativeAsset: "RUNE",

		CoinType:       931,
		DefaultPurpose: 44,
		Bech32HRP:      "tthor",

		DefaultAddressType: AddressBech32,
	})

	// Cosmos Hub
	for _, net := range []Network{Mainnet, Testnet} {
		Register(GAIA, net, &Params{
			Chain:       GAIA,
			Name:        "Cosmos Hub",
			Family:      FamilyCosmos,
			Decimals:    6,
			NativeAsset: "ATOM",

			CoinType:       118,
			DefaultPurpose: 44,
			Bech32HRP:      "cosmos",

			DefaultAddressType: AddressBech32,
		})
	}
}
