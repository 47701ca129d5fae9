package chain

// TronAddressPrefix is the version byte of base58check TRON addresses.
const TronAddressPrefix byte = 0x41

func init() {
	for _, net := range []Network{Mainnet, Testnet} {
		name := "TRON"
		if net == Testnet {
			name = "TRON Nile"
		}
		Register(TRON, net, &Params{
			Chain:       TRON,
			Name:        name,
			Family:      FamilyTron,
			Decimals:    6,
			NativeAsset: "TRX",

			CoinType:       195,
			DefaultPurpose: 44,

			DefaultAddressType: AddressTron,
		})
	}
}
