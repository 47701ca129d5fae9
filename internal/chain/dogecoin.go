package chain

func init() {
	// Dogecoin Mainnet
	Register(DOGE, Mainnet, &Params{
		Chain:       DOGE,
		Name:        "Dogecoin",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "DOGE",

		CoinType:       3,
		DefaultPurpose: 44, // Legacy only

		PubKeyHashAddrID: 0x1E, // D...
		ScriptHashAddrID: 0x16, // 9 or A

		HDPrivateKeyID: [4]byte{0x02, 0xfa, 0xc3, 0x98}, // dgpv
		HDPublicKeyID:  [4]byte{0x02, 0xfa, 0xca, 0xfd}, // dgub

		DefaultAddressType: AddressP2PKH,
	})

	// Dogecoin Testnet
	Register(DOGE, Testnet, &Params{
		Chain:       DOGE,
		Name:        "Dogecoin Testnet",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "DOGE",

		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x71, // n...
		ScriptHashAddrID: 0xC4,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub

		DefaultAddressType: AddressP2PKH,
	})

	// Dash Mainnet
	Register(DASH, Mainnet, &Params{
		Chain:       DASH,
		Name:        "Dash",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "DASH",

		CoinType:       5,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x4C, // X...
		ScriptHashAddrID: 0x10, // 7...

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e},

		DefaultAddressType: AddressP2PKH,
	})

	// Dash Testnet
	Register(DASH, Testnet, &Params{
		Chain:       DASH,
		Name:        "Dash Testnet",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "DASH",

		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x8C, // y...
		ScriptHashAddrID: 0x13,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

		DefaultAddressType: AddressP2PKH,
	})
}
