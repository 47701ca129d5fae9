package chain

func init() {
	// Litecoin Mainnet
	Register(LTC, Mainnet, &Params{
		Chain:       LTC,
		Name:        "Litecoin",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "LTC",

		CoinType:       2,
		DefaultPurpose: 84, // Native SegWit (ltc1q...)

		PubKeyHashAddrID: 0x30, // L...
		ScriptHashAddrID: 0x32, // M...
		Bech32HRP:        "ltc",

		HDPrivateKeyID: [4]byte{0x01, 0x9d, 0x9c, 0xfe}, // Ltpv
		HDPublicKeyID:  [4]byte{0x01, 0x9d, 0xa4, 0x62}, // Ltub

		DefaultAddressType: AddressP2WPKH,
	})

	// Litecoin Testnet
	Register(LTC, Testnet, &Params{
		Chain:       LTC,
		Name:        "Litecoin Testnet",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "LTC",

		CoinType:       1,
		DefaultPurpose: 84,

		PubKeyHashAddrID: 0x6F, // m or n
		ScriptHashAddrID: 0x3A, // Q...
		Bech32HRP:        "tltc",

		HDPrivateKeyID: [4]byte{0x04, 0x36, 0xef, 0x7d}, // ttpv
		HDPublicKeyID:  [4]byte{0x04, 0x36, 0xf6, 0xe1}, // ttub

		DefaultAddressType: AddressP2WPKH,
	})
}
