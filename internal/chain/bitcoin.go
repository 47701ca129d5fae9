package chain

func init() {
	// Bitcoin Mainnet
	Register(BTC, Mainnet, &Params{
		Chain:       BTC,
		Name:        "Bitcoin",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "BTC",

		// BIP84 native SegWit
		CoinType:       0,
		DefaultPurpose: 84,

		PubKeyHashAddrID: 0x00, // 1...
		ScriptHashAddrID: 0x05, // 3...
		Bech32HRP:        "bc",

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub

		DefaultAddressType: AddressP2WPKH,
	})

	// Bitcoin Testnet (testnet3)
	Register(BTC, Testnet, &Params{
		Chain:       BTC,
		Name:        "Bitcoin Testnet",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "BTC",

		// Testnet uses coin type 1 for all coins
		CoinType:       1,
		DefaultPurpose: 84,

		PubKeyHashAddrID: 0x6F, // m or n
		ScriptHashAddrID: 0xC4, // 2...
		Bech32HRP:        "tb",

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub

		DefaultAddressType: AddressP2WPKH,
	})

	// Bitcoin Cash Mainnet. Addresses are rendered in legacy base58 form.
	Register(BCH, Mainnet, &Params{
		Chain:       BCH,
		Name:        "Bitcoin Cash",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "BCH",

		CoinType:       145,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x00,
		ScriptHashAddrID: 0x05,

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e},

		DefaultAddressType: AddressP2PKH,
	})

	Register(BCH, Testnet, &Params{
		Chain:       BCH,
		Name:        "Bitcoin Cash Testnet",
		Family:      FamilyUTXO,
		Decimals:    8,
		NativeAsset: "BCH",

		CoinType:       1,
		DefaultPurpose: 44,

		PubKeyHashAddrID: 0x6F,
		ScriptHashAddrID: 0xC4,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

		DefaultAddressType: AddressP2PKH,
	})
}
