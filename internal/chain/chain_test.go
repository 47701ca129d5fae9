package chain

import (
	"testing"
)

func TestAllChainsRegistered(t *testing.T) {
	for _, c := range Supported() {
		for _, net := range []Network{Mainnet, Testnet} {
			if _, ok := Get(c, net); !ok {
				t.Errorf("expected %s/%s to be registered", c, net)
			}
		}
	}
	if len(Supported()) != 13 {
		t.Errorf("Supported() has %d chains, want 13", len(Supported()))
	}
}

func TestSupportedIsCopy(t *testing.T) {
	list := Supported()
	list[0] = "XXX"
	if Supported()[0] != BTC {
		t.Error("mutating Supported() result changed the registry order")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Chain
		wantErr bool
	}{
		{"BTC", BTC, false},
		{"eth", ETH, false},
		{" thor ", THOR, false},
		{"SOL", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestBitcoinMainnet(t *testing.T) {
	params, ok := Get(BTC, Mainnet)
	if !ok {
		t.Fatal("BTC mainnet should be registered")
	}
	if params.Family != FamilyUTXO {
		t.Errorf("Family = %s, want utxo", params.Family)
	}
	if params.DefaultPurpose != 84 {
		t.Errorf("DefaultPurpose = %d, want 84 (SegWit)", params.DefaultPurpose)
	}
	if params.Bech32HRP != "bc" {
		t.Errorf("Bech32HRP = %s, want bc", params.Bech32HRP)
	}
	if params.DefaultAddressType != AddressP2WPKH {
		t.Errorf("DefaultAddressType = %s, want p2wpkh", params.DefaultAddressType)
	}
}

func TestFamilies(t *testing.T) {
	tests := []struct {
		family Family
		want   []Chain
	}{
		{FamilyUTXO, []Chain{BTC, LTC, BCH, DASH, DOGE}},
		{FamilyEVM, []Chain{ETH, AVAX, BSC, ARB, BASE}},
		{FamilyCosmos, []Chain{THOR, GAIA}},
		{FamilyTron, []Chain{TRON}},
	}
	for _, tt := range tests {
		got := ListByFamily(tt.family)
		if len(got) != len(tt.want) {
			t.Fatalf("ListByFamily(%s) = %v, want %v", tt.family, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ListByFamily(%s)[%d] = %s, want %s", tt.family, i, got[i], tt.want[i])
			}
		}
	}
}

func TestEVMChainIDs(t *testing.T) {
	tests := []struct {
		chain   Chain
		net     Network
		chainID uint64
	}{
		{ETH, Mainnet, 1},
		{ETH, Testnet, 11155111},
		{BSC, Mainnet, 56},
		{ARB, Mainnet, 42161},
		{BASE, Mainnet, 8453},
		{AVAX, Mainnet, 43114},
	}
	for _, tt := range tests {
		p := MustGet(tt.chain, tt.net)
		if p.ChainID != tt.chainID {
			t.Errorf("%s/%s ChainID = %d, want %d", tt.chain, tt.net, p.ChainID, tt.chainID)
		}
		got, ok := GetByChainID(tt.chainID, tt.net)
		if !ok || got.Chain != tt.chain {
			t.Errorf("GetByChainID(%d) = %v, want %s", tt.chainID, got, tt.chain)
		}
	}
}

func TestDefaultHDMode(t *testing.T) {
	for _, c := range Supported() {
		want := HDModeDefault
		if IsEVM(c) {
			want = HDModeLedgerLive
		}
		if got := DefaultHDMode(c); got != want {
			t.Errorf("DefaultHDMode(%s) = %s, want %s", c, got, want)
		}
	}
}

func TestDerivationPathString(t *testing.T) {
	tests := []struct {
		chain   Chain
		hd      HDMode
		account uint32
		index   uint32
		want    string
	}{
		{BTC, HDModeDefault, 0, 0, "m/84'/0'/0'/0/0"},
		{BTC, HDModeDefault, 1, 5, "m/84'/0'/1'/0/5"},
		{DOGE, HDModeDefault, 0, 2, "m/44'/3'/0'/0/2"},
		{BCH, HDModeDefault, 0, 0, "m/44'/145'/0'/0/0"},
		{THOR, HDModeDefault, 0, 0, "m/44'/931'/0'/0/0"},
		{GAIA, HDModeDefault, 2, 0, "m/44'/118'/2'/0/0"},
		{TRON, HDModeDefault, 0, 1, "m/44'/195'/0'/0/1"},
		{ETH, HDModeLedgerLive, 0, 3, "m/44'/60'/3'/0/0"},
		{ETH, HDModeLegacy, 0, 3, "m/44'/60'/0'/3"},
		{ETH, HDModeMetamask, 0, 3, "m/44'/60'/0'/0/3"},
		{BSC, HDModeMetamask, 1, 0, "m/44'/60'/1'/0/0"},
	}
	for _, tt := range tests {
		got := MustGet(tt.chain, Mainnet).DerivationPathString(tt.hd, tt.account, tt.index)
		if got != tt.want {
			t.Errorf("%s %s (%d,%d) = %s, want %s", tt.chain, tt.hd, tt.account, tt.index, got, tt.want)
		}
	}
}

func TestParseHDMode(t *testing.T) {
	if hd, err := ParseHDMode(""); err != nil || hd != HDModeDefault {
		t.Errorf("ParseHDMode(\"\") = %s, %v", hd, err)
	}
	if hd, err := ParseHDMode("metamask"); err != nil || hd != HDModeMetamask {
		t.Errorf("ParseHDMode(metamask) = %s, %v", hd, err)
	}
	if _, err := ParseHDMode("trezor"); err == nil {
		t.Error("ParseHDMode(trezor) should fail")
	}
}

func TestAssetLists(t *testing.T) {
	for _, c := range Supported() {
		primary := DefaultAssets(c, Mainnet)
		fallback := FallbackAssets(c, Mainnet)
		if len(primary) == 0 || !primary[0].IsNative() {
			t.Errorf("%s primary list must start with the native asset", c)
		}
		if len(fallback) == 0 || !fallback[0].IsNative() {
			t.Errorf("%s fallback list must start with the native asset", c)
		}
		if len(fallback) > len(primary) {
			t.Errorf("%s fallback list (%d) longer than primary (%d)", c, len(fallback), len(primary))
		}
	}

	eth := DefaultAssets(ETH, Mainnet)
	if eth[0].Symbol != "ETH" || eth[0].Decimals != 18 {
		t.Errorf("ETH native = %+v", eth[0])
	}
	if len(FallbackAssets(ETH, Mainnet)) != 3 {
		t.Errorf("ETH fallback = %v, want ETH, USDT, USDC", FallbackAssets(ETH, Mainnet))
	}
}

func TestParseAsset(t *testing.T) {
	a, err := ParseAsset("ETH.USDC-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Mainnet)
	if err != nil {
		t.Fatalf("ParseAsset: %v", err)
	}
	if a.Decimals != 6 {
		t.Errorf("Decimals = %d, want 6", a.Decimals)
	}
	if a.Contract != "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48" {
		t.Errorf("Contract = %s, want checksummed registry value", a.Contract)
	}

	native, err := ParseAsset("THOR.RUNE", Mainnet)
	if err != nil {
		t.Fatalf("ParseAsset: %v", err)
	}
	if !native.IsNative() || native.Decimals != 8 {
		t.Errorf("THOR.RUNE = %+v", native)
	}
	if native.String() != "THOR.RUNE" {
		t.Errorf("String() = %s", native.String())
	}

	if _, err := ParseAsset("nope", Mainnet); err == nil {
		t.Error("ParseAsset(nope) should fail")
	}
}
