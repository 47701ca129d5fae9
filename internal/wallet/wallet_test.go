package wallet

import (
	"errors"
	"strings"
	"testing"

	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
)

// Test mnemonic (DO NOT USE FOR REAL FUNDS)
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error = %v", err)
	}

	words := strings.Fields(mnemonic)
	if len(words) != 24 {
		t.Errorf("expected 24 words, got %d", len(words))
	}

	if !ValidateMnemonic(mnemonic) {
		t.Error("generated mnemonic should be valid")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		mnemonic string
		valid    bool
	}{
		{testMnemonic, true},
		{"invalid mnemonic words", false},
		{"", false},
		{"abandon", false}, // Too short
	}

	for _, tc := range tests {
		result := ValidateMnemonic(tc.mnemonic)
		if result != tc.valid {
			t.Errorf("ValidateMnemonic(%q) = %v, want %v", tc.mnemonic, result, tc.valid)
		}
	}
}

func TestNewFromMnemonicInvalid(t *testing.T) {
	_, err := NewFromMnemonic("invalid mnemonic", chain.Mainnet)
	if err == nil {
		t.Error("expected error for invalid mnemonic")
	}
}

func TestDeriveAddressKnownVectors(t *testing.T) {
	w, err := NewFromMnemonic(testMnemonic, chain.Mainnet)
	if err != nil {
		t.Fatalf("NewFromMnemonic() error = %v", err)
	}

	tests := []struct {
		chain chain.Chain
		hd    chain.HDMode
		want  string
	}{
		// BIP84 m/84'/0'/0'/0/0
		{chain.BTC, chain.HDModeDefault, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"},
		// m/44'/60'/0'/0/0
		{chain.ETH, chain.HDModeMetamask, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"},
		{chain.ETH, chain.HDModeLedgerLive, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"},
		{chain.AVAX, chain.HDModeMetamask, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"},
	}

	for _, tc := range tests {
		got, err := w.DeriveAddress(tc.chain, tc.hd, 0, 0)
		if err != nil {
			t.Fatalf("DeriveAddress(%s, %s) error = %v", tc.chain, tc.hd, err)
		}
		if got != tc.want {
			t.Errorf("DeriveAddress(%s, %s) = %s, want %s", tc.chain, tc.hd, got, tc.want)
		}
	}
}

func TestDeriveAddressFormats(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)

	tests := []struct {
		chain  chain.Chain
		prefix string
		length int
	}{
		{chain.LTC, "ltc1q", 0},
		{chain.DOGE, "D", 34},
		{chain.DASH, "X", 34},
		{chain.BCH, "1", 0},
		{chain.THOR, "thor1", 43},
		{chain.GAIA, "cosmos1", 45},
		{chain.TRON, "T", 34},
		{chain.BSC, "0x", 42},
	}

	for _, tc := range tests {
		addr, err := w.DeriveAddress(tc.chain, chain.DefaultHDMode(tc.chain), 0, 0)
		if err != nil {
			t.Fatalf("DeriveAddress(%s) error = %v", tc.chain, err)
		}
		if !strings.HasPrefix(addr, tc.prefix) {
			t.Errorf("%s address should start with %s, got %s", tc.chain, tc.prefix, addr)
		}
		if tc.length > 0 && len(addr) != tc.length {
			t.Errorf("%s address length = %d, want %d (%s)", tc.chain, len(addr), tc.length, addr)
		}
		if !ValidateAddress(addr, chain.MustGet(tc.chain, chain.Mainnet)) {
			t.Errorf("ValidateAddress(%s) rejected derived address %s", tc.chain, addr)
		}
	}
}

func TestDeriveAddressTestnet(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, chain.Testnet)

	btcAddr, err := w.DeriveAddress(chain.BTC, chain.HDModeDefault, 0, 0)
	if err != nil {
		t.Fatalf("DeriveAddress(BTC testnet) error = %v", err)
	}
	if !strings.HasPrefix(btcAddr, "tb1q") {
		t.Errorf("BTC testnet address should start with tb1q, got %s", btcAddr)
	}

	thorAddr, _ := w.DeriveAddress(chain.THOR, chain.HDModeDefault, 0, 0)
	if !strings.HasPrefix(thorAddr, "tthor1") {
		t.Errorf("THOR testnet address should start with tthor1, got %s", thorAddr)
	}
}

func TestEVMHDModesDiffer(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)

	seen := make(map[string]chain.HDMode)
	for _, hd := range []chain.HDMode{chain.HDModeLedgerLive, chain.HDModeLegacy, chain.HDModeMetamask} {
		addr, err := w.DeriveAddress(chain.ETH, hd, 0, 1)
		if err != nil {
			t.Fatalf("DeriveAddress(ETH, %s) error = %v", hd, err)
		}
		if prev, ok := seen[addr]; ok {
			t.Errorf("%s and %s derive the same index-1 address %s", prev, hd, addr)
		}
		seen[addr] = hd
	}
}

func TestDeterministicDerivation(t *testing.T) {
	w1, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)
	w2, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)

	a1, _ := w1.DeriveAddress(chain.BTC, chain.HDModeDefault, 0, 7)
	a2, _ := w2.DeriveAddress(chain.BTC, chain.HDModeDefault, 0, 7)
	if a1 != a2 {
		t.Errorf("same mnemonic derived %s and %s", a1, a2)
	}

	b, _ := w1.DeriveAddress(chain.BTC, chain.HDModeDefault, 0, 8)
	if a1 == b {
		t.Error("different indexes should produce different addresses")
	}
}

func TestWalletCache(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)
	path := chain.MustGet(chain.BTC, chain.Mainnet).DerivationPath(chain.HDModeDefault, 0, 0)

	k1, err := w.DeriveKey(path)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	k2, _ := w.DeriveKey(path)
	if k1 != k2 {
		t.Error("second derivation should hit the cache")
	}
}

func TestWalletClose(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)
	w.Close()

	_, err := w.DeriveAddress(chain.BTC, chain.HDModeDefault, 0, 0)
	if !errors.Is(err, ErrWalletLocked) {
		t.Errorf("DeriveAddress after Close error = %v, want ErrWalletLocked", err)
	}
}

func TestDeriveAddressIndexLimits(t *testing.T) {
	w, _ := NewFromMnemonic(testMnemonic, chain.Mainnet)

	if _, err := w.DeriveAddress(chain.BTC, chain.HDModeDefault, 1<<31, 0); err == nil {
		t.Error("account above 2^31-1 should be rejected")
	}
	if _, err := w.DeriveAddress(chain.BTC, chain.HDModeDefault, 0, 100001); err == nil {
		t.Error("address index above limit should be rejected")
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		chain chain.Chain
		addr  string
		valid bool
	}{
		{chain.BTC, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", true},
		{chain.BTC, "tb1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", false},
		{chain.BTC, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", true},
		{chain.ETH, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", true},
		{chain.ETH, "0x1234", false},
		{chain.THOR, "cosmos1xyz", false},
		{chain.TRON, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", true},
		{chain.TRON, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6x", false},
	}

	for _, tc := range tests {
		got := ValidateAddress(tc.addr, chain.MustGet(tc.chain, chain.Mainnet))
		if got != tc.valid {
			t.Errorf("ValidateAddress(%s, %s) = %v, want %v", tc.chain, tc.addr, got, tc.valid)
		}
	}
}

// ============ Crypto Tests ============

func TestEncryptDecryptMnemonic(t *testing.T) {
	password := "TestPassword123!"

	encrypted, err := EncryptMnemonic(testMnemonic, password)
	if err != nil {
		t.Fatalf("EncryptMnemonic() error = %v", err)
	}

	if encrypted.Version != 1 {
		t.Errorf("version = %d, want 1", encrypted.Version)
	}

	doc, err := encrypted.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(doc), "abandon") {
		t.Fatal("seed document contains plaintext mnemonic")
	}

	loaded, err := UnmarshalEncryptedSeed(doc)
	if err != nil {
		t.Fatalf("UnmarshalEncryptedSeed() error = %v", err)
	}

	decrypted, err := DecryptMnemonic(loaded, password)
	if err != nil {
		t.Fatalf("DecryptMnemonic() error = %v", err)
	}

	if decrypted != testMnemonic {
		t.Error("decrypted mnemonic doesn't match original")
	}
}

func TestEncryptMnemonicWeakPassword(t *testing.T) {
	_, err := EncryptMnemonic(testMnemonic, "weak")
	if err == nil {
		t.Error("should reject weak password")
	}
}

func TestDecryptMnemonicWrongPassword(t *testing.T) {
	encrypted, _ := EncryptMnemonic(testMnemonic, "TestPassword123!")

	_, err := DecryptMnemonic(encrypted, "WrongPassword123!")
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password error = %v, want ErrWrongPassword", err)
	}
}

func TestUnmarshalEncryptedSeedRejectsGarbage(t *testing.T) {
	for _, doc := range []string{"", "{}", `{"version":2}`, `{"version":1,"salt":"AA=="}`} {
		if _, err := UnmarshalEncryptedSeed([]byte(doc)); err == nil {
			t.Errorf("UnmarshalEncryptedSeed(%q) should fail", doc)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"TestPassword123!", true},        // Has all 4 types
		{"TestPassword123", true},         // Has 3 of 4 (upper, lower, number)
		{"TestPassword!", true},           // Has 3 of 4 (upper, lower, special)
		{"Test123!", true},                // Has all 4 types
		{"short", false},                  // Too short
		{"testpassword", false},           // Only lowercase
		{"12345678", false},               // Only numbers
		{"testpassword123", false},        // Only 2 types (lower + number)
		{strings.Repeat("a", 257), false}, // Too long
	}

	for _, tc := range tests {
		err := ValidatePassword(tc.password)
		if tc.valid && err != nil {
			t.Errorf("ValidatePassword(%q) should be valid, got error: %v", tc.password, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("ValidatePassword(%q) should be invalid", tc.password)
		}
	}
}

func TestSecureClear(t *testing.T) {
	data := []byte("sensitive data")
	SecureClear(data)

	for _, b := range data {
		if b != 0 {
			t.Error("data should be cleared to zeros")
			break
		}
	}
}
