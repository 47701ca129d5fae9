package helpers

import (
	"math/big"
	"testing"
)

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return n
}

func TestFormatBaseUnits(t *testing.T) {
	tests := []struct {
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(100000000), 8, "1"},
		{big.NewInt(150000000), 8, "1.5"},
		{big.NewInt(1), 8, "0.00000001"},
		{big.NewInt(0), 8, "0"},
		{nil, 8, "0"},
		{big.NewInt(12345), 0, "12345"},
		{big.NewInt(-250), 2, "-2.5"},
		{mustBig("1000000000000000000"), 18, "1"},
		{mustBig("123456789012345678901234567890"), 18, "123456789012.34567890123456789"},
	}

	for _, tt := range tests {
		got := FormatBaseUnits(tt.amount, tt.decimals)
		if got != tt.want {
			t.Errorf("FormatBaseUnits(%v, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(123456789, 8); got != "1.23456789" {
		t.Errorf("FormatAmount() = %s, want 1.23456789", got)
	}
}

func TestParseBaseUnits(t *testing.T) {
	tests := []struct {
		s        string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1", 8, "100000000", false},
		{"1.5", 8, "150000000", false},
		{".5", 8, "50000000", false},
		{"0.00000001", 8, "1", false},
		{"0.000000019", 8, "1", false}, // truncated
		{"123456789012.345678901234567890", 18, "123456789012345678901234567890", false},
		{"", 8, "", true},
		{"1.2.3", 8, "", true},
		{"-1", 8, "", true},
		{"abc", 8, "", true},
	}

	for _, tt := range tests {
		got, err := ParseBaseUnits(tt.s, tt.decimals)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBaseUnits(%q) error = %v, wantErr %v", tt.s, err, tt.wantErr)
			continue
		}
		if err == nil && got.String() != tt.want {
			t.Errorf("ParseBaseUnits(%q) = %s, want %s", tt.s, got, tt.want)
		}
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	for _, s := range []string{"1", "0.1", "21000000", "0.00000001", "42.4242"} {
		n, err := ParseBaseUnits(s, 8)
		if err != nil {
			t.Fatalf("ParseBaseUnits(%s) error = %v", s, err)
		}
		if got := FormatBaseUnits(n, 8); got != s {
			t.Errorf("roundtrip %s -> %s", s, got)
		}
	}
}
