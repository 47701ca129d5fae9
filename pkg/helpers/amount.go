// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatBaseUnits formats an amount in smallest units as a decimal string.
// For example, FormatBaseUnits(big.NewInt(100000000), 8) returns "1" (1 BTC).
// A nil amount formats as "0".
func FormatBaseUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	whole, frac := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	sign := ""
	if neg {
		sign = "-"
	}
	if frac.Sign() == 0 {
		return sign + whole.String()
	}

	fracStr := frac.String()
	fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	return fmt.Sprintf("%s%s.%s", sign, whole.String(), fracStr)
}

// FormatAmount is FormatBaseUnits for uint64 amounts.
func FormatAmount(amount uint64, decimals uint8) string {
	return FormatBaseUnits(new(big.Int).SetUint64(amount), decimals)
}

// ParseBaseUnits parses a non-negative decimal string to smallest units.
// For example, ParseBaseUnits("1", 8) returns 100000000 (1 BTC in satoshis).
// Digits beyond the asset's precision are truncated.
func ParseBaseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount string")
	}

	wholeStr, fracStr, _ := strings.Cut(s, ".")
	if wholeStr == "" {
		wholeStr = "0"
	}

	for _, part := range []string{wholeStr, fracStr} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("invalid character in amount: %c", c)
			}
		}
	}

	if len(fracStr) > int(decimals) {
		fracStr = fracStr[:decimals]
	}
	fracStr += strings.Repeat("0", int(decimals)-len(fracStr))

	amount, ok := new(big.Int).SetString(wholeStr+fracStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return amount, nil
}
