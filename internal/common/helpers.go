package common

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TONDecimals = 9 // TON has 9 decimals (nanoton)
)

// NanoToTON converts nanoton to a TON string without float precision loss
func NanoToTON(nano *big.Int) string {
	return FormatAmount(nano, TONDecimals)
}

// TONToNano converts a TON string to nanoton without float precision loss
func TONToNano(ton string) (*big.Int, error) {
	return ParseAmount(ton, TONDecimals)
}

// FormatAmount converts base units to a decimal string by shifting the point.
// Example: FormatAmount(24981836, 9) = "0.024981836"
func FormatAmount(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// ParseAmount converts a decimal string to base units.
// Digits beyond the asset precision are truncated.
// Example: ParseAmount("0.024981836", 9) = 24981836
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal format: %w", err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount")
	}

	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// CompareAmounts compares two decimal string amounts without float precision loss.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b, and error if parsing fails
func CompareAmounts(a, b string) (int, error) {
	aVal, err := decimal.NewFromString(strings.TrimSpace(a))
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount '%s': %w", a, err)
	}

	bVal, err := decimal.NewFromString(strings.TrimSpace(b))
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount '%s': %w", b, err)
	}

	return aVal.Cmp(bVal), nil
}
