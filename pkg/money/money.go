// Package money converts integer cent amounts to display values. All
// arithmetic in the core happens on int64 cents; decimals appear only at the
// boundary (notification payloads, query responses).
package money

import "github.com/shopspring/decimal"

// FromCents converts an integer cent amount into a two-decimal value.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders a cent amount as a plain "123.45" string.
func Format(cents int64) string {
	return FromCents(cents).StringFixed(2)
}

// ToCents converts a decimal amount into cents, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.New(100, 0)).Round(0).IntPart()
}
