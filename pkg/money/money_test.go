package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "0.00"},
		{cents: 5, want: "0.05"},
		{cents: 7500000, want: "75000.00"},
		{cents: -1250, want: "-12.50"},
	}
	for _, tt := range tests {
		if got := Format(tt.cents); got != tt.want {
			t.Fatalf("Format(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestToCentsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("12345.67")
	cents := ToCents(amount)
	if cents != 1234567 {
		t.Fatalf("expected 1234567 cents, got %d", cents)
	}
	if !FromCents(cents).Equal(amount) {
		t.Fatalf("round trip mismatch: %s", FromCents(cents))
	}
}
