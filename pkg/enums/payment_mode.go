package enums

import "fmt"

// PaymentMode selects how an order settles.
type PaymentMode string

const (
	PaymentModeCredit PaymentMode = "credit"
	PaymentModeCash   PaymentMode = "cash"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCredit,
	PaymentModeCash,
}

// IsValid reports whether the value is a known PaymentMode.
func (m PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
