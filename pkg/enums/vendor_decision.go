package enums

import "fmt"

// VendorDecision records how a seller answered a routed order.
type VendorDecision string

const (
	VendorDecisionAccept  VendorDecision = "accept"
	VendorDecisionReject  VendorDecision = "reject"
	VendorDecisionExpired VendorDecision = "expired"
)

var validVendorDecisions = []VendorDecision{
	VendorDecisionAccept,
	VendorDecisionReject,
	VendorDecisionExpired,
}

// IsValid reports whether the value is a known VendorDecision.
func (d VendorDecision) IsValid() bool {
	for _, candidate := range validVendorDecisions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseVendorDecision converts raw input into a VendorDecision.
func ParseVendorDecision(value string) (VendorDecision, error) {
	for _, candidate := range validVendorDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor decision %q", value)
}
