package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorRouting offers one order to a ranked set of sellers. AcceptedVendorID
// moves from null to a single value exactly once; the conditional update on
// that column is the serialization point for concurrent acceptance attempts.
type VendorRouting struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_vendor_routings_order"`
	AcceptedVendorID *uuid.UUID `gorm:"column:accepted_vendor_id;type:uuid"`
	AcceptedAt       *time.Time `gorm:"column:accepted_at"`
	Tier             int        `gorm:"column:tier;not null;default:0"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null;index"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
