package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// VendorResponse records one seller's answer to a routed order. The unique
// (routing, vendor) index rejects duplicate responses at the database.
type VendorResponse struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	RoutingID   uuid.UUID            `gorm:"column:routing_id;type:uuid;not null;uniqueIndex:ux_vendor_responses_routing_vendor"`
	VendorID    uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_vendor_responses_routing_vendor"`
	Decision    enums.VendorDecision `gorm:"column:decision;type:vendor_decision;not null"`
	RespondedAt time.Time            `gorm:"column:responded_at;autoCreateTime"`
}
