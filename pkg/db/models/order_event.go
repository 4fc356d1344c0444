package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// OrderEvent is the append-only audit row written once per successful
// transition. Never updated or deleted; history queries (has this order ever
// been through state X) read this table only.
type OrderEvent struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus  enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus    enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	PerformedBy string            `gorm:"column:performed_by;not null"`
	Reason      string            `gorm:"column:reason"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
