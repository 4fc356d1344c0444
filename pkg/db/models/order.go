package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// Order is the aggregate the state machine owns. All other components read it
// but mutate only their own resource tables.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'created'"`
	BuyerID     uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID    *uuid.UUID        `gorm:"column:seller_id;type:uuid"`
	PaymentMode enums.PaymentMode `gorm:"column:payment_mode;type:payment_mode;not null;default:'credit'"`
	TotalCents  int64             `gorm:"column:total_cents;not null"`
	Items       []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is one requested product line on an order.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
