package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// StockReservation is a revocable hold on a (seller, product) stock item for
// one order. Conversion may deduct less than reserved; the remainder goes back
// to available stock.
type StockReservation struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_stock_reservations_order_product"`
	SellerID       uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index:ix_stock_reservations_pair"`
	ProductID      uuid.UUID               `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_reservations_order_product;index:ix_stock_reservations_pair"`
	Qty            int                     `gorm:"column:qty;not null"`
	Status         enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'active'"`
	ReleasedReason string                  `gorm:"column:released_reason"`
	DeductedQty    int                     `gorm:"column:deducted_qty;not null;default:0"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
