package models

import (
	"time"

	"github.com/google/uuid"
)

// StockItem is the single lockable row per (seller, product). Physical stock
// lives here; reserved quantities are recomputed from stock_reservations.
type StockItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_stock_items_pair"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_stock_items_pair"`
	PhysicalQty int       `gorm:"column:physical_qty;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
