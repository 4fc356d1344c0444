package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerProfile carries the attributes the routing ranking policy scores:
// region for proximity, reliability from historical fulfillment.
type SellerProfile struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_seller_profiles_seller"`
	Region      string    `gorm:"column:region;not null"`
	Reliability float64   `gorm:"column:reliability;not null;default:0"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BuyerProfile mirrors SellerProfile for the buyer side of proximity scoring.
type BuyerProfile struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:ux_buyer_profiles_buyer"`
	Region    string    `gorm:"column:region;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
