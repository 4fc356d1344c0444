package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// CreditReservation is a revocable hold against a (buyer, seller) credit pair,
// tied to exactly one order. Ended by release or conversion, never both.
type CreditReservation struct {
	ID                     uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID                uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_credit_reservations_order"`
	BuyerID                uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index:ix_credit_reservations_pair"`
	SellerID               uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index:ix_credit_reservations_pair"`
	AmountCents            int64                   `gorm:"column:amount_cents;not null"`
	Status                 enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'active'"`
	ReleasedReason         string                  `gorm:"column:released_reason"`
	ConvertedLedgerEntryID *uuid.UUID              `gorm:"column:converted_ledger_entry_id;type:uuid"`
	CreatedAt              time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
