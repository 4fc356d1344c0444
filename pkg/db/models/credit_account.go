package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount is the single lockable row per (buyer, seller) pair.
// It stores the limit only; the balance is always recomputed from
// ledger_entries and credit_reservations, never cached here.
type CreditAccount struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:ux_credit_accounts_pair"`
	SellerID         uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_credit_accounts_pair"`
	CreditLimitCents int64     `gorm:"column:credit_limit_cents;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
