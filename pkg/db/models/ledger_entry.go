package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// LedgerEntry records an immutable credit-account movement. Corrections are
// new adjustment/reversal rows, never edits.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID     uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;index:ix_ledger_entries_pair"`
	SellerID    uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index:ix_ledger_entries_pair"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Reference   string                `gorm:"column:reference"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
