package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// Every model must migrate cleanly into sqlite: the test databases depend on
// it, and function defaults in gorm tags would break the generated DDL.
func TestModelsMigrateOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&Order{},
		&OrderItem{},
		&OrderEvent{},
		&OutboxEvent{},
		&CreditAccount{},
		&LedgerEntry{},
		&CreditReservation{},
		&StockItem{},
		&StockReservation{},
		&VendorRouting{},
		&VendorResponse{},
		&SellerProfile{},
		&BuyerProfile{},
		&Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	order := &Order{
		BuyerID:     uuid.New(),
		PaymentMode: enums.PaymentModeCredit,
		Status:      enums.OrderStatusCreated,
		TotalCents:  1_000,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID == uuid.Nil {
		t.Fatal("expected BeforeCreate to assign the id client-side")
	}
}
