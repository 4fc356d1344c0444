package credit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/ledger"
	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
)

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:credit_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.CreditAccount{},
		&models.CreditReservation{},
		&models.LedgerEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn), gormTxRunner{conn: conn}, ledger.NewRepository(conn), config.CreditConfig{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func seedAccount(t *testing.T, conn *gorm.DB, limitCents int64) (uuid.UUID, uuid.UUID) {
	t.Helper()
	buyer, seller := uuid.New(), uuid.New()
	if err := conn.Create(&models.CreditAccount{
		BuyerID: buyer, SellerID: seller, CreditLimitCents: limitCents,
	}).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return buyer, seller
}

func TestService_ReserveThenShortfallThenReleaseFrees(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	buyer, seller := seedAccount(t, conn, 100000)
	first, second := uuid.New(), uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: first, BuyerID: buyer, SellerID: seller, AmountCents: 60000}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	_, err := svc.Reserve(ctx, ReserveInput{OrderID: second, BuyerID: buyer, SellerID: seller, AmountCents: 50000})
	if err == nil {
		t.Fatal("expected insufficient credit")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredit {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(ShortfallDetails)
	if !ok {
		t.Fatalf("expected shortfall details, got %T", typed.Details())
	}
	if details.RequestedCents != 50000 || details.AvailableCents != 40000 || details.ShortfallCents != 10000 {
		t.Fatalf("unexpected shortfall: %+v", details)
	}

	if err := svc.Release(ctx, first, "order cancelled"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: second, BuyerID: buyer, SellerID: seller, AmountCents: 50000}); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestService_ReserveValidationAndUnknownAccount(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, ReserveInput{OrderID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), AmountCents: 0})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Reserve(ctx, ReserveInput{OrderID: uuid.New(), BuyerID: uuid.New(), SellerID: uuid.New(), AmountCents: 100})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_ReserveDuplicateOrderConflicts(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	buyer, seller := seedAccount(t, conn, 100000)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, BuyerID: buyer, SellerID: seller, AmountCents: 1000}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err := svc.Reserve(ctx, ReserveInput{OrderID: order, BuyerID: buyer, SellerID: seller, AmountCents: 1000})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	buyer, seller := seedAccount(t, conn, 50000)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, BuyerID: buyer, SellerID: seller, AmountCents: 20000}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, order, "expired"); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := svc.Release(ctx, order, "expired"); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}

	var reservation models.CreditReservation
	if err := conn.First(&reservation, "order_id = ?", order).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusReleased || reservation.ReleasedReason != "expired" {
		t.Fatalf("unexpected reservation state: %+v", reservation)
	}
}

func TestService_ConvertToDebitOnce(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	buyer, seller := seedAccount(t, conn, 100000)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, BuyerID: buyer, SellerID: seller, AmountCents: 60000}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	entry, err := svc.ConvertToDebit(ctx, order)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if entry.Type != enums.LedgerEntryTypeDebit || entry.AmountCents != 60000 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	var reservation models.CreditReservation
	if err := conn.First(&reservation, "order_id = ?", order).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusConverted {
		t.Fatalf("expected converted, got %v", reservation.Status)
	}
	if reservation.ConvertedLedgerEntryID == nil || *reservation.ConvertedLedgerEntryID != entry.ID {
		t.Fatalf("expected ledger entry stamp, got %v", reservation.ConvertedLedgerEntryID)
	}

	// conversion swaps a hold for a debit; availability must not move
	balance, err := ledger.ComputeBalance(ctx, ledger.NewRepository(conn), buyer, seller)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.AvailableCents != 40000 {
		t.Fatalf("expected available 40000 after conversion, got %d", balance.AvailableCents)
	}

	if _, err := svc.ConvertToDebit(ctx, order); err == nil {
		t.Fatal("expected second convert to fail")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	if err := conn.Model(&models.LedgerEntry{}).Where("order_id = ?", order).Count(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one debit entry, got %d", count)
	}
}

func TestService_ReleaseAfterConvertIsNoOp(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	buyer, seller := seedAccount(t, conn, 100000)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, BuyerID: buyer, SellerID: seller, AmountCents: 10000}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := svc.ConvertToDebit(ctx, order); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := svc.Release(ctx, order, "late cancel"); err != nil {
		t.Fatalf("release after convert should be a no-op: %v", err)
	}

	var reservation models.CreditReservation
	if err := conn.First(&reservation, "order_id = ?", order).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusConverted {
		t.Fatalf("expected reservation to stay converted, got %v", reservation.Status)
	}
}
