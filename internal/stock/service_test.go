package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.StockItem{}, &models.StockReservation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn), gormTxRunner{conn: conn}, config.StockConfig{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func seedItem(t *testing.T, conn *gorm.DB, qty int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	seller, product := uuid.New(), uuid.New()
	if err := conn.Create(&models.StockItem{SellerID: seller, ProductID: product, PhysicalQty: qty}).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return seller, product
}

func TestService_ReserveTracksAvailability(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	seller, product := seedItem(t, conn, 10)

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: uuid.New(), SellerID: seller, ProductID: product, Qty: 7}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	_, err := svc.Reserve(ctx, ReserveInput{OrderID: uuid.New(), SellerID: seller, ProductID: product, Qty: 4})
	if err == nil {
		t.Fatal("expected insufficient stock")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(ShortfallDetails)
	if !ok {
		t.Fatalf("expected shortfall details, got %T", typed.Details())
	}
	if details.RequestedQty != 4 || details.AvailableQty != 3 {
		t.Fatalf("unexpected shortfall: %+v", details)
	}

	// physical stays put while the hold is active
	var item models.StockItem
	if err := conn.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.PhysicalQty != 10 {
		t.Fatalf("expected physical 10, got %d", item.PhysicalQty)
	}
}

func TestService_ReserveUnknownItem(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Reserve(context.Background(), ReserveInput{OrderID: uuid.New(), SellerID: uuid.New(), ProductID: uuid.New(), Qty: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_ReleaseRestoresAvailability(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	seller, product := seedItem(t, conn, 5)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, SellerID: seller, ProductID: product, Qty: 5}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, order, "order failed"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.Release(ctx, order, "order failed"); err != nil {
		t.Fatalf("repeat release should be a no-op: %v", err)
	}

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: uuid.New(), SellerID: seller, ProductID: product, Qty: 5}); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestService_DeductPartialReturnsRemainder(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	seller, product := seedItem(t, conn, 10)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, SellerID: seller, ProductID: product, Qty: 6}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Deduct(ctx, order, product, 4); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	var item models.StockItem
	if err := conn.First(&item, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if item.PhysicalQty != 6 {
		t.Fatalf("expected physical 6 after deduct, got %d", item.PhysicalQty)
	}

	var reservation models.StockReservation
	if err := conn.First(&reservation, "order_id = ?", order).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusConverted || reservation.DeductedQty != 4 {
		t.Fatalf("unexpected reservation: %+v", reservation)
	}

	// the 2 unfilled units went back to availability: 6 physical, 0 active holds
	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: uuid.New(), SellerID: seller, ProductID: product, Qty: 6}); err != nil {
		t.Fatalf("reserve remainder: %v", err)
	}
}

func TestService_DeductGuards(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	seller, product := seedItem(t, conn, 10)
	order := uuid.New()

	if _, err := svc.Reserve(ctx, ReserveInput{OrderID: order, SellerID: seller, ProductID: product, Qty: 3}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err := svc.Deduct(ctx, order, product, 4)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for over-deduct, got %v", err)
	}

	if err := svc.Deduct(ctx, order, product, 3); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	err = svc.Deduct(ctx, order, product, 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on second deduct, got %v", err)
	}
}

func TestService_ReserveItemsInTxRollsBackTogether(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	ctx := context.Background()
	seller, productA := seedItem(t, conn, 10)
	productB := uuid.New()
	if err := conn.Create(&models.StockItem{SellerID: seller, ProductID: productB, PhysicalQty: 1}).Error; err != nil {
		t.Fatalf("seed second item: %v", err)
	}
	order := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.ReserveItemsInTx(ctx, tx, order, seller, []models.OrderItem{
			{ProductID: productA, Qty: 5},
			{ProductID: productB, Qty: 2},
		})
		return err
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var count int64
	if err := conn.Model(&models.StockReservation{}).Where("order_id = ?", order).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to drop partial holds, got %d rows", count)
	}
}
