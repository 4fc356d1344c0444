package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(NewRepository(conn), gormTxRunner{conn: conn})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func TestEnqueueWritesPayload(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	recipient := uuid.New()
	orderID := uuid.New()

	err := svc.Enqueue(context.Background(), recipient, enums.NotificationBuyerOrderConfirmed, map[string]any{
		"order_id": orderID,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var row models.Notification
	if err := conn.First(&row, "recipient = ?", recipient).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if row.Template != enums.NotificationBuyerOrderConfirmed || row.SentAt != nil {
		t.Fatalf("unexpected row %+v", row)
	}
	var data map[string]string
	if err := json.Unmarshal(row.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["order_id"] != orderID.String() {
		t.Fatalf("unexpected payload %v", data)
	}
}

func TestEnqueueValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Enqueue(ctx, uuid.Nil, enums.NotificationBuyerOrderConfirmed, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for missing recipient, got %v", err)
	}
	err = svc.Enqueue(ctx, uuid.New(), enums.NotificationTemplate("carrier_pigeon"), nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for unknown template, got %v", err)
	}
}

func TestEnqueueRollsBackWithCallerTx(t *testing.T) {
	t.Parallel()

	svc, conn := newTestService(t)
	recipient := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.EnqueueInTx(context.Background(), tx, recipient, enums.NotificationSellerOrderBroadcast, nil); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}

	var count int64
	if err := conn.Model(&models.Notification{}).Where("recipient = ?", recipient).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rolled-back enqueue must not persist, got %d rows", count)
	}
}

func TestPendingLifecycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	recipient := uuid.New()

	for i := 0; i < 3; i++ {
		if err := svc.Enqueue(ctx, recipient, enums.NotificationSellerOrderTaken, map[string]int{"n": i}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	pending, err := svc.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}

	if err := svc.MarkSent(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := svc.MarkSent(ctx, pending[0].ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("second mark must be NOT_FOUND, got %v", err)
	}

	pending, err = svc.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending after send, got %d", len(pending))
	}

	all, err := svc.ListByRecipient(ctx, recipient, 10)
	if err != nil {
		t.Fatalf("list by recipient: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notifications for recipient, got %d", len(all))
	}
}
