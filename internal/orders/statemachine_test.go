package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/outbox"
)

type gormTxRunner struct {
	conn *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.conn.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderEvent{},
		&models.OutboxEvent{},
		&models.CreditAccount{},
		&models.LedgerEntry{},
		&models.CreditReservation{},
		&models.StockItem{},
		&models.StockReservation{},
		&models.VendorRouting{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestMachine(t *testing.T) (*StateMachine, *gorm.DB) {
	t.Helper()
	conn := newTestDB(t)
	machine, err := NewStateMachine(
		NewRepository(conn),
		gormTxRunner{conn: conn},
		outbox.NewService(outbox.NewRepository(conn), nil),
	)
	if err != nil {
		t.Fatalf("new state machine: %v", err)
	}
	return machine, conn
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		Status:      status,
		BuyerID:     uuid.New(),
		PaymentMode: enums.PaymentModeCredit,
		TotalCents:  5000,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func orderStatus(t *testing.T, conn *gorm.DB, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	if err := conn.First(&order, "id = ?", id).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	return order.Status
}

func TestEdgeSet(t *testing.T) {
	t.Parallel()

	for _, terminal := range []enums.OrderStatus{
		enums.OrderStatusFulfilled,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	} {
		if edges := AllowedTransitions(terminal); len(edges) != 0 {
			t.Errorf("terminal state %s has outgoing edges %v", terminal, edges)
		}
	}

	for from := range transitions {
		if !CanTransition(from, enums.OrderStatusCancelled) {
			t.Errorf("%s cannot reach cancelled", from)
		}
		if !CanTransition(from, enums.OrderStatusFailed) {
			t.Errorf("%s cannot reach failed", from)
		}
	}

	if CanTransition(enums.OrderStatusCreated, enums.OrderStatusFulfilled) {
		t.Error("created must not reach fulfilled directly")
	}
	if CanTransition(enums.OrderStatusCancelled, enums.OrderStatusValidated) {
		t.Error("cancelled must not have outgoing edges")
	}
}

func TestTransitionWritesStatusEventAndOutbox(t *testing.T) {
	t.Parallel()

	machine, conn := newTestMachine(t)
	order := seedOrder(t, conn, enums.OrderStatusCreated)
	ctx := context.Background()

	moved, err := machine.Transition(ctx, order.ID, enums.OrderStatusValidated, TransitionContext{
		PerformedBy: "system",
		Reason:      "validation passed",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved.Status != enums.OrderStatusValidated {
		t.Fatalf("expected validated, got %s", moved.Status)
	}
	if got := orderStatus(t, conn, order.ID); got != enums.OrderStatusValidated {
		t.Fatalf("persisted status %s", got)
	}

	var events []models.OrderEvent
	if err := conn.Where("order_id = ?", order.ID).Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].FromStatus != enums.OrderStatusCreated || events[0].ToStatus != enums.OrderStatusValidated {
		t.Fatalf("unexpected event %+v", events[0])
	}

	var published int64
	if err := conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", order.ID, enums.EventOrderStateChanged).
		Count(&published).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected 1 outbox event, got %d", published)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	t.Parallel()

	machine, conn := newTestMachine(t)
	order := seedOrder(t, conn, enums.OrderStatusCreated)

	_, err := machine.Transition(context.Background(), order.ID, enums.OrderStatusFulfilled, TransitionContext{
		PerformedBy: "system",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
	if got := orderStatus(t, conn, order.ID); got != enums.OrderStatusCreated {
		t.Fatalf("status must not change on rejection, got %s", got)
	}

	var events int64
	if err := conn.Model(&models.OrderEvent{}).Where("order_id = ?", order.ID).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 0 {
		t.Fatalf("rejected transition must not log events, got %d", events)
	}
}

func TestTransitionFromTerminalState(t *testing.T) {
	t.Parallel()

	machine, conn := newTestMachine(t)
	order := seedOrder(t, conn, enums.OrderStatusCancelled)

	_, err := machine.Transition(context.Background(), order.ID, enums.OrderStatusValidated, TransitionContext{
		PerformedBy: "system",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeTerminalState) {
		t.Fatalf("expected TERMINAL_STATE, got %v", err)
	}
}

func TestFulfillRequiresReservationHistory(t *testing.T) {
	t.Parallel()

	machine, conn := newTestMachine(t)
	order := seedOrder(t, conn, enums.OrderStatusVendorAccepted)
	ctx := context.Background()

	_, err := machine.Transition(ctx, order.ID, enums.OrderStatusFulfilled, TransitionContext{
		PerformedBy: "vendor",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION without reservation history, got %v", err)
	}
	if got := orderStatus(t, conn, order.ID); got != enums.OrderStatusVendorAccepted {
		t.Fatalf("status must not change, got %s", got)
	}

	history := &models.OrderEvent{
		OrderID:     order.ID,
		FromStatus:  enums.OrderStatusValidated,
		ToStatus:    enums.OrderStatusStockReserved,
		PerformedBy: "system",
	}
	if err := conn.Create(history).Error; err != nil {
		t.Fatalf("seed history: %v", err)
	}

	if _, err := machine.Transition(ctx, order.ID, enums.OrderStatusFulfilled, TransitionContext{
		PerformedBy: "vendor",
	}); err != nil {
		t.Fatalf("fulfill with history: %v", err)
	}
	if got := orderStatus(t, conn, order.ID); got != enums.OrderStatusFulfilled {
		t.Fatalf("expected fulfilled, got %s", got)
	}
}

func TestHookErrorRollsBackTransition(t *testing.T) {
	t.Parallel()

	machine, conn := newTestMachine(t)
	order := seedOrder(t, conn, enums.OrderStatusCreated)

	boom := fmt.Errorf("hook exploded")
	_, err := machine.Transition(context.Background(), order.ID, enums.OrderStatusValidated, TransitionContext{
		PerformedBy: "system",
		Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
			return boom
		},
	})
	if err == nil {
		t.Fatal("expected hook error")
	}
	if got := orderStatus(t, conn, order.ID); got != enums.OrderStatusCreated {
		t.Fatalf("hook failure must roll back status, got %s", got)
	}

	var events int64
	if err := conn.Model(&models.OrderEvent{}).Where("order_id = ?", order.ID).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 0 {
		t.Fatalf("hook failure must roll back the event, got %d", events)
	}
}

func TestConcurrentStatusChangeConflicts(t *testing.T) {
	t.Parallel()

	machine, conn := newTestMachine(t)
	order := seedOrder(t, conn, enums.OrderStatusCreated)

	// The hook moves the order out from under the transition; the conditional
	// status update then matches zero rows.
	_, err := machine.Transition(context.Background(), order.ID, enums.OrderStatusValidated, TransitionContext{
		PerformedBy: "system",
		Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
			return tx.Model(&models.Order{}).
				Where("id = ?", o.ID).
				Update("status", enums.OrderStatusCancelled).Error
		},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	t.Parallel()

	machine, _ := newTestMachine(t)
	_, err := machine.Transition(context.Background(), uuid.New(), enums.OrderStatusValidated, TransitionContext{
		PerformedBy: "system",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
