package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// transitions is the closed edge set of the order lifecycle. Terminal states
// have no outgoing edges. Designated-seller orders reserve before broadcast;
// open orders pass through the reservation states after acceptance, once a
// seller exists to reserve against.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated: {
		enums.OrderStatusValidated,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusValidated: {
		enums.OrderStatusCreditReserved,
		enums.OrderStatusStockReserved,
		enums.OrderStatusVendorNotified,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusCreditReserved: {
		enums.OrderStatusStockReserved,
		enums.OrderStatusVendorNotified,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusStockReserved: {
		enums.OrderStatusVendorNotified,
		enums.OrderStatusFulfilled,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusVendorNotified: {
		enums.OrderStatusVendorAccepted,
		enums.OrderStatusVendorRejected,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusVendorAccepted: {
		enums.OrderStatusCreditReserved,
		enums.OrderStatusStockReserved,
		enums.OrderStatusFulfilled,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
	enums.OrderStatusVendorRejected: {
		enums.OrderStatusVendorNotified,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	},
}

// AllowedTransitions returns the legal target states from the given state.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	return transitions[from]
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// TransitionContext carries the audit fields of a transition plus an optional
// resource hook that runs inside the same transaction as the status write.
type TransitionContext struct {
	PerformedBy string
	Reason      string
	Hook        func(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// StateChangedEvent is emitted on every committed transition.
type StateChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	ToStatus    enums.OrderStatus `json:"to_status"`
	PerformedBy string            `json:"performed_by"`
	Reason      string            `json:"reason,omitempty"`
}

// StateMachine owns Order.status. Every mutation goes through Transition,
// which re-reads the row under lock, verifies the edge, runs the hook, writes
// the status, and appends exactly one OrderEvent — all in one transaction.
type StateMachine struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewStateMachine builds a state machine with the required dependencies.
func NewStateMachine(repo Repository, tx txRunner, outbox outboxPublisher) (*StateMachine, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &StateMachine{repo: repo, tx: tx, outbox: outbox}, nil
}

// Transition runs TransitionInTx in its own transaction.
func (m *StateMachine) Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, tc TransitionContext) (*models.Order, error) {
	var order *models.Order
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := m.TransitionInTx(ctx, tx, orderID, to, tc)
		if err != nil {
			return err
		}
		order = moved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// TransitionInTx moves the order to the target state inside the caller's
// transaction. A hook error rolls back the status write and the event with it.
func (m *StateMachine) TransitionInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, tc TransitionContext) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", to))
	}

	repo := m.repo.WithTx(tx)
	order, err := repo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	from := order.Status
	if from.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeTerminalState,
			fmt.Sprintf("order is %s; terminal states cannot change", from))
	}
	if !CanTransition(from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot transition %s -> %s; allowed from %s: %v", from, to, from, AllowedTransitions(from)))
	}
	if to == enums.OrderStatusFulfilled {
		reserved, err := repo.HasEventReaching(ctx, orderID,
			enums.OrderStatusCreditReserved, enums.OrderStatusStockReserved)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan order history")
		}
		if !reserved {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
				"fulfillment requires a prior reservation state in order history")
		}
	}

	if tc.Hook != nil {
		if err := tc.Hook(ctx, tx, order); err != nil {
			return nil, err
		}
	}

	moved, err := repo.UpdateStatus(ctx, orderID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if moved == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order state changed concurrently")
	}

	event := &models.OrderEvent{
		OrderID:     orderID,
		FromStatus:  from,
		ToStatus:    to,
		PerformedBy: tc.PerformedBy,
		Reason:      tc.Reason,
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}

	if err := m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Version:       1,
		Data: StateChangedEvent{
			OrderID:     orderID,
			FromStatus:  from,
			ToStatus:    to,
			PerformedBy: tc.PerformedBy,
			Reason:      tc.Reason,
		},
	}); err != nil {
		return nil, err
	}

	order.Status = to
	return order, nil
}
