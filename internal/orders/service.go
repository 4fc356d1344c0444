package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/credit"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/logger"
	"github.com/tradelinehq/tradeline/pkg/money"
	"github.com/tradelinehq/tradeline/pkg/outbox"
)

type creditManager interface {
	ReserveInTx(ctx context.Context, tx *gorm.DB, input credit.ReserveInput) (*models.CreditReservation, error)
	ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
	ConvertToDebitInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.LedgerEntry, error)
	ReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error)
}

type stockManager interface {
	ReserveItemsInTx(ctx context.Context, tx *gorm.DB, orderID, sellerID uuid.UUID, items []models.OrderItem) ([]models.StockReservation, error)
	ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
	DeductAllInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
}

// Broadcaster opens vendor routing for an order inside the notify transition.
type Broadcaster interface {
	RouteOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.VendorRouting, error)
}

type notifier interface {
	EnqueueInTx(ctx context.Context, tx *gorm.DB, recipient uuid.UUID, template enums.NotificationTemplate, data any) error
}

// Service is the order orchestrator: creation pipeline with compensation,
// cancel/fulfill entry points, and the read surface.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, performedBy, reason string) (*models.Order, error)
	Fail(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error)
	Fulfill(ctx context.Context, orderID uuid.UUID, performedBy string) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDetails, error)
	Machine() *StateMachine
}

type service struct {
	repo     Repository
	tx       txRunner
	machine  *StateMachine
	credit   creditManager
	stock    stockManager
	router   Broadcaster
	outbox   outboxPublisher
	notifier notifier
	logg     *logger.Logger
}

// NewService builds the order orchestrator with the required dependencies.
func NewService(repo Repository, tx txRunner, machine *StateMachine, creditMgr creditManager, stockMgr stockManager, router Broadcaster, publisher outboxPublisher, notifier notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	if creditMgr == nil {
		return nil, fmt.Errorf("credit manager required")
	}
	if stockMgr == nil {
		return nil, fmt.Errorf("stock manager required")
	}
	if router == nil {
		return nil, fmt.Errorf("broadcaster required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		machine:  machine,
		credit:   creditMgr,
		stock:    stockMgr,
		router:   router,
		outbox:   publisher,
		notifier: notifier,
		logg:     logg,
	}, nil
}

func (s *service) Machine() *StateMachine {
	return s.machine
}

// CreateOrder runs the creation pipeline: persist, validate, reserve credit
// and stock (designated sellers only; open orders reserve at acceptance),
// then broadcast. Any step failure releases earlier holds, fails the order,
// and surfaces the original error.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	order, err := s.createPending(ctx, input)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if err := s.runCreationPipeline(ctx, order); err != nil {
		s.compensate(ctx, order, err)
		return nil, err
	}

	final, loadErr := s.repo.FindByID(ctx, order.ID)
	if loadErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "reload order")
	}
	return final, nil
}

func (s *service) createPending(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if !input.PaymentMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment mode")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	var total int64
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item qty must be positive")
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative")
		}
		total += int64(item.Qty) * item.UnitPriceCents
		items = append(items, models.OrderItem{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	order := &models.Order{
		Status:      enums.OrderStatusCreated,
		BuyerID:     input.BuyerID,
		SellerID:    input.SellerID,
		PaymentMode: input.PaymentMode,
		TotalCents:  total,
		Items:       items,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: CreatedEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				PaymentMode: order.PaymentMode,
				TotalCents:  order.TotalCents,
				ItemCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) runCreationPipeline(ctx context.Context, order *models.Order) error {
	if _, err := s.machine.Transition(ctx, order.ID, enums.OrderStatusValidated, TransitionContext{
		PerformedBy: "system",
		Reason:      "validation passed",
	}); err != nil {
		return err
	}

	if order.SellerID != nil {
		sellerID := *order.SellerID
		if order.PaymentMode == enums.PaymentModeCredit {
			if _, err := s.machine.Transition(ctx, order.ID, enums.OrderStatusCreditReserved, TransitionContext{
				PerformedBy: "system",
				Reason:      "credit hold placed",
				Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
					_, err := s.credit.ReserveInTx(ctx, tx, credit.ReserveInput{
						OrderID:     o.ID,
						BuyerID:     o.BuyerID,
						SellerID:    sellerID,
						AmountCents: o.TotalCents,
					})
					return err
				},
			}); err != nil {
				return err
			}
		}

		if _, err := s.machine.Transition(ctx, order.ID, enums.OrderStatusStockReserved, TransitionContext{
			PerformedBy: "system",
			Reason:      "stock hold placed",
			Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
				_, err := s.stock.ReserveItemsInTx(ctx, tx, o.ID, sellerID, o.Items)
				return err
			},
		}); err != nil {
			return err
		}
	}

	_, err := s.machine.Transition(ctx, order.ID, enums.OrderStatusVendorNotified, TransitionContext{
		PerformedBy: "system",
		Reason:      "routing broadcast",
		Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
			if _, err := s.router.RouteOrderInTx(ctx, tx, o); err != nil {
				return err
			}
			return s.notifier.EnqueueInTx(ctx, tx, o.BuyerID, enums.NotificationBuyerOrderConfirmed, map[string]any{
				"order_id":    o.ID,
				"total_cents": o.TotalCents,
				"total":       money.Format(o.TotalCents),
			})
		},
	})
	return err
}

// compensate releases whatever the failed pipeline reserved and fails the
// order. The original error has already been captured by the caller; failures
// here are logged, not surfaced, so the root cause is what the caller sees.
func (s *service) compensate(ctx context.Context, order *models.Order, cause error) {
	if _, err := s.Fail(ctx, order.ID, cause.Error()); err != nil {
		s.logg.Error(ctx, "order compensation failed", err)
	}
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, performedBy, reason string) (*models.Order, error) {
	order, err := s.resolve(ctx, orderID, enums.OrderStatusCancelled, performedBy, reason, enums.EventOrderCancelled)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Fail(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, error) {
	return s.resolve(ctx, orderID, enums.OrderStatusFailed, "system", reason, enums.EventOrderFailed)
}

// resolve moves an order to CANCELLED or FAILED, returning every hold it
// still has in the same transaction.
func (s *service) resolve(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, performedBy, reason string, eventType enums.OutboxEventType) (*models.Order, error) {
	template := enums.NotificationBuyerOrderCancelled
	if to == enums.OrderStatusFailed {
		template = enums.NotificationBuyerOrderFailed
	}
	return s.machine.Transition(ctx, orderID, to, TransitionContext{
		PerformedBy: performedBy,
		Reason:      reason,
		Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
			if err := s.releaseHolds(ctx, tx, o.ID, string(to)); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     eventType,
				AggregateType: enums.AggregateOrder,
				AggregateID:   o.ID,
				Version:       1,
				Data:          ResolvedEvent{OrderID: o.ID, Status: to, Reason: reason},
			}); err != nil {
				return err
			}
			return s.notifier.EnqueueInTx(ctx, tx, o.BuyerID, template, map[string]any{
				"order_id": o.ID,
				"reason":   reason,
			})
		},
	})
}

func (s *service) releaseHolds(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	var released []string
	if err := s.credit.ReleaseInTx(ctx, tx, orderID, reason); err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}
	} else {
		released = append(released, "credit")
	}
	if err := s.stock.ReleaseInTx(ctx, tx, orderID, reason); err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return err
		}
	} else {
		released = append(released, "stock")
	}
	if len(released) == 0 {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationReleased,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Version:       1,
		Data: map[string]any{
			"order_id": orderID,
			"released": released,
			"reason":   reason,
		},
	})
}

// Fulfill converts the order's holds: credit becomes a DEBIT, stock holds
// deduct their full quantity. The state machine enforces that the order
// actually passed through a reservation state.
func (s *service) Fulfill(ctx context.Context, orderID uuid.UUID, performedBy string) (*models.Order, error) {
	return s.machine.Transition(ctx, orderID, enums.OrderStatusFulfilled, TransitionContext{
		PerformedBy: performedBy,
		Reason:      "order fulfilled",
		Hook: func(ctx context.Context, tx *gorm.DB, o *models.Order) error {
			if o.PaymentMode == enums.PaymentModeCredit {
				if _, err := s.credit.ConvertToDebitInTx(ctx, tx, o.ID); err != nil {
					return err
				}
			}
			if err := s.stock.DeductAllInTx(ctx, tx, o.ID); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderFulfilled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   o.ID,
				Version:       1,
				Data:          ResolvedEvent{OrderID: o.ID, Status: enums.OrderStatusFulfilled},
			}); err != nil {
				return err
			}
			return nil
		},
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetails, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	events, err := s.repo.ListEvents(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order events")
	}

	details := &OrderDetails{Order: order, Events: events}

	creditRes, err := s.credit.ReservationByOrder(ctx, orderID)
	if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}
	details.CreditReservation = creditRes

	stockRes, err := s.stock.ReservationsByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock reservations")
	}
	details.StockReservations = stockRes

	return details, nil
}
