package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReserveInput identifies the hold to place: one order line against one
// (seller, product) stock item.
type ReserveInput struct {
	OrderID   uuid.UUID
	SellerID  uuid.UUID
	ProductID uuid.UUID
	Qty       int
}

// ShortfallDetails rides on INSUFFICIENT_STOCK responses.
type ShortfallDetails struct {
	ProductID    uuid.UUID `json:"product_id"`
	RequestedQty int       `json:"requested_qty"`
	AvailableQty int       `json:"available_qty"`
}

// Service places, releases, and deducts stock holds. Available stock is
// always physical minus active holds; physical only moves at deduction.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.StockReservation, error)
	ReserveInTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockReservation, error)
	ReserveItemsInTx(ctx context.Context, tx *gorm.DB, orderID, sellerID uuid.UUID, items []models.OrderItem) ([]models.StockReservation, error)
	Release(ctx context.Context, orderID uuid.UUID, reason string) error
	ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
	Deduct(ctx context.Context, orderID, productID uuid.UUID, qty int) error
	DeductInTx(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, qty int) error
	DeductAllInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
}

type service struct {
	repo Repository
	tx   txRunner
	cfg  config.StockConfig
}

// NewService builds a stock service with the required dependencies.
func NewService(repo Repository, tx txRunner, cfg config.StockConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, cfg: cfg}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.StockReservation, error) {
	var reservation *models.StockReservation
	err := s.withLockRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			res, err := s.ReserveInTx(ctx, tx, input)
			if err != nil {
				return err
			}
			reservation = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ReserveInTx locks the item row, recomputes availability against it, and
// inserts the hold.
func (s *service) ReserveInTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockReservation, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.SellerID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller and product ids required")
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	repo := s.repo.WithTx(tx)
	item, err := repo.ItemForUpdate(ctx, input.SellerID, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		return nil, err
	}

	reserved, err := repo.SumActiveReservations(ctx, input.SellerID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock reservations")
	}
	available := item.PhysicalQty - reserved
	if available < input.Qty {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(ShortfallDetails{
				ProductID:    input.ProductID,
				RequestedQty: input.Qty,
				AvailableQty: available,
			})
	}

	reservation := &models.StockReservation{
		OrderID:   input.OrderID,
		SellerID:  input.SellerID,
		ProductID: input.ProductID,
		Qty:       input.Qty,
		Status:    enums.ReservationStatusActive,
	}
	if err := repo.CreateReservation(ctx, reservation); err != nil {
		if db.IsUniqueViolation(err, "ux_stock_reservations_order_product") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already holds this stock reservation")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock reservation")
	}
	return reservation, nil
}

// ReserveItemsInTx places holds for every order line against one seller,
// failing fast on the first shortfall so the whole transaction rolls back.
func (s *service) ReserveItemsInTx(ctx context.Context, tx *gorm.DB, orderID, sellerID uuid.UUID, items []models.OrderItem) ([]models.StockReservation, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	reservations := make([]models.StockReservation, 0, len(items))
	for _, item := range items {
		reservation, err := s.ReserveInTx(ctx, tx, ReserveInput{
			OrderID:   orderID,
			SellerID:  sellerID,
			ProductID: item.ProductID,
			Qty:       item.Qty,
		})
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *reservation)
	}
	return reservations, nil
}

func (s *service) Release(ctx context.Context, orderID uuid.UUID, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseInTx(ctx, tx, orderID, reason)
	})
}

// ReleaseInTx returns every ACTIVE hold the order has. Repeat releases are
// no-ops; converted holds stay converted. Orders that never reserved stock
// get CodeNotFound so callers can tell "nothing held" from "released".
func (s *service) ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	reservations, err := repo.ReservationsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock reservations")
	}
	if len(reservations) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no stock reservations for order")
	}
	for _, reservation := range reservations {
		if reservation.Status != enums.ReservationStatusActive {
			continue
		}
		if _, err := repo.ReleaseReservation(ctx, orderID, reservation.ProductID, reason); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock reservation")
		}
	}
	return nil
}

func (s *service) Deduct(ctx context.Context, orderID, productID uuid.UUID, qty int) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.DeductInTx(ctx, tx, orderID, productID, qty)
	})
}

// DeductInTx converts a hold into a physical decrement of qty (at most the
// reserved amount). The untaken remainder returns to availability the moment
// the hold leaves ACTIVE.
func (s *service) DeductInTx(ctx context.Context, tx *gorm.DB, orderID, productID uuid.UUID, qty int) error {
	if orderID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and product ids required")
	}
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must not be negative")
	}

	repo := s.repo.WithTx(tx)
	reservation, err := repo.ReservationByOrderProduct(ctx, orderID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock reservation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock reservation")
	}
	switch reservation.Status {
	case enums.ReservationStatusReleased:
		return pkgerrors.New(pkgerrors.CodeConflict, "stock reservation already released")
	case enums.ReservationStatusConverted:
		return pkgerrors.New(pkgerrors.CodeConflict, "stock reservation already converted")
	}
	if qty > reservation.Qty {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot deduct more than reserved")
	}

	item, err := repo.ItemForUpdate(ctx, reservation.SellerID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
		}
		return err
	}

	if qty > 0 {
		moved, err := repo.DecrementPhysical(ctx, item.ID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement physical stock")
		}
		if moved == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "physical stock below deduction")
		}
	}

	moved, err := repo.ConvertReservation(ctx, orderID, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert stock reservation")
	}
	if moved == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "stock reservation no longer active")
	}
	return nil
}

// DeductAllInTx deducts the full reserved quantity of every ACTIVE hold the
// order has.
func (s *service) DeductAllInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reservations, err := s.repo.WithTx(tx).ReservationsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock reservations")
	}
	for _, reservation := range reservations {
		if reservation.Status != enums.ReservationStatusActive {
			continue
		}
		if err := s.DeductInTx(ctx, tx, orderID, reservation.ProductID, reservation.Qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	return s.repo.ReservationsByOrder(ctx, orderID)
}

func (s *service) withLockRetry(ctx context.Context, attempt func(ctx context.Context) error) error {
	if s.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()
	}

	base := s.cfg.LockRetryBase
	if base <= 0 {
		base = config.DefaultLockRetryBase
	}
	backoff := retry.WithMaxRetries(uint64(s.cfg.LockRetryMax), retry.NewExponential(base))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptErr := attempt(ctx)
		if attemptErr != nil && db.IsLockUnavailable(attemptErr) {
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})
	if err == nil {
		return nil
	}
	if db.IsLockUnavailable(err) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeSystemBusy, err, "stock item busy")
	}
	return err
}
