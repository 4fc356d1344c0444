package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/ledger"
	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReserveInput identifies the hold to place: one order against one
// (buyer, seller) credit pair.
type ReserveInput struct {
	OrderID     uuid.UUID
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	AmountCents int64
}

// ShortfallDetails rides on INSUFFICIENT_CREDIT responses so the caller can
// see how far short the pair balance fell.
type ShortfallDetails struct {
	RequestedCents int64 `json:"requested_cents"`
	AvailableCents int64 `json:"available_cents"`
	ShortfallCents int64 `json:"shortfall_cents"`
}

// Service places, releases, and converts credit holds. The InTx variants run
// inside a caller-owned transaction; the plain variants own their transaction
// and retry on row-lock contention.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.CreditReservation, error)
	ReserveInTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.CreditReservation, error)
	Release(ctx context.Context, orderID uuid.UUID, reason string) error
	ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error
	ConvertToDebit(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
	ConvertToDebitInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.LedgerEntry, error)
	ReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	ledgerRepo ledger.Repository
	cfg        config.CreditConfig
}

// NewService builds a credit service with the required dependencies.
func NewService(repo Repository, tx txRunner, ledgerRepo ledger.Repository, cfg config.CreditConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credit repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, tx: tx, ledgerRepo: ledgerRepo, cfg: cfg}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.CreditReservation, error) {
	var reservation *models.CreditReservation
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

// ReserveInTx locks the pair account row, recomputes availability against it,
// and inserts the hold. Everything it read stays pinned until the caller's
// transaction ends.
func (s *service) ReserveInTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.CreditReservation, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and seller ids required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.AccountForUpdate(ctx, input.BuyerID, input.SellerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
		}
		return nil, err
	}

	balance, err := ledger.ComputeBalance(ctx, s.ledgerRepo.WithTx(tx), input.BuyerID, input.SellerID)
	if err != nil {
		return nil, err
	}
	if balance.AvailableCents < input.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientCredit, "insufficient credit").
			WithDetails(ShortfallDetails{
				RequestedCents: input.AmountCents,
				AvailableCents: balance.AvailableCents,
				ShortfallCents: input.AmountCents - balance.AvailableCents,
			})
	}

	reservation := &models.CreditReservation{
		OrderID:     input.OrderID,
		BuyerID:     input.BuyerID,
		SellerID:    input.SellerID,
		AmountCents: input.AmountCents,
		Status:      enums.ReservationStatusActive,
	}
	if err := repo.CreateReservation(ctx, reservation); err != nil {
		if db.IsUniqueViolation(err, "ux_credit_reservations_order") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already holds a credit reservation")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create credit reservation")
	}
	return reservation, nil
}

func (s *service) Release(ctx context.Context, orderID uuid.UUID, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseInTx(ctx, tx, orderID, reason)
	})
}

// ReleaseInTx is idempotent: repeat releases and releases of already
// converted holds are no-ops, never errors.
func (s *service) ReleaseInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	moved, err := repo.ReleaseReservation(ctx, orderID, reason)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release credit reservation")
	}
	if moved > 0 {
		return nil
	}

	reservation, err := repo.ReservationByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "credit reservation not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit reservation")
	}
	switch reservation.Status {
	case enums.ReservationStatusReleased, enums.ReservationStatusConverted:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "credit reservation in unexpected state")
	}
}

func (s *service) ConvertToDebit(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		converted, err := s.ConvertToDebitInTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		entry = converted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ConvertToDebitInTx turns an ACTIVE hold into exactly one DEBIT ledger entry.
// The conditional update is the guard: if another caller converted or released
// first, zero rows move and the debit insert rolls back with the transaction.
func (s *service) ConvertToDebitInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	reservation, err := repo.ReservationByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit reservation")
	}
	switch reservation.Status {
	case enums.ReservationStatusReleased:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "credit reservation already released")
	case enums.ReservationStatusConverted:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "credit reservation already converted")
	}

	entry := &models.LedgerEntry{
		BuyerID:     reservation.BuyerID,
		SellerID:    reservation.SellerID,
		Type:        enums.LedgerEntryTypeDebit,
		AmountCents: reservation.AmountCents,
		OrderID:     &orderID,
		Reference:   "reservation converted",
	}
	if err := s.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit entry")
	}

	moved, err := repo.ConvertReservation(ctx, orderID, entry.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert credit reservation")
	}
	if moved == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "credit reservation no longer active")
	}
	return entry, nil
}

func (s *service) ReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error) {
	reservation, err := s.repo.ReservationByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit reservation")
	}
	return reservation, nil
}

// withLockRetry retries the attempt on row-lock contention with exponential
// backoff, then classifies exhaustion as SYSTEM_BUSY.
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
		return pkgerrors.Wrap(pkgerrors.CodeSystemBusy, err, "credit account busy")
	}
	return err
}
