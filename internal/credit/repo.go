package credit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/repo"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
)

// Repository persists credit accounts and reservations. Reservation state
// changes go through conditional updates so concurrent callers cannot move a
// hold twice.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AccountForUpdate(ctx context.Context, buyerID, sellerID uuid.UUID) (*models.CreditAccount, error)
	CreateAccount(ctx context.Context, account *models.CreditAccount) error
	CreateReservation(ctx context.Context, reservation *models.CreditReservation) error
	ReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error)
	ReleaseReservation(ctx context.Context, orderID uuid.UUID, reason string) (int64, error)
	ConvertReservation(ctx context.Context, orderID, ledgerEntryID uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a credit repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// AccountForUpdate loads the pair row holding a row lock for the rest of the
// caller's transaction.
func (r *repository) AccountForUpdate(ctx context.Context, buyerID, sellerID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := db.LockForUpdate(r.DB(ctx)).
		Where("buyer_id = ? AND seller_id = ?", buyerID, sellerID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.CreditAccount) error {
	return r.DB(ctx).Create(account).Error
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.CreditReservation) error {
	return r.DB(ctx).Create(reservation).Error
}

func (r *repository) ReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error) {
	var reservation models.CreditReservation
	if err := r.DB(ctx).
		Where("order_id = ?", orderID).
		First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ReleaseReservation moves an ACTIVE hold to RELEASED. Returns the number of
// rows moved; zero means the hold was not active.
func (r *repository) ReleaseReservation(ctx context.Context, orderID uuid.UUID, reason string) (int64, error) {
	result := r.DB(ctx).
		Model(&models.CreditReservation{}).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusActive).
		Updates(map[string]any{
			"status":          enums.ReservationStatusReleased,
			"released_reason": reason,
		})
	return result.RowsAffected, result.Error
}

// ConvertReservation moves an ACTIVE hold to CONVERTED, stamping the debit
// entry it became. Zero rows means the hold was not active.
func (r *repository) ConvertReservation(ctx context.Context, orderID, ledgerEntryID uuid.UUID) (int64, error) {
	result := r.DB(ctx).
		Model(&models.CreditReservation{}).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusActive).
		Updates(map[string]any{
			"status":                    enums.ReservationStatusConverted,
			"converted_ledger_entry_id": ledgerEntryID,
		})
	return result.RowsAffected, result.Error
}
