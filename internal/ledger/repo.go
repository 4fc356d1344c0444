package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/repo"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
)

// Repository manages persistence for ledger entries. The ledger is
// append-only: there are no update or delete paths.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByPair(ctx context.Context, buyerID, sellerID uuid.UUID) ([]models.LedgerEntry, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	SumByType(ctx context.Context, buyerID, sellerID uuid.UUID, entryType enums.LedgerEntryType) (int64, error)
	AccountByPair(ctx context.Context, buyerID, sellerID uuid.UUID) (*models.CreditAccount, error)
	SumActiveReservations(ctx context.Context, buyerID, sellerID uuid.UUID) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListByPair(ctx context.Context, buyerID, sellerID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.DB(ctx).
		Where("buyer_id = ? AND seller_id = ?", buyerID, sellerID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByType(ctx context.Context, buyerID, sellerID uuid.UUID, entryType enums.LedgerEntryType) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.LedgerEntry{}).
		Where("buyer_id = ? AND seller_id = ? AND type = ?", buyerID, sellerID, entryType).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) AccountByPair(ctx context.Context, buyerID, sellerID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := r.DB(ctx).
		Where("buyer_id = ? AND seller_id = ?", buyerID, sellerID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) SumActiveReservations(ctx context.Context, buyerID, sellerID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.CreditReservation{}).
		Where("buyer_id = ? AND seller_id = ? AND status = ?", buyerID, sellerID, enums.ReservationStatusActive).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
