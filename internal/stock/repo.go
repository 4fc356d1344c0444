package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/repo"
	"github.com/tradelinehq/tradeline/pkg/db"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
)

// Repository persists stock items and reservations, keyed (seller, product).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ItemForUpdate(ctx context.Context, sellerID, productID uuid.UUID) (*models.StockItem, error)
	CreateItem(ctx context.Context, item *models.StockItem) error
	DecrementPhysical(ctx context.Context, itemID uuid.UUID, qty int) (int64, error)
	SumActiveReservations(ctx context.Context, sellerID, productID uuid.UUID) (int, error)
	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	ReservationByOrderProduct(ctx context.Context, orderID, productID uuid.UUID) (*models.StockReservation, error)
	ReleaseReservation(ctx context.Context, orderID, productID uuid.UUID, reason string) (int64, error)
	ConvertReservation(ctx context.Context, orderID, productID uuid.UUID, deductedQty int) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// ItemForUpdate loads the (seller, product) row holding a row lock for the
// rest of the caller's transaction.
func (r *repository) ItemForUpdate(ctx context.Context, sellerID, productID uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	if err := db.LockForUpdate(r.DB(ctx)).
		Where("seller_id = ? AND product_id = ?", sellerID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.StockItem) error {
	return r.DB(ctx).Create(item).Error
}

// DecrementPhysical takes qty out of the physical count, refusing to go
// negative. Zero rows means the stock was not there.
func (r *repository) DecrementPhysical(ctx context.Context, itemID uuid.UUID, qty int) (int64, error) {
	result := r.DB(ctx).
		Model(&models.StockItem{}).
		Where("id = ? AND physical_qty >= ?", itemID, qty).
		Update("physical_qty", gorm.Expr("physical_qty - ?", qty))
	return result.RowsAffected, result.Error
}

func (r *repository) SumActiveReservations(ctx context.Context, sellerID, productID uuid.UUID) (int, error) {
	var total int
	err := r.DB(ctx).
		Model(&models.StockReservation{}).
		Where("seller_id = ? AND product_id = ? AND status = ?", sellerID, productID, enums.ReservationStatusActive).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.DB(ctx).Create(reservation).Error
}

func (r *repository) ReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	if err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) ReservationByOrderProduct(ctx context.Context, orderID, productID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	if err := r.DB(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) ReleaseReservation(ctx context.Context, orderID, productID uuid.UUID, reason string) (int64, error) {
	result := r.DB(ctx).
		Model(&models.StockReservation{}).
		Where("order_id = ? AND product_id = ? AND status = ?", orderID, productID, enums.ReservationStatusActive).
		Updates(map[string]any{
			"status":          enums.ReservationStatusReleased,
			"released_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ConvertReservation(ctx context.Context, orderID, productID uuid.UUID, deductedQty int) (int64, error) {
	result := r.DB(ctx).
		Model(&models.StockReservation{}).
		Where("order_id = ? AND product_id = ? AND status = ?", orderID, productID, enums.ReservationStatusActive).
		Updates(map[string]any{
			"status":       enums.ReservationStatusConverted,
			"deducted_qty": deductedQty,
		})
	return result.RowsAffected, result.Error
}
