package routing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/repo"
	"github.com/tradelinehq/tradeline/pkg/db/models"
)

// Repository persists routings, vendor responses, and the profile rows the
// ranking policy scores.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRouting(ctx context.Context, routing *models.VendorRouting) error
	RoutingByID(ctx context.Context, id uuid.UUID) (*models.VendorRouting, error)
	RoutingByOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error)
	AcceptRouting(ctx context.Context, routingID, vendorID uuid.UUID, at time.Time) (int64, error)
	AdvanceTier(ctx context.Context, routingID uuid.UUID, tier int, expiresAt time.Time) error
	ExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.VendorRouting, error)
	CreateResponse(ctx context.Context, response *models.VendorResponse) error
	ResponsesByRouting(ctx context.Context, routingID uuid.UUID) ([]models.VendorResponse, error)
	ActiveSellerProfiles(ctx context.Context) ([]models.SellerProfile, error)
	BuyerRegion(ctx context.Context, buyerID uuid.UUID) (string, error)
	StockLevels(ctx context.Context, sellerIDs, productIDs []uuid.UUID) ([]models.StockItem, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a routing repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CreateRouting(ctx context.Context, routing *models.VendorRouting) error {
	return r.DB(ctx).Create(routing).Error
}

func (r *repository) RoutingByID(ctx context.Context, id uuid.UUID) (*models.VendorRouting, error) {
	var routing models.VendorRouting
	if err := r.DB(ctx).Where("id = ?", id).First(&routing).Error; err != nil {
		return nil, err
	}
	return &routing, nil
}

func (r *repository) RoutingByOrder(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error) {
	var routing models.VendorRouting
	if err := r.DB(ctx).Where("order_id = ?", orderID).First(&routing).Error; err != nil {
		return nil, err
	}
	return &routing, nil
}

// AcceptRouting is the race serialization point: the conditional update wins
// for exactly one vendor, every other attempt matches zero rows.
func (r *repository) AcceptRouting(ctx context.Context, routingID, vendorID uuid.UUID, at time.Time) (int64, error) {
	result := r.DB(ctx).
		Model(&models.VendorRouting{}).
		Where("id = ? AND accepted_vendor_id IS NULL", routingID).
		Updates(map[string]any{
			"accepted_vendor_id": vendorID,
			"accepted_at":        at,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) AdvanceTier(ctx context.Context, routingID uuid.UUID, tier int, expiresAt time.Time) error {
	return r.DB(ctx).
		Model(&models.VendorRouting{}).
		Where("id = ?", routingID).
		Updates(map[string]any{
			"tier":       tier,
			"expires_at": expiresAt,
		}).Error
}

func (r *repository) ExpiredOpen(ctx context.Context, now time.Time, limit int) ([]models.VendorRouting, error) {
	var routings []models.VendorRouting
	err := r.DB(ctx).
		Where("accepted_vendor_id IS NULL AND expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&routings).Error
	return routings, err
}

func (r *repository) CreateResponse(ctx context.Context, response *models.VendorResponse) error {
	return r.DB(ctx).Create(response).Error
}

func (r *repository) ResponsesByRouting(ctx context.Context, routingID uuid.UUID) ([]models.VendorResponse, error) {
	var responses []models.VendorResponse
	err := r.DB(ctx).
		Where("routing_id = ?", routingID).
		Order("responded_at ASC").
		Find(&responses).Error
	return responses, err
}

func (r *repository) ActiveSellerProfiles(ctx context.Context) ([]models.SellerProfile, error) {
	var profiles []models.SellerProfile
	err := r.DB(ctx).
		Where("active = ?", true).
		Find(&profiles).Error
	return profiles, err
}

func (r *repository) BuyerRegion(ctx context.Context, buyerID uuid.UUID) (string, error) {
	var profile models.BuyerProfile
	err := r.DB(ctx).Where("buyer_id = ?", buyerID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.Region, nil
}

func (r *repository) StockLevels(ctx context.Context, sellerIDs, productIDs []uuid.UUID) ([]models.StockItem, error) {
	if len(sellerIDs) == 0 || len(productIDs) == 0 {
		return nil, nil
	}
	var items []models.StockItem
	err := r.DB(ctx).
		Where("seller_id IN ? AND product_id IN ?", sellerIDs, productIDs).
		Find(&items).Error
	return items, err
}
