package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/internal/repo"
	"github.com/tradelinehq/tradeline/pkg/db/models"
)

// Repository persists notification rows for the messaging layer.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, notification *models.Notification) error
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
	ListByRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Insert(ctx context.Context, notification *models.Notification) error {
	return r.DB(ctx).Create(notification).Error
}

func (r *repository) ListPending(ctx context.Context, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.DB(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.DB(ctx).
		Where("recipient = ?", recipient).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkSent stamps the row once; a second call matches zero rows.
func (r *repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	result := r.DB(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", at)
	return result.RowsAffected, result.Error
}
