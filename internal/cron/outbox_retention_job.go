package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/db/models"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

// OutboxRetentionJob prunes published outbox events past the retention
// window. Unpublished rows are never touched.
type OutboxRetentionJob struct {
	conn      *gorm.DB
	retention time.Duration
}

// NewOutboxRetentionJob builds the outbox retention job.
func NewOutboxRetentionJob(conn *gorm.DB, retention time.Duration) (*OutboxRetentionJob, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &OutboxRetentionJob{conn: conn, retention: retention}, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox_retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)
	result := j.conn.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	if result.Error != nil {
		return fmt.Errorf("prune outbox events: %w", result.Error)
	}
	return nil
}
