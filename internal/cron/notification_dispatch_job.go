package cron

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/logger"
)

// notificationQueue is the slice of the notifications service the job needs.
type notificationQueue interface {
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// notificationSender delivers one notification to its recipient. The bus
// publisher in cmd wiring satisfies this; tests substitute a recorder.
type notificationSender interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// NotificationDispatchJob drains pending notification rows each cycle and
// hands them to the delivery channel. A row is marked sent only after the
// sender accepted it, so delivery failures retry next cycle.
type NotificationDispatchJob struct {
	queue     notificationQueue
	sender    notificationSender
	logg      *logger.Logger
	batchSize int
}

const notificationChannel = "tl:notifications"

// NewNotificationDispatchJob builds the notification delivery job.
func NewNotificationDispatchJob(queue notificationQueue, sender notificationSender, logg *logger.Logger, batchSize int) (*NotificationDispatchJob, error) {
	if queue == nil {
		return nil, fmt.Errorf("notification queue required")
	}
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &NotificationDispatchJob{queue: queue, sender: sender, logg: logg, batchSize: batchSize}, nil
}

func (j *NotificationDispatchJob) Name() string { return "notification_dispatch" }

func (j *NotificationDispatchJob) Run(ctx context.Context) error {
	pending, err := j.queue.ListPending(ctx, j.batchSize)
	if err != nil {
		return err
	}

	var errs error
	for _, note := range pending {
		fields := map[string]any{
			"notification_id": note.ID.String(),
			"recipient":       note.Recipient.String(),
			"template":        string(note.Template),
		}
		payload, err := json.Marshal(map[string]any{
			"id":        note.ID,
			"recipient": note.Recipient,
			"template":  note.Template,
			"data":      note.Data,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := j.sender.Publish(ctx, notificationChannel, payload); err != nil {
			j.logg.Error(j.logg.WithFields(ctx, fields), "notification delivery failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if err := j.queue.MarkSent(ctx, note.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		j.logg.Info(j.logg.WithFields(ctx, fields), "notification delivered")
	}
	return errs
}
