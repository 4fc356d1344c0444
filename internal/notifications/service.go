package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service hands message requests to the conversational layer: enqueue in the
// caller's transaction, drain pending rows, mark them sent.
type Service interface {
	EnqueueInTx(ctx context.Context, tx *gorm.DB, recipient uuid.UUID, template enums.NotificationTemplate, data any) error
	Enqueue(ctx context.Context, recipient uuid.UUID, template enums.NotificationTemplate, data any) error
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
	ListByRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a notifications service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// EnqueueInTx writes the notification row in the caller's transaction so it
// commits or rolls back with the domain change that produced it.
func (s *service) EnqueueInTx(ctx context.Context, tx *gorm.DB, recipient uuid.UUID, template enums.NotificationTemplate, data any) error {
	if recipient == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	if !template.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification template %q", template))
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal notification data")
	}
	notification := &models.Notification{
		Recipient: recipient,
		Template:  template,
		Data:      payload,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert notification")
	}
	return nil
}

func (s *service) Enqueue(ctx context.Context, recipient uuid.UUID, template enums.NotificationTemplate, data any) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.EnqueueInTx(ctx, tx, recipient, template, data)
	})
}

func (s *service) ListPending(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending notifications")
	}
	return rows, nil
}

func (s *service) ListByRecipient(ctx context.Context, recipient uuid.UUID, limit int) ([]models.Notification, error) {
	if recipient == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.ListByRecipient(ctx, recipient, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) MarkSent(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	stamped, err := s.repo.MarkSent(ctx, id, time.Now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification sent")
	}
	if stamped == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found or already sent")
	}
	return nil
}
