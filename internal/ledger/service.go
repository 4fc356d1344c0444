package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/money"
	"github.com/tradelinehq/tradeline/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	EnqueueInTx(ctx context.Context, tx *gorm.DB, recipient uuid.UUID, template enums.NotificationTemplate, data any) error
}

// Service records immutable ledger entries and answers balance queries.
// Balances are always recomputed from the entries; nothing is cached.
type Service interface {
	Record(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	RecordInTx(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.LedgerEntry, error)
	Settle(ctx context.Context, input SettleInput) (*models.LedgerEntry, error)
	Balance(ctx context.Context, buyerID, sellerID uuid.UUID) (*Balance, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	notify notifier
}

// RecordEntryInput captures the immutable data a ledger entry requires.
type RecordEntryInput struct {
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	Type        enums.LedgerEntryType
	AmountCents int64
	OrderID     *uuid.UUID
	Reference   string
}

// SettleInput describes a settlement event. Payments become CREDIT entries;
// corrections of a prior debit become REVERSAL entries.
type SettleInput struct {
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	AmountCents int64
	OrderID     *uuid.UUID
	Reversal    bool
	Reference   string
}

// Balance is the recomputed credit position of a (buyer, seller) pair.
// AdjustmentCents is reported for audit visibility but does not enter
// AvailableCents.
type Balance struct {
	BuyerID         uuid.UUID `json:"buyer_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	LimitCents      int64     `json:"limit_cents"`
	ReservedCents   int64     `json:"reserved_cents"`
	DebitedCents    int64     `json:"debited_cents"`
	CreditedCents   int64     `json:"credited_cents"`
	AdjustmentCents int64     `json:"adjustment_cents"`
	AvailableCents  int64     `json:"available_cents"`
}

// SettledEvent is the outbox payload written when a settlement lands.
type SettledEvent struct {
	EntryID     uuid.UUID             `json:"entry_id"`
	BuyerID     uuid.UUID             `json:"buyer_id"`
	SellerID    uuid.UUID             `json:"seller_id"`
	Type        enums.LedgerEntryType `json:"type"`
	AmountCents int64                 `json:"amount_cents"`
	OrderID     *uuid.UUID            `json:"order_id,omitempty"`
	Reference   string                `json:"reference,omitempty"`
}

// NewService wires a ledger service with the provided dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, notify notifier) (Service, error) {
	if repo == nil {
		return nil, errors.New("ledger repository required")
	}
	if tx == nil {
		return nil, errors.New("ledger tx runner required")
	}
	if publisher == nil {
		return nil, errors.New("ledger outbox publisher required")
	}
	if notify == nil {
		return nil, errors.New("ledger notifier required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, notify: notify}, nil
}

func (s *service) Record(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	return s.record(ctx, s.repo, input)
}

func (s *service) RecordInTx(ctx context.Context, tx *gorm.DB, input RecordEntryInput) (*models.LedgerEntry, error) {
	return s.record(ctx, s.repo.WithTx(tx), input)
}

func (s *service) record(ctx context.Context, repo Repository, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry type")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	entry := &models.LedgerEntry{
		BuyerID:     input.BuyerID,
		SellerID:    input.SellerID,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		OrderID:     input.OrderID,
		Reference:   input.Reference,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording ledger entry")
	}
	return entry, nil
}

// Settle records the entry, emits a settlement_recorded event, and queues
// the buyer's notification, all in one transaction.
func (s *service) Settle(ctx context.Context, input SettleInput) (*models.LedgerEntry, error) {
	entryType := enums.LedgerEntryTypeCredit
	if input.Reversal {
		entryType = enums.LedgerEntryTypeReversal
	}

	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.RecordInTx(ctx, tx, RecordEntryInput{
			BuyerID:     input.BuyerID,
			SellerID:    input.SellerID,
			Type:        entryType,
			AmountCents: input.AmountCents,
			OrderID:     input.OrderID,
			Reference:   input.Reference,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Version:       1,
			Data: SettledEvent{
				EntryID:     entry.ID,
				BuyerID:     entry.BuyerID,
				SellerID:    entry.SellerID,
				Type:        entry.Type,
				AmountCents: entry.AmountCents,
				OrderID:     entry.OrderID,
				Reference:   entry.Reference,
			},
		}); err != nil {
			return err
		}

		return s.notify.EnqueueInTx(ctx, tx, entry.BuyerID, enums.NotificationSettlementRecorded, map[string]any{
			"entry_id": entry.ID,
			"type":     entry.Type,
			"amount":   money.Format(entry.AmountCents),
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance recomputes the pair position:
//
//	available = limit - active reservations - debits + credits + reversals
func (s *service) Balance(ctx context.Context, buyerID, sellerID uuid.UUID) (*Balance, error) {
	return ComputeBalance(ctx, s.repo, buyerID, sellerID)
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	entries, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing ledger entries")
	}
	return entries, nil
}

// ComputeBalance is the single implementation of the availability formula.
// The credit manager calls it through its own tx-bound repository so the
// numbers it decides on are the ones it locked.
func ComputeBalance(ctx context.Context, repo Repository, buyerID, sellerID uuid.UUID) (*Balance, error) {
	if buyerID == uuid.Nil || sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and seller ids are required")
	}

	account, err := repo.AccountByPair(ctx, buyerID, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading credit account")
	}

	reserved, err := repo.SumActiveReservations(ctx, buyerID, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing reservations")
	}
	debited, err := repo.SumByType(ctx, buyerID, sellerID, enums.LedgerEntryTypeDebit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing debits")
	}
	credited, err := repo.SumByType(ctx, buyerID, sellerID, enums.LedgerEntryTypeCredit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing credits")
	}
	reversed, err := repo.SumByType(ctx, buyerID, sellerID, enums.LedgerEntryTypeReversal)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing reversals")
	}
	adjusted, err := repo.SumByType(ctx, buyerID, sellerID, enums.LedgerEntryTypeAdjustment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing adjustments")
	}

	return &Balance{
		BuyerID:         buyerID,
		SellerID:        sellerID,
		LimitCents:      account.CreditLimitCents,
		ReservedCents:   reserved,
		DebitedCents:    debited,
		CreditedCents:   credited + reversed,
		AdjustmentCents: adjusted,
		AvailableCents:  account.CreditLimitCents - reserved - debited + credited + reversed,
	}, nil
}
