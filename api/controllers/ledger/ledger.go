package ledger

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/api/responses"
	"github.com/tradelinehq/tradeline/api/validators"
	internalledger "github.com/tradelinehq/tradeline/internal/ledger"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/logger"
)

type entryResponse struct {
	ID          uuid.UUID             `json:"id"`
	BuyerID     uuid.UUID             `json:"buyer_id"`
	SellerID    uuid.UUID             `json:"seller_id"`
	Type        enums.LedgerEntryType `json:"type"`
	AmountCents int64                 `json:"amount_cents"`
	OrderID     *uuid.UUID            `json:"order_id,omitempty"`
	Reference   string                `json:"reference,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func toEntryResponse(entry *models.LedgerEntry) entryResponse {
	return entryResponse{
		ID:          entry.ID,
		BuyerID:     entry.BuyerID,
		SellerID:    entry.SellerID,
		Type:        entry.Type,
		AmountCents: entry.AmountCents,
		OrderID:     entry.OrderID,
		Reference:   entry.Reference,
		CreatedAt:   entry.CreatedAt,
	}
}

type settleRequest struct {
	BuyerID     string `json:"buyer_id" validate:"required,uuid"`
	SellerID    string `json:"seller_id" validate:"required,uuid"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	OrderID     string `json:"order_id" validate:"omitempty,uuid"`
	Reversal    bool   `json:"reversal"`
	Reference   string `json:"reference"`
}

// Settle records a payment (CREDIT) or a correction of a prior debit
// (REVERSAL) against a buyer/seller pair.
func Settle(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyerID, err := uuid.Parse(req.BuyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "buyer_id must be a valid uuid"))
			return
		}
		sellerID, err := uuid.Parse(req.SellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "seller_id must be a valid uuid"))
			return
		}

		input := internalledger.SettleInput{
			BuyerID:     buyerID,
			SellerID:    sellerID,
			AmountCents: req.AmountCents,
			Reversal:    req.Reversal,
			Reference:   req.Reference,
		}
		if req.OrderID != "" {
			orderID, err := uuid.Parse(req.OrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a valid uuid"))
				return
			}
			input.OrderID = &orderID
		}

		entry, err := svc.Settle(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toEntryResponse(entry))
	}
}

// Balance recomputes the credit position of a buyer/seller pair from the
// ledger and active reservations.
func Balance(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := validators.UUIDQuery(r, "buyer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := validators.UUIDQuery(r, "seller_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), buyerID, sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// History lists the immutable ledger entries touching one order.
func History(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]entryResponse, 0, len(entries))
		for i := range entries {
			out = append(out, toEntryResponse(&entries[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
