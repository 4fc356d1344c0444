package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/api/responses"
	"github.com/tradelinehq/tradeline/api/validators"
	internalorders "github.com/tradelinehq/tradeline/internal/orders"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/logger"
)

type createOrderRequest struct {
	BuyerID     string             `json:"buyer_id" validate:"required,uuid"`
	SellerID    string             `json:"seller_id" validate:"omitempty,uuid"`
	PaymentMode string             `json:"payment_mode" validate:"required,oneof=credit cash"`
	Items       []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	Qty            int    `json:"qty" validate:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"required,gt=0"`
}

type cancelOrderRequest struct {
	PerformedBy string `json:"performed_by" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
}

type fulfillOrderRequest struct {
	PerformedBy string `json:"performed_by" validate:"required"`
}

// Create places a new order. A seller_id pins the order to that vendor; an
// empty seller_id leaves it open for routed acceptance.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		buyerID, err := uuid.Parse(req.BuyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "buyer_id must be a valid uuid"))
			return
		}

		input := internalorders.CreateOrderInput{
			BuyerID:     buyerID,
			PaymentMode: enums.PaymentMode(req.PaymentMode),
		}
		if req.SellerID != "" {
			sellerID, err := uuid.Parse(req.SellerID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "seller_id must be a valid uuid"))
				return
			}
			input.SellerID = &sellerID
		}
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be a valid uuid"))
				return
			}
			input.Items = append(input.Items, internalorders.CreateOrderItem{
				ProductID:      productID,
				Qty:            item.Qty,
				UnitPriceCents: item.UnitPriceCents,
			})
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(order))
	}
}

// Detail returns the order with its transition history and active holds.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		details, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDetailsResponse(details))
	}
}

// Cancel moves a non-terminal order to CANCELLED and releases its holds.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, req.PerformedBy, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

// Fulfill converts an accepted order's holds and closes it out.
func Fulfill(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req fulfillOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Fulfill(r.Context(), orderID, req.PerformedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order))
	}
}
