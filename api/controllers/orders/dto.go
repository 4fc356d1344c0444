package orders

import (
	"time"

	"github.com/google/uuid"

	internalorders "github.com/tradelinehq/tradeline/internal/orders"
	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
)

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	Status      enums.OrderStatus   `json:"status"`
	BuyerID     uuid.UUID           `json:"buyer_id"`
	SellerID    *uuid.UUID          `json:"seller_id,omitempty"`
	PaymentMode enums.PaymentMode   `json:"payment_mode"`
	TotalCents  int64               `json:"total_cents"`
	Items       []orderItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Qty            int       `json:"qty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

type orderEventResponse struct {
	FromStatus  enums.OrderStatus `json:"from_status"`
	ToStatus    enums.OrderStatus `json:"to_status"`
	PerformedBy string            `json:"performed_by"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type creditReservationResponse struct {
	ID          uuid.UUID               `json:"id"`
	AmountCents int64                   `json:"amount_cents"`
	Status      enums.ReservationStatus `json:"status"`
}

type stockReservationResponse struct {
	ID        uuid.UUID               `json:"id"`
	ProductID uuid.UUID               `json:"product_id"`
	Qty       int                     `json:"qty"`
	Status    enums.ReservationStatus `json:"status"`
}

type orderDetailsResponse struct {
	Order             orderResponse              `json:"order"`
	Events            []orderEventResponse       `json:"events"`
	CreditReservation *creditReservationResponse `json:"credit_reservation,omitempty"`
	StockReservations []stockReservationResponse `json:"stock_reservations,omitempty"`
}

func toOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID,
		Status:      order.Status,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		PaymentMode: order.PaymentMode,
		TotalCents:  order.TotalCents,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return resp
}

func toDetailsResponse(details *internalorders.OrderDetails) orderDetailsResponse {
	resp := orderDetailsResponse{Order: toOrderResponse(details.Order)}
	for _, event := range details.Events {
		resp.Events = append(resp.Events, orderEventResponse{
			FromStatus:  event.FromStatus,
			ToStatus:    event.ToStatus,
			PerformedBy: event.PerformedBy,
			Reason:      event.Reason,
			CreatedAt:   event.CreatedAt,
		})
	}
	if details.CreditReservation != nil {
		resp.CreditReservation = &creditReservationResponse{
			ID:          details.CreditReservation.ID,
			AmountCents: details.CreditReservation.AmountCents,
			Status:      details.CreditReservation.Status,
		}
	}
	for _, hold := range details.StockReservations {
		resp.StockReservations = append(resp.StockReservations, stockReservationResponse{
			ID:        hold.ID,
			ProductID: hold.ProductID,
			Qty:       hold.Qty,
			Status:    hold.Status,
		})
	}
	return resp
}
