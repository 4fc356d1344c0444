package orders

import (
	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/db/models"
	"github.com/tradelinehq/tradeline/pkg/enums"
)

// CreateOrderInput is the order-creation request from the conversational
// layer. SellerID nil means an open order routed to ranked sellers.
type CreateOrderInput struct {
	BuyerID     uuid.UUID
	SellerID    *uuid.UUID
	PaymentMode enums.PaymentMode
	Items       []CreateOrderItem
}

// CreateOrderItem is one requested product line.
type CreateOrderItem struct {
	ProductID      uuid.UUID
	Qty            int
	UnitPriceCents int64
}

// OrderDetails is the read surface: the order, its transition history, and
// whatever holds it currently owns.
type OrderDetails struct {
	Order             *models.Order             `json:"order"`
	Events            []models.OrderEvent       `json:"events"`
	CreditReservation *models.CreditReservation `json:"credit_reservation,omitempty"`
	StockReservations []models.StockReservation `json:"stock_reservations,omitempty"`
}

// CreatedEvent is emitted once when an order enters the system.
type CreatedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	SellerID    *uuid.UUID        `json:"seller_id,omitempty"`
	PaymentMode enums.PaymentMode `json:"payment_mode"`
	TotalCents  int64             `json:"total_cents"`
	ItemCount   int               `json:"item_count"`
}

// ResolvedEvent is emitted when an order reaches a terminal state.
type ResolvedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
	Reason  string            `json:"reason,omitempty"`
}
