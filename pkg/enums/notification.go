package enums

import "fmt"

// NotificationTemplate names the message template the conversational layer renders.
type NotificationTemplate string

const (
	NotificationBuyerOrderConfirmed  NotificationTemplate = "buyer_order_confirmed"
	NotificationBuyerOrderFailed     NotificationTemplate = "buyer_order_failed"
	NotificationBuyerOrderCancelled  NotificationTemplate = "buyer_order_cancelled"
	NotificationSellerOrderBroadcast NotificationTemplate = "seller_order_broadcast"
	NotificationSellerOrderTaken     NotificationTemplate = "seller_order_taken"
	NotificationSellerOrderWon       NotificationTemplate = "seller_order_won"
	NotificationSettlementRecorded   NotificationTemplate = "settlement_recorded"
)

var validNotificationTemplates = []NotificationTemplate{
	NotificationBuyerOrderConfirmed,
	NotificationBuyerOrderFailed,
	NotificationBuyerOrderCancelled,
	NotificationSellerOrderBroadcast,
	NotificationSellerOrderTaken,
	NotificationSellerOrderWon,
	NotificationSettlementRecorded,
}

// IsValid reports whether the value is a known NotificationTemplate.
func (t NotificationTemplate) IsValid() bool {
	for _, candidate := range validNotificationTemplates {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationTemplate converts raw input into a NotificationTemplate.
func ParseNotificationTemplate(value string) (NotificationTemplate, error) {
	for _, candidate := range validNotificationTemplates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification template %q", value)
}
