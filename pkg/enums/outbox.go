package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateVendorRouting OutboxAggregateType = "vendor_routing"
	AggregateLedgerEntry   OutboxAggregateType = "ledger_entry"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateVendorRouting,
	AggregateLedgerEntry,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStateChanged   OutboxEventType = "order_state_changed"
	EventOrderFailed         OutboxEventType = "order_failed"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventOrderFulfilled      OutboxEventType = "order_fulfilled"
	EventRoutingBroadcast    OutboxEventType = "routing_broadcast"
	EventRoutingAccepted     OutboxEventType = "routing_accepted"
	EventRoutingExpired      OutboxEventType = "routing_expired"
	EventSettlementRecorded  OutboxEventType = "settlement_recorded"
	EventReservationReleased OutboxEventType = "reservation_released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderFailed,
	EventOrderCancelled,
	EventOrderFulfilled,
	EventRoutingBroadcast,
	EventRoutingAccepted,
	EventRoutingExpired,
	EventSettlementRecorded,
	EventReservationReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
