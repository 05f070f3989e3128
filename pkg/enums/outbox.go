package enums

import "fmt"

// OutboxAggregateType is the outbox_events.aggregate_type column.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateStore OutboxAggregateType = "store"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateStore
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the outbox_events.event_type column. Every event type
// belongs to exactly one aggregate type.
type OutboxEventType string

const (
	EventOrderCreated              OutboxEventType = "order_created"
	EventOrderPaid                 OutboxEventType = "order_paid"
	EventStorePaymentAccountSynced OutboxEventType = "store_payment_account_synced"
)

var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:              AggregateOrder,
	EventOrderPaid:                 AggregateOrder,
	EventStorePaymentAccountSynced: AggregateStore,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event is emitted for, or "" when
// the event type is unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
