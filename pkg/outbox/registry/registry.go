// Package registry maps outbox rows onto broker topics and typed payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// ErrPermanent marks a row that no amount of retrying will publish.
var ErrPermanent = errors.New("outbox event is not publishable")

// Permanent tags err with ErrPermanent.
func Permanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was tagged by Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

type decoder func(json.RawMessage) (any, error)

func decodeInto[T any](raw json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

var decoders = map[enums.OutboxEventType]decoder{
	enums.EventOrderCreated:              decodeInto[payloads.OrderCreatedEvent],
	enums.EventOrderPaid:                 decodeInto[payloads.OrderPaidEvent],
	enums.EventStorePaymentAccountSynced: decodeInto[payloads.StorePaymentAccountSyncedEvent],
}

// Event is an outbox row ready for the broker.
type Event struct {
	Type     enums.OutboxEventType
	Topic    string
	Envelope outbox.Envelope
	Payload  any
}

type Registry struct {
	topics map[enums.OutboxEventType]string
}

// New routes every known event type to the domain topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	topics := make(map[enums.OutboxEventType]string, len(decoders))
	for eventType := range decoders {
		topics[eventType] = topic
	}
	return &Registry{topics: topics}, nil
}

// Resolve checks the row's routing columns and decodes its payload. Every
// failure is permanent.
func (r *Registry) Resolve(row models.OutboxEvent) (*Event, error) {
	topic, ok := r.topics[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if want := row.EventType.Aggregate(); want != row.AggregateType {
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", row.EventType, want, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	env, err := outbox.OpenEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", row.EventType, err))
	}
	payload, err := decoders[row.EventType](env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &Event{Type: row.EventType, Topic: topic, Envelope: env, Payload: payload}, nil
}
