package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

const guardScope = "stripe_webhook"

var ErrMissingEventID = errors.New("event id is required")

// EventGuard remembers processed event ids so redeliveries short-circuit.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &EventGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark claims eventID and reports whether it was already claimed.
func (g *EventGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, ErrMissingEventID
	}
	claimed, err := g.store.SetNX(ctx, g.store.IdempotencyKey(guardScope, eventID), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return !claimed, nil
}

// Delete releases a claim so the processor's redelivery is handled again.
func (g *EventGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return ErrMissingEventID
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(guardScope, eventID))
}
