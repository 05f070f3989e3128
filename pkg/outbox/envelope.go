package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written into every new envelope. Consumers branch on it
// when the data shape of an event changes.
const EnvelopeVersion = 1

// Actor is whoever caused the event: a signed-in customer or a system
// component such as "stripe_webhook".
type Actor struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	System string     `json:"system,omitempty"`
}

// Envelope wraps event data in outbox_events.payload and is what the
// publisher forwards to subscribers.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func sealEnvelope(version int, occurredAt time.Time, actor *Actor, data any) (Envelope, []byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("encode event data: %w", err)
	}
	if version == 0 {
		version = EnvelopeVersion
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	env := Envelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}
	sealed, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("encode envelope: %w", err)
	}
	return env, sealed, nil
}

// OpenEnvelope decodes a stored payload and rejects envelopes with no data.
func OpenEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, errors.New("envelope has no data")
	}
	return env, nil
}
