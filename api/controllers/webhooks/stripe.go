package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const (
	signatureHeader = "Stripe-Signature"
	maxPayloadBytes = 64 << 10
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type eventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeWebhook struct {
	svc      StripeWebhookService
	verifier eventVerifier
	guard    eventGuard
	logg     *logger.Logger
}

// StripeWebhook acknowledges processor deliveries with {received:true}.
// Nothing is decoded until the signature over the raw body checks out.
// Redeliveries of applied events are acknowledged without side effects, and a
// handler error releases the event id so the processor's retry runs it again.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	h := &stripeWebhook{svc: svc, verifier: verifier, guard: guard, logg: logg}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.svc == nil || h.verifier == nil || h.guard == nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handling unavailable"))
		return
	}

	event, err := h.verify(r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	if h.logg != nil {
		ctx = h.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
	}

	seen, err := h.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if seen {
		h.info(ctx, "stripe event already processed")
		responses.WriteJSON(w, http.StatusOK, types.WebhookAck{Received: true})
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		h.release(ctx, event.ID)
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	h.info(ctx, "stripe event processed")
	responses.WriteJSON(w, http.StatusOK, types.WebhookAck{Received: true})
}

// verify reads the bounded raw body and checks its signature.
func (h *stripeWebhook) verify(r *http.Request) (stripe.Event, error) {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}

	payload, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload too large")
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	event, err := h.verifier.ConstructEvent(payload, signature)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook signature verification failed")
	}
	return event, nil
}

func (h *stripeWebhook) release(ctx context.Context, eventID string) {
	if err := h.guard.Delete(ctx, eventID); err != nil && h.logg != nil {
		h.logg.Error(ctx, "release webhook idempotency key", err)
	}
}

func (h *stripeWebhook) info(ctx context.Context, msg string) {
	if h.logg != nil {
		h.logg.Info(ctx, msg)
	}
}
