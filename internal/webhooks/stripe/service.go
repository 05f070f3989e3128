package stripewebhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"

	accountSyncSource = "stripe_webhook"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentIntentID string, source enums.ConfirmationSource) (*orders.ConfirmPaymentResult, error)
}

type accountSyncer interface {
	SyncPaymentAccount(ctx context.Context, storeID uuid.UUID, accountID, source string) (bool, error)
}

type eventRecorder interface {
	IncWebhookEvent(eventType, outcome string)
}

type ServiceParams struct {
	Confirmer paymentConfirmer
	Accounts  accountSyncer
	Metrics   eventRecorder
	Logger    *logger.Logger
}

// Service applies verified processor events to orders and stores. Handlers are
// idempotent and do not depend on delivery order.
type Service struct {
	confirmer paymentConfirmer
	accounts  accountSyncer
	metrics   eventRecorder
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Confirmer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment confirmer required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account syncer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		confirmer: params.Confirmer,
		accounts:  params.Accounts,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

// HandleEvent dispatches on event type. A returned error means the event
// should be redelivered; references that can never resolve are acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload missing")
	}
	eventType := string(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": eventType})

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		outcome, err = s.handlePaymentSucceeded(ctx, event)
	case stripe.EventTypeAccountUpdated:
		outcome, err = s.handleAccountUpdated(ctx, event)
	default:
		outcome = outcomeIgnored
	}
	if err != nil {
		outcome = outcomeFailed
	}
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(eventType, outcome)
	}
	return err
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event *stripe.Event) (string, error) {
	payload, err := decodePaymentSucceeded(event.Data.Raw)
	if err != nil {
		return s.skip(ctx, err)
	}
	ctx = s.logg.WithOrderID(ctx, payload.OrderID.String())

	if _, err := s.confirmer.ConfirmPayment(ctx, payload.OrderID, payload.PaymentIntentID, enums.ConfirmationSourceWebhook); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "payment succeeded for unknown order; acknowledging")
			return outcomeSkipped, nil
		}
		return "", err
	}
	return outcomeProcessed, nil
}

func (s *Service) handleAccountUpdated(ctx context.Context, event *stripe.Event) (string, error) {
	payload, err := decodeAccountUpdated(event.Data.Raw)
	if err != nil {
		return s.skip(ctx, err)
	}
	ctx = s.logg.WithStoreID(ctx, payload.StoreID.String())

	if _, err := s.accounts.SyncPaymentAccount(ctx, payload.StoreID, payload.AccountID, accountSyncSource); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "account updated for unknown store; acknowledging")
			return outcomeSkipped, nil
		}
		return "", err
	}
	return outcomeProcessed, nil
}

// skip acknowledges events without a usable reference. Absent references are
// normal; malformed ones are logged because they point at a producer bug.
func (s *Service) skip(ctx context.Context, err error) (string, error) {
	if errors.Is(err, errNoCorrelation) {
		return outcomeIgnored, nil
	}
	s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "webhook event not applicable; acknowledging")
	return outcomeSkipped, nil
}
