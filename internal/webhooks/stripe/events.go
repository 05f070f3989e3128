package stripewebhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

var (
	// errNoCorrelation marks events that carry no marketplace reference.
	errNoCorrelation = errors.New("event has no marketplace reference")
	// errMalformedReference marks references that cannot be parsed.
	errMalformedReference = errors.New("event reference is malformed")
)

// PaymentSucceeded is the validated view of a payment_intent.succeeded event.
type PaymentSucceeded struct {
	PaymentIntentID string
	OrderID         uuid.UUID
}

// AccountUpdated is the validated view of an account.updated event.
type AccountUpdated struct {
	AccountID string
	StoreID   uuid.UUID
}

func decodePaymentSucceeded(raw json.RawMessage) (PaymentSucceeded, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return PaymentSucceeded{}, fmt.Errorf("decode payment intent: %w", err)
	}
	ref, ok := pi.Metadata[pkgstripe.MetadataOrderID]
	if !ok || strings.TrimSpace(ref) == "" {
		return PaymentSucceeded{}, errNoCorrelation
	}
	orderID, err := uuid.Parse(strings.TrimSpace(ref))
	if err != nil {
		return PaymentSucceeded{}, fmt.Errorf("%w: orderId %q", errMalformedReference, ref)
	}
	return PaymentSucceeded{PaymentIntentID: pi.ID, OrderID: orderID}, nil
}

func decodeAccountUpdated(raw json.RawMessage) (AccountUpdated, error) {
	var acct stripe.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return AccountUpdated{}, fmt.Errorf("decode account: %w", err)
	}
	ref, ok := acct.Metadata[pkgstripe.MetadataStoreID]
	if !ok || strings.TrimSpace(ref) == "" {
		return AccountUpdated{}, errNoCorrelation
	}
	if strings.TrimSpace(acct.ID) == "" {
		return AccountUpdated{}, fmt.Errorf("%w: account id missing", errMalformedReference)
	}
	storeID, err := uuid.Parse(strings.TrimSpace(ref))
	if err != nil {
		return AccountUpdated{}, fmt.Errorf("%w: storeId %q", errMalformedReference, ref)
	}
	return AccountUpdated{AccountID: acct.ID, StoreID: storeID}, nil
}
