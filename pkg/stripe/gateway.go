package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

const (
	// MetadataOrderID tags sessions and payment intents with the marketplace order.
	MetadataOrderID = "orderId"
	// MetadataStoreID tags connected accounts with the owning store.
	MetadataStoreID = "storeId"

	PaymentStatusPaid = "paid"

	// CheckoutSessionIDPlaceholder is substituted by Stripe in the success URL.
	CheckoutSessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

// api is the subset of the Stripe resource packages the gateway calls.
type api interface {
	NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewAccount(params *stripe.AccountParams) (*stripe.Account, error)
	NewAccountLink(params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

type resourceAPI struct{}

func (resourceAPI) NewSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (resourceAPI) GetSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.Get(id, params)
}

func (resourceAPI) NewAccount(params *stripe.AccountParams) (*stripe.Account, error) {
	return account.New(params)
}

func (resourceAPI) NewAccountLink(params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	return accountlink.New(params)
}

// LineItem is one priced row on a hosted checkout page, amounts in minor units.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int64
}

// SessionRequest describes a checkout session created on a connected account.
type SessionRequest struct {
	AccountID      string
	OrderID        string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	ApplicationFee int64
	LineItems      []LineItem
}

// Session is the processor-side view of a checkout session.
type Session struct {
	ID              string
	AccountID       string
	PaymentStatus   string
	PaymentIntentID string
	Metadata        map[string]string
}

// OrderID returns the order reference carried in the session metadata.
func (s *Session) OrderID() string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.Metadata[MetadataOrderID])
}

// IsPaid reports whether the processor considers the session paid.
func (s *Session) IsPaid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// AccountRequest describes a new Express connected account.
type AccountRequest struct {
	StoreID string
	Email   string
}

// Gateway performs the Stripe Connect calls used by checkout and onboarding.
type Gateway struct {
	client *Client
	api    api
}

// NewGateway binds the gateway to an initialized client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client, api: resourceAPI{}}
}

// CreateExpressAccount creates a connected account with card payments and transfers requested.
// The store id is tagged in metadata so account.updated events can be correlated.
func (g *Gateway) CreateExpressAccount(ctx context.Context, req AccountRequest) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(g.client.AccountCountry()),
		Email:   stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataStoreID, req.StoreID)
	params.SetIdempotencyKey(AccountIdempotencyKey(req.StoreID))

	acct, err := g.api.NewAccount(params)
	if err != nil {
		return "", providerError("create connected account", err)
	}
	return acct.ID, nil
}

// CreateOnboardingLink returns a hosted onboarding URL for the account.
func (g *Gateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := g.api.NewAccountLink(params)
	if err != nil {
		return "", providerError("create onboarding link", err)
	}
	return link.URL, nil
}

// CreateCheckoutSession creates a payment-mode session scoped to the connected account.
// The request is keyed on the order id so retries resolve to the same session.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	currency := g.client.Currency()
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if strings.TrimSpace(li.Description) != "" {
			product.Description = stripe.String(li.Description)
		}
		if strings.TrimSpace(li.ImageURL) != "" {
			product.Images = stripe.StringSlice([]string{li.ImageURL})
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          items,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(req.ApplicationFee),
			Metadata:             map[string]string{MetadataOrderID: req.OrderID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.OrderID)
	params.SetStripeAccount(req.AccountID)
	params.SetIdempotencyKey(SessionIdempotencyKey(req.OrderID))

	cs, err := g.api.NewSession(params)
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	return toSession(cs, req.AccountID), nil
}

// GetCheckoutSession retrieves a session from the connected account that owns it.
func (g *Gateway) GetCheckoutSession(ctx context.Context, accountID, sessionID string) (*Session, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	cs, err := g.api.GetSession(sessionID, params)
	if err != nil {
		return nil, providerError("retrieve checkout session", err)
	}
	return toSession(cs, accountID), nil
}

// ConstructEvent verifies the signature header and decodes the event.
// API version mismatches are tolerated so processor upgrades do not stop delivery.
func (g *Gateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, g.client.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// SessionIdempotencyKey derives the processor idempotency key for an order's session.
func SessionIdempotencyKey(orderID string) string {
	return fmt.Sprintf("checkout-session-%s", orderID)
}

// AccountIdempotencyKey keeps concurrent onboarding calls for a store on one account.
func AccountIdempotencyKey(storeID string) string {
	return fmt.Sprintf("connect-account-%s", storeID)
}

// IsNotFound reports whether the processor rejected a lookup because the resource is missing.
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := defaultAPITimeout
	if g.client != nil && g.client.timeout > 0 {
		timeout = g.client.timeout
	}
	return context.WithTimeout(ctx, timeout)
}

func toSession(cs *stripe.CheckoutSession, accountID string) *Session {
	if cs == nil {
		return nil
	}
	out := &Session{
		ID:            cs.ID,
		AccountID:     accountID,
		PaymentStatus: string(cs.PaymentStatus),
		Metadata:      cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	return out
}

// providerError surfaces the upstream message to the caller.
func providerError(op string, err error) error {
	msg := err.Error()
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		msg = stripeErr.Msg
	}
	return pkgerrors.Wrap(pkgerrors.CodePaymentProvider, err, fmt.Sprintf("%s: %s", op, msg))
}
