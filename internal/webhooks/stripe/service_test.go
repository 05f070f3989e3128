package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/internal/stores"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

type harness struct {
	conn   *gorm.DB
	svc    *Service
	outbox *outbox.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, nil)
	storeRepo := stores.NewRepository(conn)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(conn),
		Tx:       db.FromGorm(conn),
		Stores:   storeRepo,
		Products: products.NewRepository(conn),
		Outbox:   emitter,
	})
	require.NoError(t, err)
	accounts, err := stores.NewAccountService(storeRepo, db.FromGorm(conn), emitter, nil)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{Confirmer: orderSvc, Accounts: accounts})
	require.NoError(t, err)
	return &harness{conn: conn, svc: svc, outbox: outboxRepo}
}

func event(t *testing.T, eventType stripe.EventType, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_" + uuid.NewString()[:8], Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestPaymentSucceededMarksOrderPaidOnce(t *testing.T) {
	h := newHarness(t)
	store := dbtest.SeedStore(t, h.conn, "5.00", "acct_1")
	order := dbtest.SeedPendingOrder(t, h.conn, store.ID, "39.98", "2.00", time.Now().UTC())

	evt := event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":       "pi_1",
		"object":   "payment_intent",
		"metadata": map[string]string{"orderId": order.ID.String()},
	})
	require.NoError(t, h.svc.HandleEvent(context.Background(), evt))
	require.NoError(t, h.svc.HandleEvent(context.Background(), evt))

	var got models.Order
	require.NoError(t, h.conn.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)
	assert.Equal(t, "pi_1", *got.StripePaymentIntentID)

	count, err := h.outbox.CountForAggregate(string(enums.EventOrderPaid), order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPaymentSucceededUnusableReferencesAreAcknowledged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	noMeta := event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_2", "object": "payment_intent"})
	assert.NoError(t, h.svc.HandleEvent(ctx, noMeta))

	malformed := event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id": "pi_3", "object": "payment_intent", "metadata": map[string]string{"orderId": "not-a-uuid"},
	})
	assert.NoError(t, h.svc.HandleEvent(ctx, malformed))

	unknown := event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id": "pi_4", "object": "payment_intent", "metadata": map[string]string{"orderId": uuid.NewString()},
	})
	assert.NoError(t, h.svc.HandleEvent(ctx, unknown))
}

func TestScenarioCAccountUpdatedBeforeProvisioning(t *testing.T) {
	h := newHarness(t)
	store := dbtest.SeedStore(t, h.conn, "5.00", "")

	evt := event(t, stripe.EventTypeAccountUpdated, map[string]any{
		"id":       "acct_from_webhook",
		"object":   "account",
		"metadata": map[string]string{"storeId": store.ID.String()},
	})
	require.NoError(t, h.svc.HandleEvent(context.Background(), evt))

	var got models.Store
	require.NoError(t, h.conn.First(&got, "id = ?", store.ID).Error)
	require.NotNil(t, got.StripeAccountID)
	assert.Equal(t, "acct_from_webhook", *got.StripeAccountID)

	count, err := h.outbox.CountForAggregate(string(enums.EventStorePaymentAccountSynced), store.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAccountUpdatedUnknownStoreAcknowledged(t *testing.T) {
	h := newHarness(t)
	evt := event(t, stripe.EventTypeAccountUpdated, map[string]any{
		"id": "acct_x", "object": "account", "metadata": map[string]string{"storeId": uuid.NewString()},
	})
	assert.NoError(t, h.svc.HandleEvent(context.Background(), evt))
}

func TestUnrecognizedEventIgnored(t *testing.T) {
	h := newHarness(t)
	evt := event(t, stripe.EventTypeChargeRefunded, map[string]any{"id": "ch_1", "object": "charge"})
	assert.NoError(t, h.svc.HandleEvent(context.Background(), evt))
}

type failingConfirmer struct{}

func (failingConfirmer) ConfirmPayment(context.Context, uuid.UUID, string, enums.ConfirmationSource) (*orders.ConfirmPaymentResult, error) {
	return nil, errors.New("database unavailable")
}

type noopSyncer struct{}

func (noopSyncer) SyncPaymentAccount(context.Context, uuid.UUID, string, string) (bool, error) {
	return false, nil
}

func TestTransientFailureIsReturnedForRedelivery(t *testing.T) {
	svc, err := NewService(ServiceParams{Confirmer: failingConfirmer{}, Accounts: noopSyncer{}})
	require.NoError(t, err)

	evt := event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id": "pi_5", "object": "payment_intent", "metadata": map[string]string{"orderId": uuid.NewString()},
	})
	assert.Error(t, svc.HandleEvent(context.Background(), evt))
}
