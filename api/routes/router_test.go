package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	stripewebhook "github.com/angelmondragon/marketplace-backend/internal/webhooks/stripe"
	pkgAuth "github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryStore struct {
	keys map[string]any
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.keys[key]; ok {
		return v.(string), nil
	}
	return "", nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.keys[key] = value
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type noopConfirmer struct{}

func (noopConfirmer) ConfirmPayment(context.Context, uuid.UUID, string, enums.ConfirmationSource) (*orders.ConfirmPaymentResult, error) {
	return &orders.ConfirmPaymentResult{}, nil
}

type noopSyncer struct{}

func (noopSyncer) SyncPaymentAccount(context.Context, uuid.UUID, string, string) (bool, error) {
	return false, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", PublicURL: "http://localhost:3000", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer"},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	client, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{Env: "test", SecretKey: "sk_test_123", WebhookSecret: "whsec_test"}, nil)
	require.NoError(t, err)

	store := &memoryStore{keys: map[string]any{}}
	guard, err := stripewebhook.NewEventGuard(store, time.Hour)
	require.NoError(t, err)
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Confirmer: noopConfirmer{}, Accounts: noopSyncer{}})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Config:       cfg,
		Logger:       logger.Nop(),
		DB:           stubPinger{},
		Redis:        stubPinger{},
		Idempotency:  store,
		Gatherer:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		Gateway:      pkgstripe.NewGateway(client),
		Webhooks:     webhookSvc,
		WebhookGuard: guard,
	})
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterPublicEndpoints(t *testing.T) {
	h := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health/ready", "", nil).Code)

	rec := do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_http_requests_total")
}

func TestRouterAuthGates(t *testing.T) {
	h := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/orders/"+uuid.NewString(), "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/stripe/connect", `{"storeId":"`+uuid.NewString()+`"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/auth/logout", "", nil).Code)

	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)
	rec := do(h, http.MethodPost, "/auth/logout", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "logout without a session manager reports unavailable")
}

func TestRouterOrderCreationRequiresIdempotencyKey(t *testing.T) {
	h := newTestRouter(t)
	rec := do(h, http.MethodPost, "/orders", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

func TestRouterWebhookRequiresSignature(t *testing.T) {
	h := newTestRouter(t)
	rec := do(h, http.MethodPost, "/stripe/webhook", `{"id":"evt_1","type":"payment_intent.succeeded"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/stripe/webhook", `{"id":"evt_1"}`, map[string]string{"Stripe-Signature": "t=1,v1=bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
