package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/marketplace-backend/api/controllers/webhooks"
	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/checkout"
	"github.com/angelmondragon/marketplace-backend/internal/connect"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	stripewebhook "github.com/angelmondragon/marketplace-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/marketplace-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Sessions    *session.Manager
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Orders       orders.Service
	Checkout     checkout.SessionService
	Verification checkout.VerificationService
	Connect      connect.Service
	Gateway      *pkgstripe.Gateway
	Webhooks     *stripewebhook.Service
	WebhookGuard *stripewebhook.EventGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var revocations session.RevocationChecker
	logout := controllers.AuthLogout(nil, logg)
	if deps.Sessions != nil {
		revocations = deps.Sessions
		logout = controllers.AuthLogout(deps.Sessions, logg)
	}
	requireAuth := middleware.Auth(cfg.JWT, revocations, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, revocations, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/orders", func(r chi.Router) {
		r.With(optionalAuth, middleware.Idempotency(deps.Idempotency, cfg.Checkout.OrderIdempotencyTTL, logg)).
			Post("/", controllers.CreateOrder(deps.Orders, logg))
		r.With(requireAuth).Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", controllers.CreateCheckoutSession(deps.Checkout, logg))
		r.Get("/verify", controllers.VerifyCheckoutSession(deps.Verification, logg))
	})

	r.Route("/stripe", func(r chi.Router) {
		r.With(requireAuth).Post("/connect", controllers.ConnectStore(deps.Connect, logg))
		r.Post("/webhook", webhookcontrollers.StripeWebhook(deps.Webhooks, deps.Gateway, deps.WebhookGuard, logg))
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(requireAuth).Post("/logout", logout)
	})

	return r
}
