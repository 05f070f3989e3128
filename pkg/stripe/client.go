package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultAPITimeout = 30 * time.Second
)

// keyPrefixes lists the secret and restricted key prefixes each env accepts.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

// Client holds the validated Stripe settings. NewClient also installs them on
// stripe-go's shared API backend, which the resource packages use.
type Client struct {
	environment   string
	signingSecret string
	currency      string
	country       string
	timeout       time.Duration
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", testEnv, liveEnv, env)
	}

	key := strings.TrimSpace(cfg.SecretKey)
	secret := strings.TrimSpace(cfg.WebhookSecret)
	switch {
	case key == "":
		return nil, errors.New("stripe secret key is required")
	case secret == "":
		return nil, errors.New("stripe webhook secret is required")
	case !hasAnyPrefix(key, prefixes):
		return nil, fmt.Errorf("stripe %s environment needs a key starting with one of %v", env, prefixes)
	}

	c := &Client{
		environment:   env,
		signingSecret: secret,
		currency:      cfg.NormalizedCurrency(),
		country:       strings.ToUpper(strings.TrimSpace(cfg.AccountCountry)),
		timeout:       cfg.APITimeout,
	}
	if c.timeout <= 0 {
		c.timeout = defaultAPITimeout
	}

	stripe.Key = key
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: c.timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     newLeveledLogger(ctx, logg),
	}))

	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client configured")
	}
	return c, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the webhook endpoint secret used to verify signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Currency is the lower-case settlement currency, usd unless configured.
func (c *Client) Currency() string {
	if c == nil || c.currency == "" {
		return "usd"
	}
	return c.currency
}

// AccountCountry is the country new connected accounts are created in.
func (c *Client) AccountCountry() string {
	if c == nil || c.country == "" {
		return "US"
	}
	return c.country
}

// leveledLogger routes stripe-go's own diagnostics into the service logger.
// Stripe's info chatter is demoted to debug.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func newLeveledLogger(ctx context.Context, logg *logger.Logger) stripe.LeveledLoggerInterface {
	if logg == nil {
		logg = logger.Nop()
	}
	return &leveledLogger{ctx: logg.WithField(context.WithoutCancel(ctx), "component", "stripe-go"), logg: logg}
}

func (l *leveledLogger) Debugf(format string, v ...any) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}
func (l *leveledLogger) Infof(format string, v ...any) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}
func (l *leveledLogger) Warnf(format string, v ...any) { l.logg.Warn(l.ctx, fmt.Sprintf(format, v...)) }

func (l *leveledLogger) Errorf(format string, v ...any) {
	l.logg.Error(l.ctx, "stripe-go error", fmt.Errorf(format, v...))
}
