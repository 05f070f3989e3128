package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("pending-orders", 250*time.Millisecond)
	m.IncSuccess("pending-orders")
	m.IncFailure("")
	m.SetStalePendingOrders(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("pending-orders", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.stalePending))
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("pending-orders")), 5)

	count, err := testutil.GatherAndCount(reg, "marketplace_cron_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncSessionCreated()
	m.IncProcessorError("create_session")
	m.IncConfirmation("webhook", "transitioned")
	m.IncConfirmation("verification", "already_paid")
	m.IncWebhookEvent("payment_intent.succeeded", "processed")
	m.IncSessionLookup("index")
	m.IncAccountLookup("miss")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("webhook", "transitioned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("verification", "already_paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("payment_intent.succeeded", "processed")))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/orders", 201, 10*time.Millisecond)
	m.Observe("POST", "/orders", 201, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/orders", "201")))

	observer, err := m.duration.GetMetricWithLabelValues("POST", "/orders")
	require.NoError(t, err)
	var sample dto.Metric
	require.NoError(t, observer.(prometheus.Histogram).Write(&sample))
	assert.Equal(t, uint64(2), sample.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.03, sample.GetHistogram().GetSampleSum(), 1e-9)
}

func TestNilCollectorsAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	var checkout *CheckoutMetrics
	var httpM *HTTPMetrics
	assert.NotPanics(t, func() {
		cron.IncSuccess("x")
		cron.SetStalePendingOrders(1)
		checkout.IncSessionCreated()
		checkout.IncConfirmation("a", "b")
		httpM.Observe("GET", "/", 200, time.Millisecond)
		NewCheckoutMetrics(nil).IncWebhookEvent("a", "b")
	})
}
