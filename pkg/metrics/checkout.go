package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics tracks the payment flow: sessions, confirmations, webhooks
// and processor failures.
type CheckoutMetrics struct {
	sessionsCreated prometheus.Counter
	processorErrors *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	sessionLookups  *prometheus.CounterVec
	accountLookups  *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout metrics on reg. A nil registerer yields
// a no-op collector.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_created_total",
			Help:      "Checkout sessions created on connected accounts.",
		}),
		processorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_processor_errors_total",
			Help:      "Payment processor calls that failed, by operation.",
		}, []string{"operation"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations by source and outcome (transitioned, already_paid).",
		}, []string{"source", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Processor webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		sessionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_lookups_total",
			Help:      "Session verification lookups by resolution path (index, search, miss).",
		}, []string{"path"}),
		accountLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connected_account_lookups_total",
			Help:      "Session retrieval attempts against connected accounts during search.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.sessionsCreated, m.processorErrors, m.confirmations, m.webhookEvents, m.sessionLookups, m.accountLookups)
	return m
}

func (m *CheckoutMetrics) IncSessionCreated() {
	if m == nil || m.sessionsCreated == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *CheckoutMetrics) IncProcessorError(operation string) {
	if m == nil || m.processorErrors == nil {
		return
	}
	m.processorErrors.WithLabelValues(label(operation)).Inc()
}

func (m *CheckoutMetrics) IncConfirmation(source, outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(label(source), label(outcome)).Inc()
}

func (m *CheckoutMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(label(eventType), label(outcome)).Inc()
}

func (m *CheckoutMetrics) IncSessionLookup(path string) {
	if m == nil || m.sessionLookups == nil {
		return
	}
	m.sessionLookups.WithLabelValues(label(path)).Inc()
}

func (m *CheckoutMetrics) IncAccountLookup(outcome string) {
	if m == nil || m.accountLookups == nil {
		return
	}
	m.accountLookups.WithLabelValues(label(outcome)).Inc()
}
