package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the bot's collectors. A nil *Metrics records nothing, so
// components can be built without a registry in tests.
type Metrics struct {
	decisions       *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	throttled       prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessbot",
			Subsystem: "staff",
			Name:      "decisions_total",
			Help:      "Staff approve/deny attempts segmented by action and outcome.",
		}, []string{"action", "outcome"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessbot",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Invoice provider calls segmented by API method and outcome.",
		}, []string{"method", "outcome"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessbot",
			Subsystem: "payments",
			Name:      "reconciliations_total",
			Help:      "Invoice status applications segmented by trigger and resulting outcome.",
		}, []string{"source", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessbot",
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Best-effort notifications segmented by kind and delivery outcome.",
		}, []string{"kind", "outcome"}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "accessbot",
			Subsystem: "transport",
			Name:      "throttled_updates_total",
			Help:      "Inbound updates dropped by the per-user throttle.",
		}),
	}
	reg.MustRegister(m.decisions, m.providerCalls, m.reconciliations, m.notifications, m.throttled)
	return m
}

func (m *Metrics) Decision(action, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ProviderCall(method, outcome string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Reconciliation(source, outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) Notification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Throttled() {
	if m == nil {
		return
	}
	m.throttled.Inc()
}
