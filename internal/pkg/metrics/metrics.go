package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for deal access and claims.
type Metrics struct {
	AccessDecisions      *prometheus.CounterVec
	ResolveDuration      prometheus.Histogram
	ClaimsRecorded       *prometheus.CounterVec
	SubscriptionsExpired prometheus.Counter
}

// New registers all metrics with the default Prometheus registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AccessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perkfox_access_decisions_total",
			Help: "Deal access decisions by reason",
		}, []string{"reason"}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "perkfox_access_resolve_duration_seconds",
			Help:    "Duration of deal access resolution",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ClaimsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perkfox_claims_total",
			Help: "Recorded claim attempts by status",
		}, []string{"status"}),
		SubscriptionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "perkfox_subscriptions_expired_total",
			Help: "Subscriptions flipped to expired by the maintenance job",
		}),
	}
}

// ObserveDecision records one access decision. Safe on a nil receiver.
func (m *Metrics) ObserveDecision(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.AccessDecisions.WithLabelValues(reason).Inc()
	m.ResolveDuration.Observe(d.Seconds())
}

// ObserveClaim records one claim attempt. Safe on a nil receiver.
func (m *Metrics) ObserveClaim(status string) {
	if m == nil {
		return
	}
	m.ClaimsRecorded.WithLabelValues(status).Inc()
}

// AddExpiredSubscriptions records subscriptions expired in one run.
func (m *Metrics) AddExpiredSubscriptions(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SubscriptionsExpired.Add(float64(n))
}
