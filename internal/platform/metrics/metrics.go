package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the credential engine.
type Metrics struct {
	Registrations prometheus.Counter
	LoginAttempts *prometheus.CounterVec
	Lockouts      prometheus.Counter
	RiskScore     prometheus.Histogram
	DecryptMs     prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on a specific registry; tests use this to
// avoid duplicate registration across instances.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "pinguard_registrations_total",
			Help: "Total number of successful registrations",
		}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pinguard_login_attempts_total",
			Help: "Login attempts partitioned by outcome reason code",
		}, []string{"reason"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pinguard_lockouts_triggered_total",
			Help: "Accounts locked after consecutive failed attempts",
		}),
		RiskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinguard_risk_score",
			Help:    "Risk score distribution across login attempts",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 75, 100},
		}),
		DecryptMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinguard_pin_decrypt_duration_ms",
			Help:    "Latency of transport PIN decryption in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}),
	}
}

// RecordLogin increments the attempt counter for a reason code.
func (m *Metrics) RecordLogin(reason string) {
	m.LoginAttempts.WithLabelValues(reason).Inc()
}
