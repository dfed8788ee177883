package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records remote call outcomes and credential refreshes.
// A nil *Metrics records nothing.
type Metrics struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
}

// NewMetrics creates the client metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selmag_remote_calls_total",
				Help: "Remote API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selmag_remote_call_duration_seconds",
				Help:    "Remote API call duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selmag_credential_refreshes_total",
				Help: "Access token exchanges by registration and result",
			},
			[]string{"registration", "result"},
		),
	}

	reg.MustRegister(m.calls, m.duration, m.refreshes)
	return m
}

// ObserveCall records one remote call.
func (m *Metrics) ObserveCall(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveRefresh records one token exchange.
func (m *Metrics) ObserveRefresh(registrationID, result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(registrationID, result).Inc()
}
