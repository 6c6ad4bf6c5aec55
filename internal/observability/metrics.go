package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the auth server's Prometheus collectors.
type Metrics struct {
	LoginAttemptsTotal    *prometheus.CounterVec
	TokenValidationsTotal *prometheus.CounterVec
	PasswordCheckDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authserver_login_attempts_total",
				Help: "Login attempts by outcome code",
			},
			[]string{"outcome"},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authserver_token_validations_total",
				Help: "Token validations by result code",
			},
			[]string{"result"},
		),
		PasswordCheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authserver_password_check_duration_seconds",
				Help:    "Time spent comparing a password against its bcrypt hash",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.LoginAttemptsTotal,
		m.TokenValidationsTotal,
		m.PasswordCheckDuration,
	)
	return m
}

// RecordLogin counts a login attempt. outcome is "ok" or a failure code.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidation counts a token validation. result is "ok" or a failure code.
func (m *Metrics) RecordValidation(result string) {
	if m == nil {
		return
	}
	m.TokenValidationsTotal.WithLabelValues(result).Inc()
}

// ObservePasswordCheck records the duration of one bcrypt comparison.
func (m *Metrics) ObservePasswordCheck(d time.Duration) {
	if m == nil {
		return
	}
	m.PasswordCheckDuration.Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
