// Package observability holds the Prometheus metrics exposed on /metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values shared by the auth counters.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeValidation         = "validation_error"
	OutcomeConflict           = "conflict"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeMismatch           = "password_mismatch"
	OutcomeUnknownEmail       = "unknown_email"
	OutcomeDeliveryFailed     = "delivery_failed"
	OutcomeError              = "error"
)

// Metrics contains the identity service counters.
// All Record methods are safe on a nil *Metrics so callers can run without a registry.
type Metrics struct {
	LoginsTotal          *prometheus.CounterVec
	RegistrationsTotal   *prometheus.CounterVec
	PasswordResetsTotal  *prometheus.CounterVec
	ResetTokensSwept     prometheus.Counter
	AuthenticatedDenials *prometheus.CounterVec
}

// NewMetrics creates and registers the identity service metrics.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ficticia_auth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ficticia_auth_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		PasswordResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ficticia_auth_password_resets_total",
				Help: "Total number of password reset operations by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		ResetTokensSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ficticia_auth_reset_tokens_swept_total",
				Help: "Total number of expired password reset tokens cleared by the sweeper",
			},
		),
		AuthenticatedDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ficticia_http_access_denied_total",
				Help: "Total number of requests rejected by route guards by status",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.PasswordResetsTotal,
		m.ResetTokensSwept,
		m.AuthenticatedDenials,
	)
	return m
}

// NewRegistry returns a private registry with the Go and process collectors installed.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordLogin increments the login counter.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordRegistration increments the registration counter.
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordPasswordReset increments the reset counter. stage is "request" or "reset".
func (m *Metrics) RecordPasswordReset(stage, outcome string) {
	if m == nil {
		return
	}
	m.PasswordResetsTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordSwept adds n cleared reset tokens.
func (m *Metrics) RecordSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ResetTokensSwept.Add(float64(n))
}

// RecordDenied counts a request rejected with the given HTTP status.
func (m *Metrics) RecordDenied(status int) {
	if m == nil {
		return
	}
	m.AuthenticatedDenials.WithLabelValues(http.StatusText(status)).Inc()
}
