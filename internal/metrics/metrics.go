// Package metrics exposes Prometheus instrumentation for the login flow.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	OutcomeSuccess           = "success"
	OutcomeMissingState      = "missing_state"
	OutcomeInvalidState      = "invalid_state"
	OutcomeAssertionRejected = "assertion_rejected"
	OutcomeMissingIdentity   = "missing_identity"
	OutcomeCancelled         = "cancelled"
	OutcomeSessionError      = "session_error"
)

// Verification results
const (
	VerificationValid     = "valid"
	VerificationRejected  = "rejected"
	VerificationCancelled = "cancelled"
)

// Persona lookup results
const (
	PersonaDisabled = "disabled"
	PersonaCacheHit = "cache_hit"
	PersonaFound    = "found"
	PersonaNotFound = "not_found"
	PersonaError    = "error"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	LoginsTotal          *prometheus.CounterVec
	VerificationDuration *prometheus.HistogramVec
	PersonaLookupsTotal  *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfl_steam_logins_total",
				Help: "Completed Steam login callbacks by outcome",
			},
			[]string{"outcome"},
		),
		VerificationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dfl_steam_verification_duration_seconds",
				Help:    "Duration of check_authentication round trips",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		PersonaLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfl_steam_persona_lookups_total",
				Help: "Steam Web API persona lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfl_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(
		m.LoginsTotal,
		m.VerificationDuration,
		m.PersonaLookupsTotal,
		m.HTTPRequestsTotal,
	)

	return m
}

// RecordLogin counts a finished callback
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveVerification records how long a verification took
func (m *Metrics) ObserveVerification(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.VerificationDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordPersonaLookup counts a persona lookup
func (m *Metrics) RecordPersonaLookup(result string) {
	if m == nil {
		return
	}
	m.PersonaLookupsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts a served request
func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the exposition format for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
