// Package metrics exposes the Prometheus instrumentation for the validator
// service. Every series carries a "tool" label so several tools can share one
// scrape target.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/densematrix/idea-validator/internal/entitlement"
)

// Metrics owns its registry, so tests and multiple instances never collide on
// duplicate registration.
type Metrics struct {
	registry *prometheus.Registry
	tool     string

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	paymentSuccess      *prometheus.CounterVec
	paymentRevenueCents *prometheus.CounterVec
	tokensConsumed      *prometheus.CounterVec
	freeTrialUsed       *prometheus.CounterVec
	coreFunctionCalls   *prometheus.CounterVec
}

func New(tool string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tool:     tool,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"tool", "endpoint", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool", "endpoint", "method"},
		),
		paymentSuccess: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_success_total",
				Help: "Successful payments",
			},
			[]string{"tool", "product_sku"},
		),
		paymentRevenueCents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_revenue_cents_total",
				Help: "Total revenue in cents",
			},
			[]string{"tool"},
		),
		tokensConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_consumed_total",
				Help: "Tokens consumed",
			},
			[]string{"tool"},
		),
		freeTrialUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "free_trial_used_total",
				Help: "Free trial uses",
			},
			[]string{"tool"},
		),
		coreFunctionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "core_function_calls_total",
				Help: "Core function (validation) calls",
			},
			[]string{"tool"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.paymentSuccess,
		m.paymentRevenueCents,
		m.tokensConsumed,
		m.freeTrialUsed,
		m.coreFunctionCalls,
	)
	return m
}

// Handler serves the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest observes one handled HTTP request.
func (m *Metrics) RecordRequest(endpoint, method string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(m.tool, endpoint, method, code).Inc()
	m.httpDuration.WithLabelValues(m.tool, endpoint, method).Observe(elapsed.Seconds())
}

// RecordPayment counts a settled checkout and its revenue.
func (m *Metrics) RecordPayment(productSKU string, amountCents int64) {
	m.paymentSuccess.WithLabelValues(m.tool, productSKU).Inc()
	m.paymentRevenueCents.WithLabelValues(m.tool).Add(float64(amountCents))
}

// RecordValidation counts a completed validation run and attributes it to the
// credit that paid for it.
func (m *Metrics) RecordValidation(basis entitlement.Basis) {
	m.coreFunctionCalls.WithLabelValues(m.tool).Inc()
	switch basis {
	case entitlement.BasisFreeTrial:
		m.freeTrialUsed.WithLabelValues(m.tool).Inc()
	case entitlement.BasisPaid:
		m.tokensConsumed.WithLabelValues(m.tool).Inc()
	}
}
