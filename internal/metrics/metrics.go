package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	WebhookEvents  *prometheus.CounterVec
	StockBelowZero *prometheus.CounterVec
	Payouts        *prometheus.CounterVec
	PayoutAmount   prometheus.Counter
}

func New(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		StockBelowZero: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "stock_below_zero_total",
			Help:      "Stock decrements that left a product or variation below zero.",
		}, []string{"kind"}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "payouts_total",
			Help:      "Vendor payout attempts by outcome.",
		}, []string{"outcome"}),
		PayoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "payout_amount_cents_total",
			Help:      "Sum of transferred payout amounts in minor units.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.LatencyMS, m.WebhookEvents, m.StockBelowZero, m.Payouts, m.PayoutAmount,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(handler, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// StockWentNegative records an oversell. kind is "product" or "variation".
func (m *Metrics) StockWentNegative(kind string) {
	if m == nil {
		return
	}
	m.StockBelowZero.WithLabelValues(kind).Inc()
}

func (m *Metrics) Payout(outcome string, amountCents int64) {
	if m == nil {
		return
	}
	m.Payouts.WithLabelValues(outcome).Inc()
	if amountCents > 0 {
		m.PayoutAmount.Add(float64(amountCents))
	}
}
