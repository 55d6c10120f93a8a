package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry       *prometheus.Registry
	SessionsTotal  *prometheus.CounterVec
	OpenSessions   prometheus.Gauge
	RenderDuration prometheus.Histogram
	ReceiptsTotal  prometheus.Counter
	LineItemsTotal prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipts_browser_sessions_total",
			Help: "Browser sessions by lifecycle event.",
		},
		[]string{"event"},
	)
	open := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "receipts_browser_sessions_open",
			Help: "Browser sessions currently open.",
		},
	)
	renderDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "receipts_render_duration_seconds",
			Help:    "Time from navigation to captured HTML.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	receipts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "receipts_parsed_total",
			Help: "Receipts extracted successfully.",
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "receipts_line_items_total",
			Help: "Line items across all extracted receipts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipts_errors_total",
			Help: "Failed requests by error kind.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(sessions, open, renderDuration, receipts, items, errorsTotal)

	return &Metrics{
		Registry:       registry,
		SessionsTotal:  sessions,
		OpenSessions:   open,
		RenderDuration: renderDuration,
		ReceiptsTotal:  receipts,
		LineItemsTotal: items,
		ErrorsTotal:    errorsTotal,
	}
}

// SessionOpened records a new browser session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues("opened").Inc()
	m.OpenSessions.Inc()
}

// SessionClosed records a torn down browser session.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues("closed").Inc()
	m.OpenSessions.Dec()
}

// ObserveDuration records a render duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// IncReceipt counts an extracted receipt and its line items.
func (m *Metrics) IncReceipt(items int) {
	if m == nil {
		return
	}
	m.ReceiptsTotal.Inc()
	m.LineItemsTotal.Add(float64(items))
}

// IncError increments the errors counter for a kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
