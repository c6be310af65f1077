package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	SearchRequestsTotal   *prometheus.CounterVec
	SearchRequestDuration *prometheus.HistogramVec

	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	SummariesTotal          *prometheus.CounterVec
	OptimizerFallbacksTotal prometheus.Counter

	RateLimitHitsTotal *prometheus.CounterVec
}

// New регистрирует метрики в reg. nil означает глобальный registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askweb_requests_total",
				Help: "Total number of answer requests processed",
			},
			[]string{"type", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askweb_request_duration_seconds",
				Help:    "Answer request duration in seconds",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120},
			},
			[]string{"type"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "askweb_requests_in_flight",
				Help: "Number of pipeline runs currently in progress",
			},
		),

		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askweb_llm_requests_total",
				Help: "Total number of completion attempts",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askweb_llm_request_duration_seconds",
				Help:    "Completion attempt duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),

		SearchRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askweb_search_requests_total",
				Help: "Total number of search provider calls",
			},
			[]string{"provider", "status"},
		),
		SearchRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askweb_search_request_duration_seconds",
				Help:    "Search provider call duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		),

		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askweb_extractions_total",
				Help: "Total number of page extractions",
			},
			[]string{"engine", "status"},
		),
		ExtractionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "askweb_extraction_duration_seconds",
				Help:    "Page extraction duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"engine"},
		),

		SummariesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askweb_summaries_total",
				Help: "Page summaries by outcome",
			},
			[]string{"outcome"},
		),
		OptimizerFallbacksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "askweb_optimizer_fallbacks_total",
				Help: "Number of times the original query was used instead of optimized ones",
			},
		),

		RateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "askweb_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"surface"},
		),
	}

	return m
}

func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(reqType, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(reqType, status).Inc()
	m.RequestDuration.WithLabelValues(reqType).Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMRequest(provider, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearchRequest(provider, status string, duration time.Duration) {
	m.SearchRequestsTotal.WithLabelValues(provider, status).Inc()
	m.SearchRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordExtraction(engine, status string, duration time.Duration) {
	m.ExtractionsTotal.WithLabelValues(engine, status).Inc()
	m.ExtractionDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

func (m *Metrics) RecordSummary(outcome string) {
	m.SummariesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordOptimizerFallback() {
	m.OptimizerFallbacksTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit(surface string) {
	m.RateLimitHitsTotal.WithLabelValues(surface).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
