package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	MethodRequests  *prometheus.CounterVec
	AuthFailures    prometheus.Counter
	ScoreCache      *prometheus.CounterVec
	InterestLookups *prometheus.CounterVec
	StoreAttempts   *prometheus.CounterVec
	StoreGiveUps    *prometheus.CounterVec
	BreakerOpen     prometheus.Gauge
	EndpointLatency *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MethodRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_method_requests_total",
			Help: "Method calls by method name and response code",
		}, []string{"method", "code"}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "scoring_auth_failures_total",
			Help: "Total number of rejected tokens",
		}),
		// hit, miss, error or abandoned
		ScoreCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_score_cache_total",
			Help: "Score cache lookups by outcome",
		}, []string{"outcome"}),
		InterestLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_interest_lookups_total",
			Help: "Per-client interest lookups by outcome",
		}, []string{"outcome"}),
		StoreAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_store_attempts_total",
			Help: "Store calls including retries, by operation",
		}, []string{"op"}),
		StoreGiveUps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_store_give_ups_total",
			Help: "Store calls that failed after all retries, by operation",
		}, []string{"op"}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "scoring_store_breaker_open",
			Help: "1 while the store circuit breaker is open",
		}),
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoring_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) IncrementMethodRequests(method string, code int) {
	if m == nil {
		return
	}
	m.MethodRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) IncrementAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) IncrementScoreCache(outcome string) {
	if m == nil {
		return
	}
	m.ScoreCache.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementInterestLookups(outcome string) {
	if m == nil {
		return
	}
	m.InterestLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementStoreAttempts(op string) {
	if m == nil {
		return
	}
	m.StoreAttempts.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrementStoreGiveUps(op string) {
	if m == nil {
		return
	}
	m.StoreGiveUps.WithLabelValues(op).Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// ObserveEndpointLatency records the latency for a given endpoint
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
