package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Engine metrics
	decisionsTotal       *prometheus.CounterVec
	decisionDuration     prometheus.Histogram
	conflictRetriesTotal prometheus.Counter
	storeErrorsTotal     *prometheus.CounterVec

	// Circuit breaker metrics
	breakerOpen *prometheus.GaugeVec

	// Stats collector metrics
	pairs              prometheus.Gauge
	redirects          prometheus.Gauge
	statsFailuresTotal prometheus.Counter
	statsLastSuccess   prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initEngineMetrics(reg)
	s.initBreakerMetrics(reg)
	s.initStatsMetrics(reg)
	return s
}

func (s *PrometheusSink) initEngineMetrics(reg prometheus.Registerer) {
	s.decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkswap_decisions_total",
		Help: "Total number of redirect decisions by outcome.",
	}, []string{"outcome"})
	s.decisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkswap_decision_duration_seconds",
		Help:    "Time taken to decide a redirect, including store access.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	s.conflictRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkswap_conflict_retries_total",
		Help: "Total number of decisions retried after a concurrent pair creation.",
	})
	s.storeErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkswap_store_errors_total",
		Help: "Total number of failed store operations by operation.",
	}, []string{"op"})

	s.register(reg, s.decisionsTotal, "linkswap_decisions_total")
	s.register(reg, s.decisionDuration, "linkswap_decision_duration_seconds")
	s.register(reg, s.conflictRetriesTotal, "linkswap_conflict_retries_total")
	s.register(reg, s.storeErrorsTotal, "linkswap_store_errors_total")
}

func (s *PrometheusSink) initBreakerMetrics(reg prometheus.Registerer) {
	s.breakerOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linkswap_store_breaker_open",
		Help: "1 while the store circuit breaker is open, 0 otherwise.",
	}, []string{"backend"})

	s.register(reg, s.breakerOpen, "linkswap_store_breaker_open")
}

func (s *PrometheusSink) initStatsMetrics(reg prometheus.Registerer) {
	s.pairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkswap_pairs",
		Help: "Number of domain pairs in the store at the last collection.",
	})
	s.redirects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkswap_redirects",
		Help: "Sum of all pair counters at the last collection.",
	})
	s.statsFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linkswap_stats_collection_failures_total",
		Help: "Total number of failed stats collections.",
	})
	s.statsLastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "linkswap_stats_last_success_timestamp_seconds",
		Help: "Unix time of the last successful stats collection.",
	})

	s.register(reg, s.pairs, "linkswap_pairs")
	s.register(reg, s.redirects, "linkswap_redirects")
	s.register(reg, s.statsFailuresTotal, "linkswap_stats_collection_failures_total")
	s.register(reg, s.statsLastSuccess, "linkswap_stats_last_success_timestamp_seconds")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Engine metrics implementation

func (s *PrometheusSink) DecisionRecorded(outcome string, duration time.Duration) {
	s.decisionsTotal.WithLabelValues(outcome).Inc()
	s.decisionDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ConflictRetried() {
	s.conflictRetriesTotal.Inc()
}

func (s *PrometheusSink) StoreError(op string) {
	s.storeErrorsTotal.WithLabelValues(op).Inc()
}

// Circuit breaker metrics implementation

func (s *PrometheusSink) BreakerStateChanged(backend string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	s.breakerOpen.WithLabelValues(backend).Set(v)
}

// Stats collector metrics implementation

func (s *PrometheusSink) PairTotalsUpdate(pairs, redirects int64) {
	s.pairs.Set(float64(pairs))
	s.redirects.Set(float64(redirects))
	s.statsLastSuccess.SetToCurrentTime()
}

func (s *PrometheusSink) StatsCollectionFailed() {
	s.statsFailuresTotal.Inc()
}
