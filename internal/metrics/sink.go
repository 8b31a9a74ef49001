package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Engine metrics
	DecisionRecorded(outcome string, duration time.Duration)
	ConflictRetried()
	StoreError(op string)

	// Circuit breaker metrics
	BreakerStateChanged(backend string, open bool)

	// Stats collector metrics
	PairTotalsUpdate(pairs, redirects int64)
	StatsCollectionFailed()
}
