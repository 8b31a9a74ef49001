package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) DecisionRecorded(outcome string, duration time.Duration) {}
func (n *NoopSink) ConflictRetried()                                        {}
func (n *NoopSink) StoreError(op string)                                    {}
func (n *NoopSink) BreakerStateChanged(backend string, open bool)           {}
func (n *NoopSink) PairTotalsUpdate(pairs, redirects int64)                 {}
func (n *NoopSink) StatsCollectionFailed()                                  {}
