package metrics

import (
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.DecisionRecorded("redirect", 3*time.Millisecond)
	s.DecisionRecorded("rejected", 0)
	s.ConflictRetried()
	s.StoreError("find")
	s.BreakerStateChanged("postgres", true)
	s.BreakerStateChanged("postgres", false)
	s.PairTotalsUpdate(10, 250)
	s.StatsCollectionFailed()
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
