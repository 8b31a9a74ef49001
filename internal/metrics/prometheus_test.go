package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	return sink, reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetGauge() != nil {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func getHistogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetHistogram() != nil {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func getGaugeVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func TestPrometheusSink_Registration(t *testing.T) {
	// Should not panic or error with a fresh registry.
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	if sink == nil {
		t.Fatal("NewPrometheusSink returned nil")
	}
}

func TestPrometheusSink_DecisionRecorded(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.DecisionRecorded("redirect", 2*time.Millisecond)
	sink.DecisionRecorded("redirect", 4*time.Millisecond)
	sink.DecisionRecorded("interstitial", 3*time.Millisecond)

	redirects := getCounterVecValue(t, reg, "linkswap_decisions_total",
		map[string]string{"outcome": "redirect"})
	if redirects != 2 {
		t.Errorf("outcome=redirect = %v, want 2", redirects)
	}

	interstitials := getCounterVecValue(t, reg, "linkswap_decisions_total",
		map[string]string{"outcome": "interstitial"})
	if interstitials != 1 {
		t.Errorf("outcome=interstitial = %v, want 1", interstitials)
	}

	if n := getHistogramCount(t, reg, "linkswap_decision_duration_seconds"); n != 3 {
		t.Errorf("decision_duration sample count = %d, want 3", n)
	}
}

func TestPrometheusSink_ConflictRetried(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.ConflictRetried()

	if val := getCounterValue(t, reg, "linkswap_conflict_retries_total"); val != 1 {
		t.Errorf("conflict_retries_total = %v, want 1", val)
	}
}

func TestPrometheusSink_StoreErrorLabels(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.StoreError("find")
	sink.StoreError("find")
	sink.StoreError("create")

	if val := getCounterVecValue(t, reg, "linkswap_store_errors_total",
		map[string]string{"op": "find"}); val != 2 {
		t.Errorf("op=find = %v, want 2", val)
	}
	if val := getCounterVecValue(t, reg, "linkswap_store_errors_total",
		map[string]string{"op": "create"}); val != 1 {
		t.Errorf("op=create = %v, want 1", val)
	}
}

func TestPrometheusSink_BreakerStateChanged(t *testing.T) {
	sink, reg := newTestSink(t)
	labels := map[string]string{"backend": "postgres"}

	sink.BreakerStateChanged("postgres", true)
	if val := getGaugeVecValue(t, reg, "linkswap_store_breaker_open", labels); val != 1 {
		t.Errorf("breaker_open after open = %v, want 1", val)
	}

	sink.BreakerStateChanged("postgres", false)
	if val := getGaugeVecValue(t, reg, "linkswap_store_breaker_open", labels); val != 0 {
		t.Errorf("breaker_open after close = %v, want 0", val)
	}
}

func TestPrometheusSink_PairTotalsUpdate(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.PairTotalsUpdate(12, 340)

	if val := getGaugeValue(t, reg, "linkswap_pairs"); val != 12 {
		t.Errorf("pairs = %v, want 12", val)
	}
	if val := getGaugeValue(t, reg, "linkswap_redirects"); val != 340 {
		t.Errorf("redirects = %v, want 340", val)
	}
	if val := getGaugeValue(t, reg, "linkswap_stats_last_success_timestamp_seconds"); val <= 0 {
		t.Errorf("last_success_timestamp = %v, want > 0", val)
	}
}

func TestPrometheusSink_StatsCollectionFailed(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.StatsCollectionFailed()
	sink.StatsCollectionFailed()

	if val := getCounterValue(t, reg, "linkswap_stats_collection_failures_total"); val != 2 {
		t.Errorf("stats_collection_failures_total = %v, want 2", val)
	}
}

func TestPrometheusSink_DuplicateRegistration_NoPanic(t *testing.T) {
	// Registering metrics twice with the same registry should not panic.
	// The second registration will fail, but should be handled gracefully.
	reg := prometheus.NewRegistry()

	sink1 := NewPrometheusSink(reg)
	if sink1 == nil {
		t.Fatal("first NewPrometheusSink returned nil")
	}

	sink2 := NewPrometheusSink(reg)
	if sink2 == nil {
		t.Fatal("second NewPrometheusSink returned nil")
	}
}

// Verify PrometheusSink implements Sink interface.
var _ Sink = (*PrometheusSink)(nil)
