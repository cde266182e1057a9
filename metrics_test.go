package otpengine

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricChallengeIssued)
	m.Observe(MetricVerifyLatency, 10*time.Millisecond)

	if m.Enabled() {
		t.Error("disabled metrics report enabled")
	}
	if got := m.Value(MetricChallengeIssued); got != 0 {
		t.Errorf("counter = %d, want 0", got)
	}
	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 || len(snapshot.Histograms) != 0 {
		t.Errorf("disabled snapshot not empty: %+v", snapshot)
	}
}

func TestMetricsCountersConcurrent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricVerifySuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricVerifySuccess); got != workers*perWorker {
		t.Errorf("counter = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []time.Duration{
		3 * time.Millisecond,
		8 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		2 * time.Second,
	}
	for _, d := range samples {
		m.Observe(MetricVerifyLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricVerifyLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("bucket count = %d, want %d", len(buckets), histBucketCount)
	}
	for i, count := range buckets {
		if count != 1 {
			t.Errorf("bucket %d = %d, want 1", i, count)
		}
	}

	// Only verify latency carries a histogram.
	m.Observe(MetricChallengeIssued, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricChallengeIssued]; ok {
		t.Error("unexpected histogram for a pure counter")
	}
}

func TestMetricsSnapshotIsolated(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricChallengeIssued)
	first := m.Snapshot()
	m.Inc(MetricChallengeIssued)

	if first.Counters[MetricChallengeIssued] != 1 {
		t.Errorf("snapshot mutated after the fact: %d", first.Counters[MetricChallengeIssued])
	}
	if got := m.Snapshot().Counters[MetricChallengeIssued]; got != 2 {
		t.Errorf("live counter = %d, want 2", got)
	}
}
