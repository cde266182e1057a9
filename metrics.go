package otpengine

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by otpengine APIs.
type MetricID uint16

const (
	// MetricChallengeIssued is an exported constant or variable used by the OTP engine.
	MetricChallengeIssued MetricID = iota
	// MetricChallengeBlocked is an exported constant or variable used by the OTP engine.
	MetricChallengeBlocked
	// MetricDispatchFailure is an exported constant or variable used by the OTP engine.
	MetricDispatchFailure
	// MetricVerifySuccess is an exported constant or variable used by the OTP engine.
	MetricVerifySuccess
	// MetricVerifyInvalid is an exported constant or variable used by the OTP engine.
	MetricVerifyInvalid
	// MetricVerifyExpired is an exported constant or variable used by the OTP engine.
	MetricVerifyExpired
	// MetricVerifyLockout is an exported constant or variable used by the OTP engine.
	MetricVerifyLockout
	// MetricVerifyBlocked is an exported constant or variable used by the OTP engine.
	MetricVerifyBlocked
	// MetricVerificationConsumed is an exported constant or variable used by the OTP engine.
	MetricVerificationConsumed
	// MetricConsumeNotVerified is an exported constant or variable used by the OTP engine.
	MetricConsumeNotVerified
	// MetricRegistrationCompleted is an exported constant or variable used by the OTP engine.
	MetricRegistrationCompleted
	// MetricRegistrationDuplicate is an exported constant or variable used by the OTP engine.
	MetricRegistrationDuplicate
	// MetricPasswordResetCompleted is an exported constant or variable used by the OTP engine.
	MetricPasswordResetCompleted
	// MetricPasswordReuseRejected is an exported constant or variable used by the OTP engine.
	MetricPasswordReuseRejected
	// MetricStoreFailure is an exported constant or variable used by the OTP engine.
	MetricStoreFailure
	// MetricVerifyLatency is an exported constant or variable used by the OTP engine.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by otpengine APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by otpengine APIs.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
