package otpengine

import (
	"github.com/go-playground/validator/v10"

	"github.com/bytemarket/otpengine/password"
)

// Engine defines a public type used by otpengine APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	challenges *challengeStore
	guard      *abuseGuard
	notifier   Notifier
	users      UserProvider
	hasher     *password.Bcrypt
	audit      *auditDispatcher
	metrics    *Metrics
	validate   *validator.Validate
}

// Close drains and stops the audit dispatcher. Safe on a nil receiver.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.challenges != nil && e.guard != nil
}
