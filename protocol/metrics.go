package protocol

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	fw "github.com/reoring/flatwire"
)

// Dispatch outcomes.
const (
	OutcomeOK        = "ok"
	OutcomePrevented = "prevented"
	OutcomeError     = "error"
)

// Metrics counts dispatches. A nil *Metrics records nothing.
type Metrics struct {
	dispatch *prometheus.CounterVec
	duration *prometheus.HistogramVec
	issues   *prometheus.CounterVec
}

// NewMetrics registers the dispatcher collectors on reg under namespace.
// A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callback",
			Name:      "dispatch_total",
			Help:      "Callback dispatches by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "callback",
			Name:      "dispatch_duration_seconds",
			Help:      "Callback dispatch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callback",
			Name:      "issues_total",
			Help:      "Issues returned by callback dispatches, by code.",
		}, []string{"code"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.dispatch, m.duration, m.issues} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case errors.Is(err, errPrevented):
		outcome = OutcomePrevented
	case err != nil:
		outcome = OutcomeError
	}
	m.dispatch.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if iss, ok := fw.AsIssues(err); ok {
		for _, it := range iss {
			m.issues.WithLabelValues(it.Code).Inc()
		}
	}
}
