// Package metrics exposes prometheus collectors for fixture loading.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels how a fixture load was satisfied.
type Outcome string

const (
	// OutcomeHit: restored from a snapshot artifact.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss: caching applied but no usable artifact existed.
	OutcomeMiss Outcome = "miss"
	// OutcomeUncached: the store or configuration does not allow caching.
	OutcomeUncached Outcome = "uncached"
)

// Recorder records fixture load metrics. A nil *Recorder discards everything.
type Recorder struct {
	loads    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	fixtures prometheus.Counter
}

// New creates a recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webtest",
			Subsystem: "fixtures",
			Name:      "loads_total",
			Help:      "Fixture loads by manager and cache outcome.",
		}, []string{"manager", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webtest",
			Subsystem: "fixtures",
			Name:      "load_failures_total",
			Help:      "Fixture loads that returned an error.",
		}, []string{"manager"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webtest",
			Subsystem: "fixtures",
			Name:      "load_duration_seconds",
			Help:      "Fixture load latency by cache outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"outcome"}),
		fixtures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webtest",
			Subsystem: "fixtures",
			Name:      "executed_total",
			Help:      "Individual fixtures executed against a store.",
		}),
	}
	for _, c := range []prometheus.Collector{r.loads, r.failures, r.duration, r.fixtures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveLoad records a completed load.
func (r *Recorder) ObserveLoad(manager string, outcome Outcome, executed int, d time.Duration) {
	if r == nil {
		return
	}
	r.loads.WithLabelValues(manager, string(outcome)).Inc()
	r.duration.WithLabelValues(string(outcome)).Observe(d.Seconds())
	r.fixtures.Add(float64(executed))
}

// LoadFailed records a failed load.
func (r *Recorder) LoadFailed(manager string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(manager).Inc()
}
