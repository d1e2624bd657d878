package kafka

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event results.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

type metricSet struct {
	events  *prometheus.CounterVec
	actions *prometheus.CounterVec
	apply   *prometheus.HistogramVec
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitrep_invalidation_events_total",
				Help: "Invalidation events consumed, by result.",
			},
			[]string{"result"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitrep_invalidation_actions_total",
				Help: "Category clears and skips taken for invalidation events.",
			},
			[]string{"action"},
		),
		apply: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitrep_invalidation_apply_seconds",
				Help:    "Time to apply one invalidation event, by scope kind.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"scope"},
		),
	}
	if r != nil {
		r.MustRegister(m.events, m.actions, m.apply)
	}
	return m
}

func (m *metricSet) event(result string) { m.events.WithLabelValues(result).Inc() }

func (m *metricSet) action(a string) { m.actions.WithLabelValues(a).Inc() }

// applied observes d under the kind part of scope (category, region, bbox
// or all).
func (m *metricSet) applied(scope string, d time.Duration) {
	kind, _, _ := strings.Cut(scope, ":")
	m.apply.WithLabelValues(kind).Observe(d.Seconds())
}
