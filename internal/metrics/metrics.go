// Package metrics exports pipeline counters for external aggregation.
package metrics

import (
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Metrics exports query pipeline metrics to Prometheus.
type Metrics struct {
	queries       *promclient.CounterVec
	abstentions   *promclient.CounterVec
	fallbacks     promclient.Counter
	breakerTrips  promclient.Counter
	repairs       *promclient.CounterVec
	queryDuration *promclient.HistogramVec
}

// New registers the pipeline metrics on reg (DefaultRegisterer when nil).
func New(namespace string, reg promclient.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "archie"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	m := &Metrics{
		queries: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries processed, by winning route and decision kind.",
		}, []string{"route", "decision"}),
		abstentions: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "abstentions_total",
			Help:      "Deliberate abstentions, by reason.",
		}, []string{"reason"}),
		fallbacks: promclient.NewCounter(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_fallbacks_total",
			Help:      "Requests served keyword-only because embedding was unavailable.",
		}),
		breakerTrips: promclient.NewCounter(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_trips_total",
			Help:      "Embedding circuit breaker open transitions.",
		}),
		repairs: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "envelope_repairs_total",
			Help:      "Assurance outcomes: repaired, retried or degraded envelopes.",
		}, []string{"outcome"}),
		queryDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   promclient.DefBuckets,
		}, []string{"route"}),
	}

	for _, c := range []promclient.Collector{
		m.queries, m.abstentions, m.fallbacks, m.breakerTrips, m.repairs, m.queryDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(promclient.AlreadyRegisteredError); !ok {
				return nil, fmt.Errorf("register metric: %w", err)
			}
		}
	}
	return m, nil
}

// ObserveQuery records one completed query.
func (m *Metrics) ObserveQuery(route, decision string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(route, decision).Inc()
	m.queryDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveAbstention records an abstention by reason.
func (m *Metrics) ObserveAbstention(reason string) {
	if m == nil {
		return
	}
	m.abstentions.WithLabelValues(reason).Inc()
}

// ObserveFallback records a keyword-only fallback.
func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// ObserveBreakerTrip records a breaker open transition.
func (m *Metrics) ObserveBreakerTrip() {
	if m == nil {
		return
	}
	m.breakerTrips.Inc()
}

// ObserveRepair records an assurance outcome.
func (m *Metrics) ObserveRepair(outcome string) {
	if m == nil {
		return
	}
	m.repairs.WithLabelValues(outcome).Inc()
}
