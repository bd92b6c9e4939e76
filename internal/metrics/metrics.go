// Package metrics records job metrics with Prometheus collectors on a private
// registry. After a run the registry can be written in the text exposition
// format for the node-exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rshade/varbatch/internal/engine/batch"
)

const (
	// Namespace is the namespace for all metrics.
	Namespace = "varbatch"

	// Subsystem is the subsystem for job metrics.
	Subsystem = "job"
)

// Item outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds the job collectors. It implements batch.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ItemsTotal          *prometheus.CounterVec
	ItemDurationSeconds prometheus.Histogram
	ChunksTotal         prometheus.Counter
	ReclaimsTotal       prometheus.Counter
	PhaseTransitions    *prometheus.CounterVec
	Phase               prometheus.Gauge
}

var _ batch.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "items_total",
				Help:      "Items processed, by outcome",
			},
			[]string{"outcome"},
		),
		ItemDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "item_duration_seconds",
				Help:      "Time spent on one item, settle delay included",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
		),
		ChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "chunks_total",
				Help:      "Chunks completed",
			},
		),
		ReclaimsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "reclaim_hints_total",
				Help:      "Reclamation hints issued",
			},
		),
		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "phase_transitions_total",
				Help:      "Scheduler phase transitions",
			},
			[]string{"from", "to"},
		),
		Phase: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "phase",
				Help:      "Current scheduler phase (0 idle, 1 running, 2 timed out, 3 completed, 4 cancelled)",
			},
		),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PhaseChanged implements batch.Observer.
func (m *Metrics) PhaseChanged(from, to batch.Phase) {
	m.PhaseTransitions.WithLabelValues(from.String(), to.String()).Inc()
	m.Phase.Set(float64(to))
}

// ItemProcessed implements batch.Observer.
func (m *Metrics) ItemProcessed(rec batch.ItemRecord, took time.Duration) {
	outcome := OutcomeOK
	if rec.Failed() {
		outcome = OutcomeFailed
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
	m.ItemDurationSeconds.Observe(took.Seconds())
}

// ChunkCompleted implements batch.Observer.
func (m *Metrics) ChunkCompleted(int, int) {
	m.ChunksTotal.Inc()
}

// ReclaimHinted implements batch.Observer.
func (m *Metrics) ReclaimHinted() {
	m.ReclaimsTotal.Inc()
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
