// Package metrics provides custom Prometheus metrics for the source filter.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RejectionMetrics contains all Prometheus metrics related to source rejection runs.
type RejectionMetrics struct {
	CandidatesTotal    *prometheus.CounterVec
	SNRHistogram       prometheus.Histogram
	PhotometryDuration prometheus.Histogram
	StageDuration      *prometheus.HistogramVec

	OverridesApplied   *prometheus.CounterVec
	OverridesPersisted *prometheus.CounterVec
	OverrideWarnings   *prometheus.CounterVec
	ConflictsTotal     prometheus.Counter

	LastRunTimestamp prometheus.Gauge
	Threshold        prometheus.Gauge

	registry *prometheus.Registry
}

// NewRejectionMetrics creates a new instance of RejectionMetrics and
// registers it with registry.
func NewRejectionMetrics(registry *prometheus.Registry) (*RejectionMetrics, error) {
	m := &RejectionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register rejection metrics: %w", err)
	}
	return m, nil
}

func (m *RejectionMetrics) initMetrics() {
	m.CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcefilter_candidates_total",
			Help: "Candidates processed, partitioned by final outcome and what decided it.",
		},
		[]string{"outcome", "provenance"},
	)
	m.SNRHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcefilter_snr",
			Help:    "Distribution of measured peak/RMS ratios.",
			Buckets: snrBuckets,
		},
	)
	m.PhotometryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sourcefilter_photometry_duration_seconds",
			Help:    "Time taken to build apertures and measure one candidate",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		},
	)
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sourcefilter_stage_duration_seconds",
			Help:    "Time taken by each run stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)

	m.OverridesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcefilter_overrides_applied_total",
			Help: "Overrides applied to verdicts, by source (persisted or submitted) and kind.",
		},
		[]string{"source", "kind"},
	)
	m.OverridesPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcefilter_overrides_persisted_total",
			Help: "Override identifiers appended to the override store, by kind.",
		},
		[]string{"kind"},
	)
	m.OverrideWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourcefilter_override_warnings_total",
			Help: "Skipped override entries, by reason.",
		},
		[]string{"reason"},
	)
	m.ConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sourcefilter_override_conflicts_total",
			Help: "Source ids present in both persisted override sets.",
		},
	)

	m.LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sourcefilter_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		},
	)
	m.Threshold = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sourcefilter_snr_threshold",
			Help: "SNR threshold used by the last run.",
		},
	)
}

// Describe implements the prometheus.Collector interface.
func (m *RejectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CandidatesTotal.Describe(ch)
	m.SNRHistogram.Describe(ch)
	m.PhotometryDuration.Describe(ch)
	m.StageDuration.Describe(ch)
	m.OverridesApplied.Describe(ch)
	m.OverridesPersisted.Describe(ch)
	m.OverrideWarnings.Describe(ch)
	m.ConflictsTotal.Describe(ch)
	m.LastRunTimestamp.Describe(ch)
	m.Threshold.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *RejectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CandidatesTotal.Collect(ch)
	m.SNRHistogram.Collect(ch)
	m.PhotometryDuration.Collect(ch)
	m.StageDuration.Collect(ch)
	m.OverridesApplied.Collect(ch)
	m.OverridesPersisted.Collect(ch)
	m.OverrideWarnings.Collect(ch)
	m.ConflictsTotal.Collect(ch)
	m.LastRunTimestamp.Collect(ch)
	m.Threshold.Collect(ch)
}

// RecordVerdict counts one final verdict.
func (m *RejectionMetrics) RecordVerdict(outcome, provenance string) {
	m.CandidatesTotal.WithLabelValues(outcome, provenance).Inc()
}

// RecordPhotometry records the duration of one candidate measurement and,
// when the SNR is finite, its value.
func (m *RejectionMetrics) RecordPhotometry(duration time.Duration, snr float64, ok bool) {
	m.PhotometryDuration.Observe(duration.Seconds())
	if ok {
		m.SNRHistogram.Observe(snr)
	}
}

// RecordStage records how long a run stage took.
func (m *RejectionMetrics) RecordStage(stage string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordOverrideApplied counts an override forced onto a verdict.
func (m *RejectionMetrics) RecordOverrideApplied(source, kind string) {
	m.OverridesApplied.WithLabelValues(source, kind).Inc()
}

// RecordOverridesPersisted counts identifiers written to the store.
func (m *RejectionMetrics) RecordOverridesPersisted(kind string, n int) {
	m.OverridesPersisted.WithLabelValues(kind).Add(float64(n))
}

// RecordOverrideWarning counts a skipped override entry.
func (m *RejectionMetrics) RecordOverrideWarning(reason string) {
	m.OverrideWarnings.WithLabelValues(reason).Inc()
}

// RecordConflicts counts conflicting persisted ids.
func (m *RejectionMetrics) RecordConflicts(n int) {
	m.ConflictsTotal.Add(float64(n))
}

// RecordRunComplete stamps the completion time and the threshold used.
func (m *RejectionMetrics) RecordRunComplete(at time.Time, threshold float64) {
	m.LastRunTimestamp.Set(float64(at.Unix()))
	m.Threshold.Set(threshold)
}
