package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *RejectionMetrics {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := NewRejectionMetrics(registry)
	require.NoError(t, err)
	return m
}

func TestRecordVerdict(t *testing.T) {
	m := newTestMetrics(t)

	testCases := []struct {
		name       string
		outcome    string
		provenance string
	}{
		{"threshold accept", OutcomeAccepted, "threshold"},
		{"override reject", OutcomeRejected, "override-reject"},
		{"unevaluable", OutcomeUnevaluable, "unevaluable"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m.RecordVerdict(tc.outcome, tc.provenance)
			count := testutil.ToFloat64(m.CandidatesTotal.WithLabelValues(tc.outcome, tc.provenance))
			assert.InDelta(t, 1, count, 0)
		})
	}
}

func TestRecordPhotometry(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPhotometry(2*time.Millisecond, 7.5, true)
	m.RecordPhotometry(time.Millisecond, 0, false)

	assert.Equal(t, uint64(2), histogramOf(t, m.PhotometryDuration).GetSampleCount())

	// only the finite SNR is observed
	snr := histogramOf(t, m.SNRHistogram)
	assert.Equal(t, uint64(1), snr.GetSampleCount())
	assert.InDelta(t, 7.5, snr.GetSampleSum(), 1e-12)
}

func histogramOf(t *testing.T, h prometheus.Histogram) *dto.Histogram {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	var pb dto.Metric
	require.NoError(t, (<-ch).Write(&pb))
	return pb.GetHistogram()
}

func TestOverrideCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordOverrideApplied("persisted", "accept")
	m.RecordOverrideApplied("submitted", "reject")
	m.RecordOverrideApplied("submitted", "reject")
	m.RecordOverridesPersisted("reject", 3)
	m.RecordOverrideWarning("malformed")
	m.RecordConflicts(2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.OverridesApplied.WithLabelValues("persisted", "accept")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.OverridesApplied.WithLabelValues("submitted", "reject")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.OverridesPersisted.WithLabelValues("reject")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OverrideWarnings.WithLabelValues("malformed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ConflictsTotal), 0)
}

func TestRecordRunComplete(t *testing.T) {
	m := newTestMetrics(t)

	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	m.RecordRunComplete(at, 6)
	m.RecordStage(StagePhotometry, 150*time.Millisecond)

	assert.InDelta(t, float64(at.Unix()), testutil.ToFloat64(m.LastRunTimestamp), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(m.Threshold), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewRejectionMetrics(registry)
	require.NoError(t, err)
	_, err = NewRejectionMetrics(registry)
	assert.Error(t, err)
}
