package decision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/overrides"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(nil, logger.LogLevelDebug)
}

func newTestEngine(t *testing.T, threshold float64, persisted overrides.Set, ids ...int) *Engine {
	t.Helper()
	e, err := NewEngine(threshold, persisted, ids, testLogger())
	require.NoError(t, err)
	return e
}

func TestThresholdRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		snr      float64
		rejected bool
	}{
		{"well above", 10, false},
		{"just above", 6.0001, false},
		{"equal rejects", 6, true},
		{"below", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, 6, overrides.NewSet(), 0)
			require.NoError(t, e.Score(0, tt.snr))
			verdicts, err := e.Finalize()
			require.NoError(t, err)
			require.Len(t, verdicts, 1)
			assert.Equal(t, tt.rejected, verdicts[0].Rejected)
			assert.Equal(t, ProvenanceThreshold, verdicts[0].Provenance)
			assert.Equal(t, StateFinalized, verdicts[0].State)
		})
	}
}

func TestScenarioAcceptedAboveThreshold(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 6, overrides.NewSet(), 0)
	require.NoError(t, e.Score(0, 10))
	n, err := e.ApplyPersisted()
	require.NoError(t, err)
	assert.Zero(t, n)

	verdicts, err := e.Finalize()
	require.NoError(t, err)
	assert.False(t, verdicts[0].Rejected)
}

func TestScenarioPersistedAcceptRescuesFaintSource(t *testing.T) {
	t.Parallel()

	persisted := overrides.NewSet()
	persisted.Add(overrides.KindAccept, 0)

	e := newTestEngine(t, 6, persisted, 0)
	require.NoError(t, e.Score(0, 3))
	n, err := e.ApplyPersisted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	verdicts, err := e.Finalize()
	require.NoError(t, err)
	assert.False(t, verdicts[0].Rejected)
	assert.Equal(t, ProvenanceOverrideAccept, verdicts[0].Provenance)
}

func TestScenarioNewRejectTokenOverridesThreshold(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 6, overrides.NewSet(), 40, 41, 42)
	for row, snr := range []float64{9, 2, 8} {
		require.NoError(t, e.Score(row, snr))
	}
	_, err := e.ApplyPersisted()
	require.NoError(t, err)

	tokens, errs := ParseTokens("r42")
	require.Empty(t, errs)
	res, err := e.Apply(tokens)
	require.NoError(t, err)
	assert.Equal(t, []Token{{overrides.KindReject, 42}}, res.Applied)
	assert.Empty(t, res.Unknown)
	assert.Empty(t, res.Reversed)

	verdicts, err := e.Finalize()
	require.NoError(t, err)
	assert.False(t, verdicts[0].Rejected)
	assert.True(t, verdicts[1].Rejected)
	assert.True(t, verdicts[2].Rejected)
	assert.Equal(t, ProvenanceOverrideReject, verdicts[2].Provenance)
	assert.Equal(t, 42, verdicts[2].ID)
}

func TestOverridePrecedence(t *testing.T) {
	t.Parallel()

	t.Run("persisted reject beats threshold", func(t *testing.T) {
		t.Parallel()
		persisted := overrides.NewSet()
		persisted.Add(overrides.KindReject, 5)
		e := newTestEngine(t, 6, persisted, 5)
		require.NoError(t, e.Score(0, 50))
		_, err := e.ApplyPersisted()
		require.NoError(t, err)
		v := e.Verdicts()[0]
		assert.True(t, v.Rejected)
		assert.Equal(t, ProvenanceOverrideReject, v.Provenance)
	})

	t.Run("new accept beats persisted reject", func(t *testing.T) {
		t.Parallel()
		persisted := overrides.NewSet()
		persisted.Add(overrides.KindReject, 5)
		e := newTestEngine(t, 6, persisted, 5)
		require.NoError(t, e.Score(0, 1))
		_, err := e.ApplyPersisted()
		require.NoError(t, err)

		res, err := e.Apply([]Token{{overrides.KindAccept, 5}})
		require.NoError(t, err)
		assert.Equal(t, []Token{{overrides.KindAccept, 5}}, res.Reversed)
		assert.False(t, e.Verdicts()[0].Rejected)
	})

	t.Run("conflicting persisted ids reject and are surfaced", func(t *testing.T) {
		t.Parallel()
		persisted := overrides.NewSet()
		persisted.Add(overrides.KindAccept, 7)
		persisted.Add(overrides.KindReject, 7)
		persisted.Add(overrides.KindReject, 99) // not in catalog
		persisted.Add(overrides.KindAccept, 99)
		e := newTestEngine(t, 6, persisted, 7)
		require.NoError(t, e.Score(0, 20))

		conflicts := e.Conflicts()
		require.Len(t, conflicts, 1)
		assert.ErrorIs(t, conflicts[0], errors.ErrConflictingOverride)
		assert.True(t, errors.IsCategory(conflicts[0], errors.CategoryConflict))

		_, err := e.ApplyPersisted()
		require.NoError(t, err)
		assert.True(t, e.Verdicts()[0].Rejected)
	})

	t.Run("last duplicate token wins", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 3)
		require.NoError(t, e.Score(0, 1))
		res, err := e.Apply([]Token{{overrides.KindReject, 3}, {overrides.KindAccept, 3}})
		require.NoError(t, err)
		assert.Equal(t, []Token{{overrides.KindAccept, 3}}, res.Applied)
		assert.False(t, e.Verdicts()[0].Rejected)
	})

	t.Run("unknown ids are skipped", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 3)
		require.NoError(t, e.Score(0, 10))
		res, err := e.Apply([]Token{{overrides.KindReject, 1234}})
		require.NoError(t, err)
		assert.Empty(t, res.Applied)
		assert.Equal(t, []Token{{overrides.KindReject, 1234}}, res.Unknown)
		assert.False(t, e.Verdicts()[0].Rejected)
	})
}

func TestUnevaluable(t *testing.T) {
	t.Parallel()

	t.Run("rejected by default", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 1, 2)
		require.NoError(t, e.Score(0, 10))
		require.NoError(t, e.MarkUnevaluable(1, errors.ErrEmptyAperture))

		verdicts, err := e.Finalize()
		require.NoError(t, err)
		v := verdicts[1]
		assert.True(t, v.Unevaluable())
		assert.True(t, v.Rejected)
		assert.True(t, math.IsNaN(v.SNR))
		assert.Equal(t, ProvenanceUnevaluable, v.Provenance)
		assert.False(t, verdicts[0].Rejected)
	})

	t.Run("accept override keeps source", func(t *testing.T) {
		t.Parallel()
		persisted := overrides.NewSet()
		persisted.Add(overrides.KindAccept, 2)
		e := newTestEngine(t, 6, persisted, 2)
		require.NoError(t, e.MarkUnevaluable(0, errors.ErrEmptyAperture))
		_, err := e.ApplyPersisted()
		require.NoError(t, err)

		v := e.Verdicts()[0]
		assert.False(t, v.Rejected)
		assert.True(t, v.Unevaluable())
	})
}

func TestLifecycleErrors(t *testing.T) {
	t.Parallel()

	t.Run("duplicate ids", func(t *testing.T) {
		t.Parallel()
		_, err := NewEngine(6, overrides.NewSet(), []int{1, 2, 1}, testLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrCatalogSchemaMismatch)
	})

	t.Run("score twice", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 1)
		require.NoError(t, e.Score(0, 1))
		require.Error(t, e.Score(0, 2))
	})

	t.Run("row out of range", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 1)
		require.Error(t, e.Score(3, 1))
	})

	t.Run("finalize with unscored rows", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 1, 2)
		require.NoError(t, e.Score(0, 1))
		_, err := e.Finalize()
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryState))
	})

	t.Run("finalize twice", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, 6, overrides.NewSet(), 1)
		require.NoError(t, e.Score(0, 1))
		_, err := e.Finalize()
		require.NoError(t, err)
		_, err = e.Finalize()
		require.Error(t, err)
		_, err = e.Apply([]Token{{overrides.KindAccept, 1}})
		require.Error(t, err)
	})
}

func TestDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	persisted := overrides.NewSet()
	persisted.Add(overrides.KindAccept, 11)
	persisted.Add(overrides.KindReject, 12)
	snrs := []float64{2, 9, 7, 1}
	ids := []int{10, 11, 12, 13}

	run := func() []Verdict {
		e := newTestEngine(t, 6, persisted, ids...)
		for row, snr := range snrs {
			require.NoError(t, e.Score(row, snr))
		}
		_, err := e.ApplyPersisted()
		require.NoError(t, err)
		v, err := e.Finalize()
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, run(), run())
}
