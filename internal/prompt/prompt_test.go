package prompt

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/decision"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/overrides"
)

func testSummary() Summary {
	return Summary{
		OutputID:  "region1_band3_val0.001_delt0.0005_pix20",
		Threshold: 6,
		Verdicts: []decision.Verdict{
			{Row: 0, ID: 319, SNR: 9.5, Provenance: decision.ProvenanceThreshold},
			{Row: 1, ID: 605, SNR: 2.1, Rejected: true, Provenance: decision.ProvenanceThreshold},
			{Row: 2, ID: 7, SNR: math.NaN(), Rejected: true, Provenance: decision.ProvenanceUnevaluable, Cause: errors.ErrEmptyAperture},
		},
	}
}

func TestTerminalCollect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []decision.Token
		skipped int
		asked   int
	}{
		{"enter means none", "\n", nil, 0, 1},
		{"end of input means none", "", nil, 0, 1},
		{"tokens", "r319, a605\n", []decision.Token{{Kind: overrides.KindReject, ID: 319}, {Kind: overrides.KindAccept, ID: 605}}, 0, 1},
		{"last line without newline", "a7", []decision.Token{{Kind: overrides.KindAccept, ID: 7}}, 0, 1},
		{"retry after malformed", "x1\nr605\n", []decision.Token{{Kind: overrides.KindReject, ID: 605}}, 0, 2},
		{"gives up and skips", "x1\ny2\nr7, z3\nr1\n", []decision.Token{{Kind: overrides.KindReject, ID: 7}}, 1, 3},
		{"malformed then eof", "x1", nil, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			p := NewTerminal(strings.NewReader(tt.input), &out, 3)

			got, err := p.Collect(context.Background(), testSummary())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Tokens)
			require.Len(t, got.Skipped, tt.skipped)
			for _, e := range got.Skipped {
				assert.ErrorIs(t, e, errors.ErrMalformedOverrideToken)
			}
			assert.Equal(t, tt.asked, strings.Count(out.String(), "press enter to continue"))
		})
	}
}

func TestTerminalSummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := NewTerminal(strings.NewReader("\n"), &out, 0).Collect(context.Background(), testSummary())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "1 accepted, 1 rejected, 1 unevaluable (threshold 6)")
	assert.Contains(t, text, "#319")
	assert.Contains(t, text, "(unevaluable)")
}

func TestTerminalCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTerminal(strings.NewReader("r1\n"), &bytes.Buffer{}, 3).Collect(ctx, testSummary())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScripted(t *testing.T) {
	t.Parallel()

	got, err := Scripted{Text: "r42"}.Collect(context.Background(), Summary{})
	require.NoError(t, err)
	assert.Equal(t, []decision.Token{{Kind: overrides.KindReject, ID: 42}}, got.Tokens)
	assert.Empty(t, got.Skipped)

	// a bad entry is skipped, the good ones survive
	got, err = Scripted{Text: "r42, q1, a7"}.Collect(context.Background(), Summary{})
	require.NoError(t, err)
	assert.Equal(t, []decision.Token{{Kind: overrides.KindReject, ID: 42}, {Kind: overrides.KindAccept, ID: 7}}, got.Tokens)
	require.Len(t, got.Skipped, 1)
	assert.ErrorIs(t, got.Skipped[0], errors.ErrMalformedOverrideToken)

	got, err = None{}.Collect(context.Background(), Summary{})
	require.NoError(t, err)
	assert.Empty(t, got.Tokens)
}
