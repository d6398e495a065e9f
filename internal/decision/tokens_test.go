package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/overrides"
)

func TestParseTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []Token
		wantBad int
	}{
		{"empty", "", nil, 0},
		{"blank", "   ", nil, 0},
		{"single reject", "r42", []Token{{overrides.KindReject, 42}}, 0},
		{"mixed with spaces", " a12 , r7", []Token{{overrides.KindAccept, 12}, {overrides.KindReject, 7}}, 0},
		{"upper case", "A3,R4", []Token{{overrides.KindAccept, 3}, {overrides.KindReject, 4}}, 0},
		{"large id is not truncated", "r1234", []Token{{overrides.KindReject, 1234}}, 0},
		{"trailing comma", "a1,", []Token{{overrides.KindAccept, 1}}, 0},
		{"bad prefix", "x5", nil, 1},
		{"missing id", "r", nil, 1},
		{"negative id", "r-3", nil, 1},
		{"non numeric", "a1b, r2", []Token{{overrides.KindReject, 2}}, 1},
		{"all bad", "foo,bar", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, errs := ParseTokens(tt.input)
			assert.Equal(t, tt.want, got)
			require.Len(t, errs, tt.wantBad)
			for _, err := range errs {
				assert.ErrorIs(t, err, errors.ErrMalformedOverrideToken)
				assert.True(t, errors.IsCategory(err, errors.CategoryOverride))
			}
		})
	}
}

func TestTokenString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "r42", Token{Kind: overrides.KindReject, ID: 42}.String())
	assert.Equal(t, "a0", Token{Kind: overrides.KindAccept, ID: 0}.String())
}
