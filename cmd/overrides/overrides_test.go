package overrides

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/conf"
	"github.com/tphakala/sourcefilter/internal/errors"
)

const outputID = "region3_band6_val0.001_delt0.0005_pix20"

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	settings := &conf.Settings{}
	settings.Overrides = conf.OverrideSettings{Backend: conf.BackendFile, Dir: ".override", SkipMalformed: true}

	cmd := Command(settings, fs)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAddThenList(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, "add", outputID, "r319, a605", "r7")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 3 overrides")

	data, err := afero.ReadFile(fs, ".override/reject_"+outputID+".txt")
	require.NoError(t, err)
	assert.Equal(t, "319\n7\n", string(data))

	out, err = execute(t, fs, "list", "cat/cat_"+outputID+".dat")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted: 605")
	assert.Contains(t, out, "rejected: 7 319")
	assert.NotContains(t, out, "conflicting")
}

func TestListShowsConflicts(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := execute(t, fs, "add", outputID, "a12, r12")
	require.NoError(t, err)

	out, err := execute(t, fs, "list", outputID)
	require.NoError(t, err)
	assert.Contains(t, out, "conflicting: 12")
}

func TestAddRejectsMalformedTokens(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := execute(t, fs, "add", outputID, "r12, x9")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedOverrideToken)

	exists, err := afero.Exists(fs, ".override/reject_"+outputID+".txt")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is written when any token is malformed")
}

func TestResolveOutputID(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    string
		wantErr bool
	}{
		{"bare id", outputID, outputID, false},
		{"catalog path", "cat/cat_" + outputID + ".dat", outputID, false},
		{"catalog file name", "cat_" + outputID + ".dat", outputID, false},
		{"garbage", "not-an-id", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOutputID(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
