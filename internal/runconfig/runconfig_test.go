package runconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/errors"
)

func TestOutputID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rc   RunConfig
		want string
	}{
		{"typical", RunConfig{Region: "1", Band: 3, MinValue: 0.001, MinDelta: 0.0005, MinNpix: 20}, "region1_band3_val0.001_delt0.0005_pix20"},
		{"exponent form", RunConfig{Region: "W51", Band: 6, MinValue: 5e-05, MinDelta: 2e-05, MinNpix: 7}, "regionW51_band6_val5e-05_delt2e-05_pix7"},
		{"integral values", RunConfig{Region: "sgrb2", Band: 7, MinValue: 1, MinDelta: 2, MinNpix: 0}, "regionsgrb2_band7_val1.0_delt2.0_pix0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.rc.OutputID())

			back, err := ParseOutputID(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.rc, back)
		})
	}
}

func TestFromCatalogPath(t *testing.T) {
	t.Parallel()

	rc, err := FromCatalogPath("/data/run/cat_region_a_band3_val0.001_delt0.0005_pix20.dat")
	require.NoError(t, err)
	assert.Equal(t, "_a", rc.Region)
	assert.Equal(t, 3, rc.Band)
	assert.Equal(t, "cat_region_a_band3_val0.001_delt0.0005_pix20.dat", rc.CatalogName())
}

func TestParseOutputIDErrors(t *testing.T) {
	t.Parallel()

	for _, id := range []string{
		"",
		"region1_band3",
		"region1_bandx_val0.001_delt0.0005_pix20",
		"region1_band3_val1e-5_delt0.0005_pix20", // non-canonical exponent
		"region1_band3_valabc_delt0.0005_pix20",
		"region_band3_val0.001_delt0.0005_pix20",
	} {
		_, err := ParseOutputID(id)
		require.Error(t, err, "id %q", id)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "id %q", id)
	}

	_, err := FromCatalogPath("catalog.txt")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, RunConfig{Region: "1", Band: 3}.Validate())
	assert.Error(t, RunConfig{Band: 3}.Validate())
	assert.Error(t, RunConfig{Region: "a/b", Band: 3}.Validate())
	assert.Error(t, RunConfig{Region: "1", Band: -1}.Validate())
	assert.Error(t, RunConfig{Region: "1", MinNpix: -2}.Validate())
}
