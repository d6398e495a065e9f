package photometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/aperture"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/skyimage"
)

func maskOf(t *testing.T, w, h int, bits ...bool) aperture.Mask {
	t.Helper()
	m, err := aperture.MaskFromSlice(w, h, bits)
	require.NoError(t, err)
	return m
}

func TestBackgroundRMS(t *testing.T) {
	t.Parallel()

	values := []float64{3, -4, 100, 0}
	rms, n, err := BackgroundRMS(values, maskOf(t, 2, 2, true, true, false, false))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// sqrt((9+16)/2)
	assert.InDelta(t, math.Sqrt(12.5), rms, 1e-12)
}

func TestPeakFlux(t *testing.T) {
	t.Parallel()

	values := []float64{3, -4, 100, 7}
	peak, n, err := PeakFlux(values, maskOf(t, 2, 2, true, true, false, true))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 7.0, peak, 0)

	peak, _, err = PeakFlux([]float64{-3, -1}, maskOf(t, 2, 1, true, true))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, peak, 0)
}

func TestEmptyMaskIsEmptyAperture(t *testing.T) {
	t.Parallel()

	empty := aperture.NewMask(2, 2)
	_, _, err := BackgroundRMS([]float64{1, 2, 3, 4}, empty)
	require.ErrorIs(t, err, errors.ErrEmptyAperture)
	assert.True(t, errors.IsCategory(err, errors.CategoryAperture))

	_, _, err = PeakFlux([]float64{1, 2, 3, 4}, empty)
	require.ErrorIs(t, err, errors.ErrEmptyAperture)
}

func TestMaskShapeMismatchIsNotEmptyAperture(t *testing.T) {
	t.Parallel()

	mask := maskOf(t, 2, 2, true, true, true, true)
	_, _, err := BackgroundRMS([]float64{1, 2, 3}, mask)
	require.ErrorIs(t, err, ErrMaskShape)
	assert.NotErrorIs(t, err, errors.ErrEmptyAperture)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, _, err = PeakFlux([]float64{1, 2, 3, 4, 5}, mask)
	require.ErrorIs(t, err, ErrMaskShape)
	assert.NotErrorIs(t, err, errors.ErrEmptyAperture)
}

// geometry builds a 9x9 cutout with a centre value, a ring of background and
// apertures sized so the ellipse covers the centre 3x3 block.
func geometry(t *testing.T, centre, background float64) *aperture.Geometry {
	t.Helper()
	const size = 9
	values := make([]float64, size*size)
	valid := make([]bool, size*size)
	for i := range values {
		values[i] = background
		valid[i] = true
	}
	values[4*size+4] = centre

	c := aperture.Point{X: 4, Y: 4}
	return &aperture.Geometry{
		Cutout:  skyimage.Cutout{Width: size, Height: size, Values: values, Valid: valid},
		Center:  c,
		Ellipse: aperture.Ellipse{Center: c, SemiMajor: 1.5, SemiMinor: 1.5},
		Inner:   aperture.Circle{Center: c, Radius: 2},
		Outer:   aperture.Circle{Center: c, Radius: 4},
	}
}

func TestMeasure(t *testing.T) {
	t.Parallel()

	g := geometry(t, 10, 1)
	res, err := Measure(g)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.BackgroundRMS, 1e-12)
	assert.InDelta(t, 10.0, res.Peak, 0)
	assert.InDelta(t, 10.0, res.SNR, 1e-12)
	assert.Equal(t, g.AnnulusMask().Count(), res.AnnulusPixels)
	assert.Equal(t, 9, res.EllipsePixels)
}

func TestMeasureZeroBackgroundIsDegenerate(t *testing.T) {
	t.Parallel()

	res, err := Measure(geometry(t, 5, 0))
	require.ErrorIs(t, err, ErrDegenerateAperture)
	require.ErrorIs(t, err, errors.ErrEmptyAperture)
	assert.True(t, math.IsNaN(res.SNR))
}

func TestMeasureEmptyAnnulus(t *testing.T) {
	t.Parallel()

	g := geometry(t, 10, 1)
	g.Inner.Radius = 10
	_, err := Measure(g)
	require.ErrorIs(t, err, errors.ErrEmptyAperture)
	assert.NotErrorIs(t, err, ErrDegenerateAperture)
}

func TestMeasureNegativePeak(t *testing.T) {
	t.Parallel()

	// no clamping: a negative peak gives a negative SNR
	g := geometry(t, -2, -2)
	res, err := Measure(g)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, res.SNR, 1e-12)
}
