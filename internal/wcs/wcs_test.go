package wcs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sourcefilter/internal/errors"
)

const arcsec = 1.0 / 3600

func baseHeader(proj string) Header {
	return Header{
		"NAXIS":  2,
		"CTYPE1": "RA---" + proj,
		"CTYPE2": "DEC--" + proj,
		"CRPIX1": 51.0,
		"CRPIX2": 51.0,
		"CRVAL1": 150.0,
		"CRVAL2": 2.0,
		"CDELT1": -arcsec,
		"CDELT2": arcsec,
	}
}

func TestReferencePixelMapsToReferenceValue(t *testing.T) {
	t.Parallel()

	for _, proj := range []string{"TAN", "SIN", "ARC"} {
		t.Run(proj, func(t *testing.T) {
			t.Parallel()
			tr, err := FromHeader(baseHeader(proj))
			require.NoError(t, err)

			x, y, err := tr.SkyToPixel(150, 2)
			require.NoError(t, err)
			assert.InDelta(t, 50.0, x, 1e-9)
			assert.InDelta(t, 50.0, y, 1e-9)

			lon, lat, err := tr.PixelToSky(50, 50)
			require.NoError(t, err)
			assert.InDelta(t, 150.0, lon, 1e-9)
			assert.InDelta(t, 2.0, lat, 1e-9)
		})
	}
}

func TestOrientation(t *testing.T) {
	t.Parallel()

	tr, err := FromHeader(baseHeader("TAN"))
	require.NoError(t, err)

	// north is +y
	x, y, err := tr.SkyToPixel(150, 2+10*arcsec)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, x, 1e-6)
	assert.InDelta(t, 60.0, y, 1e-6)

	// east (increasing RA) is -x for negative CDELT1
	x, y, err = tr.SkyToPixel(150+10*arcsec/math.Cos(2*math.Pi/180), 2)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, x, 1e-3)
	assert.InDelta(t, 50.0, y, 1e-3)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, proj := range []string{"TAN", "SIN", "ARC"} {
		t.Run(proj, func(t *testing.T) {
			t.Parallel()
			h := baseHeader(proj)
			h["CROTA2"] = 30.0
			tr, err := FromHeader(h)
			require.NoError(t, err)

			for _, p := range [][2]float64{{0, 0}, {99, 0}, {12.5, 77.25}, {99, 99}} {
				lon, lat, err := tr.PixelToSky(p[0], p[1])
				require.NoError(t, err)
				x, y, err := tr.SkyToPixel(lon, lat)
				require.NoError(t, err)
				assert.InDelta(t, p[0], x, 1e-7)
				assert.InDelta(t, p[1], y, 1e-7)
			}
		})
	}
}

func TestPixelScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(Header)
		want   float64
	}{
		{"cdelt", func(Header) {}, arcsec},
		{"rotated crota", func(h Header) { h["CROTA2"] = 45.0 }, arcsec},
		{"pc matrix", func(h Header) {
			h["PC1_1"] = math.Cos(0.3)
			h["PC1_2"] = -math.Sin(0.3)
			h["PC2_1"] = math.Sin(0.3)
			h["PC2_2"] = math.Cos(0.3)
		}, arcsec},
		{"rectangular pixels", func(h Header) { h["CDELT2"] = 4 * arcsec }, 2 * arcsec},
		{"cd matrix wins", func(h Header) {
			h["CD1_1"] = -2 * arcsec
			h["CD2_2"] = 2 * arcsec
		}, 2 * arcsec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := baseHeader("SIN")
			tt.mutate(h)
			tr, err := FromHeader(h)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, tr.PixelScale(), 1e-15)
			assert.InDelta(t, 10.0, tr.AngleToPixels(10*tt.want), 1e-9)
		})
	}
}

func TestSpectralAndStokesAxesIgnored(t *testing.T) {
	t.Parallel()

	h := baseHeader("SIN")
	h["NAXIS"] = 4
	h["CTYPE3"] = "FREQ"
	h["CRVAL3"] = 2.3e11
	h["CDELT3"] = 1e9
	h["CTYPE4"] = "STOKES"

	tr, err := FromHeader(h)
	require.NoError(t, err)
	assert.InDelta(t, arcsec, tr.PixelScale(), 1e-15)
	assert.Equal(t, "RA", tr.Frame())
}

func TestSwappedAxes(t *testing.T) {
	t.Parallel()

	h := Header{
		"CTYPE1": "DEC--TAN",
		"CTYPE2": "RA---TAN",
		"CRPIX1": 1.0,
		"CRPIX2": 1.0,
		"CRVAL1": 10.0,
		"CRVAL2": 20.0,
		"CDELT1": arcsec,
		"CDELT2": -arcsec,
	}
	tr, err := FromHeader(h)
	require.NoError(t, err)

	x, y, err := tr.SkyToPixel(20, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)

	// north moves along image axis 1 now
	x, y, err = tr.SkyToPixel(20, 10+5*arcsec)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, x, 1e-6)
	assert.InDelta(t, 0.0, y, 1e-6)
}

func TestNonEquatorialFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lon, lat string
	}{
		{"galactic", "GLON-TAN", "GLAT-TAN"},
		{"ecliptic", "ELON-SIN", "ELAT-SIN"},
		{"mixed equatorial and galactic", "RA---TAN", "GLAT-TAN"},
		{"mixed galactic and equatorial", "GLON-TAN", "DEC--TAN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := baseHeader("TAN")
			h["CTYPE1"] = tt.lon
			h["CTYPE2"] = tt.lat
			_, err := FromHeader(h)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidTransform)
		})
	}
}

func TestReferencePositionAtFinePixelScales(t *testing.T) {
	t.Parallel()

	for _, proj := range []Projection{ProjectionTAN, ProjectionSIN, ProjectionARC} {
		for _, scale := range []float64{1e-4, 1e-5, 1e-6} {
			tr, err := New(Params{
				CRPix:      [2]float64{100, 100},
				CRVal:      [2]float64{266.41683, -29.00781},
				CD:         [2][2]float64{{-scale, 0}, {0, scale}},
				Projection: proj,
			})
			require.NoError(t, err)

			x, y, err := tr.SkyToPixel(266.41683, -29.00781)
			require.NoError(t, err)
			assert.InDelta(t, 100.0, x, 1e-9, "%s at %g deg/px", proj, scale)
			assert.InDelta(t, 100.0, y, 1e-9, "%s at %g deg/px", proj, scale)

			// one pixel north stays one pixel north
			_, y, err = tr.SkyToPixel(266.41683, -29.00781+scale)
			require.NoError(t, err)
			assert.InDelta(t, 101.0, y, 1e-6, "%s at %g deg/px", proj, scale)
		}
	}
}

func TestInvalidTransform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(Header)
	}{
		{"single celestial axis", func(h Header) { h["CTYPE2"] = "FREQ" }},
		{"no ctype", func(h Header) { delete(h, "CTYPE1"); delete(h, "CTYPE2") }},
		{"singular matrix", func(h Header) { h["CDELT2"] = 0.0 }},
		{"unsupported projection", func(h Header) {
			h["CTYPE1"] = "RA---MOL"
			h["CTYPE2"] = "DEC--MOL"
		}},
		{"celestial axes off the image plane", func(h Header) {
			h["NAXIS"] = 3
			h["CTYPE2"] = "FREQ"
			h["CTYPE3"] = "DEC--TAN"
		}},
		{"missing cdelt", func(h Header) { delete(h, "CDELT1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := baseHeader("TAN")
			tt.mutate(h)
			_, err := FromHeader(h)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidTransform)
			assert.True(t, errors.IsCategory(err, errors.CategoryTransform))
		})
	}
}

func TestProjectionLimits(t *testing.T) {
	t.Parallel()

	tr, err := New(Params{
		CRPix:      [2]float64{0, 0},
		CRVal:      [2]float64{0, 0},
		CD:         [2][2]float64{{-1, 0}, {0, 1}},
		Projection: ProjectionSIN,
	})
	require.NoError(t, err)

	// 1 degree per pixel: 58 pixels exceeds the 57.3 degree SIN disk radius
	_, _, err = tr.PixelToSky(58, 0)
	require.ErrorIs(t, err, errors.ErrInvalidTransform)

	// antipode cannot be projected
	_, _, err = tr.SkyToPixel(180, 0)
	require.ErrorIs(t, err, errors.ErrInvalidTransform)
}

func TestSplitCType(t *testing.T) {
	t.Parallel()

	p, c := splitCType("RA---SIN")
	assert.Equal(t, "RA", p)
	assert.Equal(t, "SIN", c)

	p, c = splitCType("GLAT-ARC")
	assert.Equal(t, "GLAT", p)
	assert.Equal(t, "ARC", c)

	p, c = splitCType("FREQ")
	assert.Equal(t, "FREQ", p)
	assert.Empty(t, c)
}
