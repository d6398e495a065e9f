// Package wcs converts between sky coordinates and image pixels for the
// zenithal projections used by radio and sub-mm maps (TAN, SIN, ARC).
//
// Pixel coordinates are 0-based with the centre of the first pixel at (0, 0);
// FITS reference pixels (1-based) are shifted on construction.
package wcs

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/sourcefilter/internal/errors"
)

// Projection is a FITS projection code.
type Projection string

const (
	ProjectionTAN Projection = "TAN" // gnomonic
	ProjectionSIN Projection = "SIN" // orthographic, interferometric maps
	ProjectionARC Projection = "ARC" // zenithal equidistant
)

const rad2deg = 180 / math.Pi

// celestialPairs lists longitude/latitude CTYPE prefixes that form a celestial
// frame. Only the equatorial pair can be used: catalog positions are ICRS.
var celestialPairs = [][2]string{
	{"RA", "DEC"},
	{"GLON", "GLAT"},
	{"ELON", "ELAT"},
}

// Params describes a celestial transform directly, without a FITS header.
type Params struct {
	CRPix      [2]float64    // reference pixel, 0-based (x, y)
	CRVal      [2]float64    // reference sky position (lon, lat), degrees
	CD         [2][2]float64 // rows (lon, lat), columns (x, y), degrees per pixel
	Projection Projection
	LonPole    *float64 // native longitude of the celestial pole, nil for the default
}

// Transform is an immutable pixel to sky mapping for the celestial axes of an image.
type Transform struct {
	crpix      [2]float64
	alphaP     float64 // radians
	deltaP     float64 // radians
	phiP       float64 // radians
	cd         *mat.Dense
	cdInv      *mat.Dense
	proj       Projection
	pixelScale float64
	lonType    string
}

// New builds a transform from explicit parameters.
func New(p Params) (*Transform, error) {
	switch p.Projection {
	case ProjectionTAN, ProjectionSIN, ProjectionARC:
	default:
		return nil, invalid(fmt.Sprintf("unsupported projection %q", p.Projection))
	}

	cd := mat.NewDense(2, 2, []float64{p.CD[0][0], p.CD[0][1], p.CD[1][0], p.CD[1][1]})
	det := mat.Det(cd)
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return nil, invalid("linear transform matrix is singular")
	}
	var inv mat.Dense
	if err := inv.Inverse(cd); err != nil {
		return nil, invalid(fmt.Sprintf("linear transform matrix is not invertible: %v", err))
	}

	if p.CRVal[1] < -90 || p.CRVal[1] > 90 {
		return nil, invalid(fmt.Sprintf("reference latitude %g out of range", p.CRVal[1]))
	}

	// Zenithal projections have theta0 = 90, so the default LONPOLE is 180
	// unless the reference point sits on the pole.
	lonPole := 180.0
	if p.CRVal[1] >= 90 {
		lonPole = 0
	}
	if p.LonPole != nil {
		lonPole = *p.LonPole
	}

	return &Transform{
		crpix:      p.CRPix,
		alphaP:     p.CRVal[0] / rad2deg,
		deltaP:     p.CRVal[1] / rad2deg,
		phiP:       lonPole / rad2deg,
		cd:         cd,
		cdInv:      &inv,
		proj:       p.Projection,
		pixelScale: math.Sqrt(math.Abs(det)),
	}, nil
}

// FromHeader builds the celestial transform of an image from its header.
// Non-celestial axes such as FREQ or STOKES are ignored; the celestial axes must
// be the first two image axes.
func FromHeader(h Header) (*Transform, error) {
	naxis := 2
	if n, ok := h.Float("NAXIS"); ok && n > 2 {
		naxis = int(n)
	} else if !ok {
		// WCSAXES takes precedence when NAXIS was squeezed away
		if n, ok := h.Float("WCSAXES"); ok && n > 2 {
			naxis = int(n)
		}
	}

	lonAxis, latAxis, lonType, code, err := findCelestialAxes(h, naxis)
	if err != nil {
		return nil, err
	}
	if !((lonAxis == 1 && latAxis == 2) || (lonAxis == 2 && latAxis == 1)) {
		return nil, invalid(fmt.Sprintf("celestial axes %d and %d are not the image plane", lonAxis, latAxis))
	}

	linear, err := linearMatrix(h)
	if err != nil {
		return nil, err
	}

	// Reorder world rows to (lon, lat).
	p := Params{Projection: Projection(code)}
	p.CD[0] = linear[lonAxis-1]
	p.CD[1] = linear[latAxis-1]

	for i := range 2 {
		crpix, _ := h.Float(axisKey("CRPIX", i+1))
		p.CRPix[i] = crpix - 1
	}
	p.CRVal[0], _ = h.Float(axisKey("CRVAL", lonAxis))
	p.CRVal[1], _ = h.Float(axisKey("CRVAL", latAxis))

	if lp, ok := h.Float("LONPOLE"); ok {
		p.LonPole = &lp
	}

	t, err := New(p)
	if err != nil {
		return nil, err
	}
	t.lonType = lonType
	return t, nil
}

// findCelestialAxes returns the 1-based axis numbers of the longitude and
// latitude axes with the longitude prefix and projection code. Both axes must
// come from the same frame and that frame must be equatorial.
func findCelestialAxes(h Header, naxis int) (lonAxis, latAxis int, lonType, code string, err error) {
	lonPair, latPair := -1, -1
	for axis := 1; axis <= naxis; axis++ {
		ctype, ok := h.String(axisKey("CTYPE", axis))
		if !ok {
			continue
		}
		prefix, proj := splitCType(ctype)
		for i, pair := range celestialPairs {
			switch prefix {
			case pair[0]:
				lonAxis, lonType, code, lonPair = axis, prefix, proj, i
			case pair[1]:
				latAxis, latPair = axis, i
			}
		}
	}

	if lonAxis == 0 || latAxis == 0 {
		return 0, 0, "", "", invalid("fewer than two celestial axes")
	}
	if lonPair != latPair {
		return 0, 0, "", "", invalid(fmt.Sprintf("celestial axes %s and %s belong to different frames",
			celestialPairs[lonPair][0], celestialPairs[latPair][1]))
	}
	if lonPair != 0 {
		return 0, 0, "", "", invalid(fmt.Sprintf("%s/%s images are not supported, catalog positions are equatorial",
			celestialPairs[lonPair][0], celestialPairs[lonPair][1]))
	}
	return lonAxis, latAxis, lonType, code, nil
}

// splitCType splits "RA---SIN" into ("RA", "SIN").
func splitCType(ctype string) (prefix, code string) {
	ctype = strings.ToUpper(strings.TrimSpace(ctype))
	if len(ctype) < 5 {
		return strings.TrimRight(ctype, "-"), ""
	}
	prefix = strings.TrimRight(ctype[:4], "-")
	code = strings.Trim(ctype[4:], "- ")
	return prefix, code
}

// linearMatrix returns the 2x2 pixel to intermediate world matrix for image axes
// 1 and 2, rows indexed by world axis. Precedence: CDi_j, then CDELTi x PCi_j,
// then CDELTi with CROTA2.
func linearMatrix(h Header) ([2][2]float64, error) {
	var m [2][2]float64

	hasCD := false
	for i := 1; i <= 2; i++ {
		for j := 1; j <= 2; j++ {
			if v, ok := h.Float(matrixKey("CD", i, j)); ok {
				m[i-1][j-1] = v
				hasCD = true
			}
		}
	}
	if hasCD {
		return m, nil
	}

	var cdelt [2]float64
	for i := range 2 {
		v, ok := h.Float(axisKey("CDELT", i+1))
		if !ok {
			return m, invalid(fmt.Sprintf("missing %s and CD matrix", axisKey("CDELT", i+1)))
		}
		cdelt[i] = v
	}

	hasPC := false
	pc := [2][2]float64{{1, 0}, {0, 1}}
	for i := 1; i <= 2; i++ {
		for j := 1; j <= 2; j++ {
			if v, ok := h.Float(matrixKey("PC", i, j)); ok {
				pc[i-1][j-1] = v
				hasPC = true
			}
		}
	}

	if !hasPC {
		if crota, ok := h.Float("CROTA2"); ok && crota != 0 {
			rho := crota / rad2deg
			s, c := math.Sincos(rho)
			m[0][0] = cdelt[0] * c
			m[0][1] = -cdelt[1] * s
			m[1][0] = cdelt[0] * s
			m[1][1] = cdelt[1] * c
			return m, nil
		}
	}

	for i := range 2 {
		for j := range 2 {
			m[i][j] = cdelt[i] * pc[i][j]
		}
	}
	return m, nil
}

func invalid(reason string) error {
	return errors.New(fmt.Errorf("%w: %s", errors.ErrInvalidTransform, reason)).
		Component("wcs").
		Category(errors.CategoryTransform).
		Build()
}

// PixelScale returns the isotropic pixel scale in degrees per pixel,
// sqrt(|det CD|).
func (t *Transform) PixelScale() float64 {
	return t.pixelScale
}

// AngleToPixels converts an angular size in degrees to pixels.
func (t *Transform) AngleToPixels(deg float64) float64 {
	return deg / t.pixelScale
}

// Projection returns the projection code.
func (t *Transform) Projection() Projection {
	return t.proj
}

// Frame returns the longitude CTYPE prefix, empty for Params-built transforms.
func (t *Transform) Frame() string {
	return t.lonType
}

// SkyToPixel converts a sky position in degrees to a fractional 0-based pixel position.
func (t *Transform) SkyToPixel(lon, lat float64) (x, y float64, err error) {
	alpha := lon / rad2deg
	delta := lat / rad2deg

	sinD, cosD := math.Sincos(delta)
	sinDp, cosDp := math.Sincos(t.deltaP)
	sinDA, cosDA := math.Sincos(alpha - t.alphaP)

	// theta from atan2 keeps full precision near the native pole, where the
	// sine of theta is close to 1.
	nx := -cosD * sinDA
	ny := sinD*cosDp - cosD*sinDp*cosDA
	phi := t.phiP + math.Atan2(nx, ny)
	sinT := sinD*sinDp + cosD*cosDp*cosDA
	cosT := math.Hypot(nx, ny)

	r, err := t.radius(sinT, cosT)
	if err != nil {
		return 0, 0, err
	}

	sinPhi, cosPhi := math.Sincos(phi)
	ix := r * sinPhi
	iy := -r * cosPhi

	var pix mat.VecDense
	pix.MulVec(t.cdInv, mat.NewVecDense(2, []float64{ix, iy}))
	return t.crpix[0] + pix.AtVec(0), t.crpix[1] + pix.AtVec(1), nil
}

// PixelToSky converts a 0-based pixel position to sky coordinates in degrees,
// longitude normalized to [0, 360).
func (t *Transform) PixelToSky(x, y float64) (lon, lat float64, err error) {
	var w mat.VecDense
	w.MulVec(t.cd, mat.NewVecDense(2, []float64{x - t.crpix[0], y - t.crpix[1]}))
	ix, iy := w.AtVec(0), w.AtVec(1)

	r := math.Hypot(ix, iy)
	phi := 0.0
	if r != 0 {
		phi = math.Atan2(ix, -iy)
	}

	theta, err := t.theta(r)
	if err != nil {
		return 0, 0, err
	}

	sinT, cosT := math.Sincos(theta)
	sinDp, cosDp := math.Sincos(t.deltaP)
	sinDP, cosDP := math.Sincos(phi - t.phiP)

	nx := -cosT * sinDP
	ny := sinT*cosDp - cosT*sinDp*cosDP
	alpha := t.alphaP + math.Atan2(nx, ny)
	delta := math.Atan2(sinT*sinDp+cosT*cosDp*cosDP, math.Hypot(nx, ny))

	lon = math.Mod(alpha*rad2deg, 360)
	if lon < 0 {
		lon += 360
	}
	return lon, delta * rad2deg, nil
}

// radius returns the projected radius R_theta in degrees for the native
// latitude given by its sine and cosine.
func (t *Transform) radius(sinT, cosT float64) (float64, error) {
	switch t.proj {
	case ProjectionTAN:
		if sinT <= 0 {
			return 0, invalid("position is not projectable in TAN")
		}
		return rad2deg * cosT / sinT, nil
	case ProjectionSIN:
		if sinT < 0 {
			return 0, invalid("position lies on the far hemisphere in SIN")
		}
		return rad2deg * cosT, nil
	default:
		return rad2deg * math.Atan2(cosT, sinT), nil
	}
}

// theta inverts radius.
func (t *Transform) theta(r float64) (float64, error) {
	switch t.proj {
	case ProjectionTAN:
		if r == 0 {
			return math.Pi / 2, nil
		}
		return math.Atan(rad2deg / r), nil
	case ProjectionSIN:
		s := r / rad2deg
		if s > 1 {
			return 0, invalid("pixel lies outside the SIN disk")
		}
		return math.Acos(s), nil
	default:
		return (90 - r) / rad2deg, nil
	}
}
