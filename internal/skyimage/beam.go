package skyimage

import (
	"fmt"
	"math"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/wcs"
)

// Beam is the restoring beam of an image. Axes are FWHM in degrees,
// PA in degrees as written in the BPA keyword.
type Beam struct {
	Major float64
	Minor float64
	PA    float64
}

// gaussianBeamFactor is pi / (4 ln 2), the solid angle of a unit-FWHM Gaussian.
var gaussianBeamFactor = math.Pi / (4 * math.Ln2)

// BeamFromHeader reads BMAJ, BMIN and BPA. Missing or non-positive axes give ErrMissingBeamInfo.
func BeamFromHeader(h wcs.Header) (*Beam, error) {
	bmaj, okMaj := h.Float("BMAJ")
	bmin, okMin := h.Float("BMIN")
	if !okMaj || !okMin {
		return nil, missingBeam("BMAJ/BMIN keywords absent")
	}
	b := &Beam{Major: bmaj, Minor: bmin}
	b.PA, _ = h.Float("BPA")
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Beam) validate() error {
	if b == nil {
		return missingBeam("image has no beam")
	}
	if !(b.Major > 0) || !(b.Minor > 0) || math.IsInf(b.Major, 0) || math.IsInf(b.Minor, 0) {
		return missingBeam(fmt.Sprintf("beam axes %g x %g are not positive", b.Major, b.Minor))
	}
	return nil
}

// SolidAngle returns the beam solid angle in steradians.
func (b Beam) SolidAngle() float64 {
	deg2rad := math.Pi / 180
	return gaussianBeamFactor * (b.Major * deg2rad) * (b.Minor * deg2rad)
}

// PixelsPerBeam returns the beam area measured in pixels of the given scale (degrees/pixel).
func PixelsPerBeam(b *Beam, pixelScale float64) (float64, error) {
	if err := b.validate(); err != nil {
		return 0, err
	}
	if !(pixelScale > 0) {
		return 0, errors.New(fmt.Errorf("%w: pixel scale %g", errors.ErrInvalidTransform, pixelScale)).
			Component("skyimage").
			Build()
	}
	pixRad := pixelScale * math.Pi / 180
	return b.SolidAngle() / (pixRad * pixRad), nil
}

func missingBeam(reason string) error {
	return errors.New(fmt.Errorf("%w: %s", errors.ErrMissingBeamInfo, reason)).
		Component("skyimage").
		Category(errors.CategoryBeam).
		Build()
}
