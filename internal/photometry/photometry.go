// Package photometry measures background RMS, peak flux and SNR over aperture masks.
package photometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/sourcefilter/internal/aperture"
	"github.com/tphakala/sourcefilter/internal/errors"
)

// ErrDegenerateAperture marks a background with zero RMS or a non-finite SNR.
// It wraps ErrEmptyAperture so callers treat both the same way.
var ErrDegenerateAperture = fmt.Errorf("%w: degenerate background", errors.ErrEmptyAperture)

// ErrMaskShape marks a mask that does not cover the value grid. It is a
// caller bug, not an empty aperture.
var ErrMaskShape = errors.NewStd("mask does not match the values")

// Result is the photometry of one source.
type Result struct {
	BackgroundRMS float64
	Peak          float64
	SNR           float64
	AnnulusPixels int
	EllipsePixels int
}

// selected gathers the values at set mask cells.
func selected(values []float64, mask aperture.Mask) ([]float64, error) {
	if mask.Len() != len(values) {
		return nil, errors.New(fmt.Errorf("%w: %d mask cells for %d values", ErrMaskShape, mask.Len(), len(values))).
			Component("photometry").
			Category(errors.CategoryValidation).
			Build()
	}
	out := make([]float64, 0, mask.Count())
	for i := range values {
		if mask.Set(i) {
			out = append(out, values[i])
		}
	}
	return out, nil
}

func emptyAperture(which string) error {
	return errors.New(fmt.Errorf("%w: %s mask selects no pixels", errors.ErrEmptyAperture, which)).
		Component("photometry").
		Category(errors.CategoryAperture).
		Build()
}

// BackgroundRMS returns sqrt(mean(v^2)) over the masked values and the pixel count.
func BackgroundRMS(values []float64, mask aperture.Mask) (float64, int, error) {
	v, err := selected(values, mask)
	if err != nil {
		return 0, 0, err
	}
	if len(v) == 0 {
		return 0, 0, emptyAperture("annulus")
	}
	return math.Sqrt(floats.Dot(v, v) / float64(len(v))), len(v), nil
}

// PeakFlux returns the maximum masked value and the pixel count.
func PeakFlux(values []float64, mask aperture.Mask) (float64, int, error) {
	v, err := selected(values, mask)
	if err != nil {
		return 0, 0, err
	}
	if len(v) == 0 {
		return 0, 0, emptyAperture("ellipse")
	}
	return floats.Max(v), len(v), nil
}

// Measure computes the photometry of a source geometry. SNR is peak / RMS
// without clamping; a zero RMS or non-finite ratio is ErrDegenerateAperture.
func Measure(g *aperture.Geometry) (Result, error) {
	values := g.Cutout.Values

	rms, nAnnulus, err := BackgroundRMS(values, g.AnnulusMask())
	if err != nil {
		return Result{}, err
	}
	peak, nEllipse, err := PeakFlux(values, g.EllipseMask())
	if err != nil {
		return Result{BackgroundRMS: rms, AnnulusPixels: nAnnulus}, err
	}

	res := Result{
		BackgroundRMS: rms,
		Peak:          peak,
		AnnulusPixels: nAnnulus,
		EllipsePixels: nEllipse,
	}

	snr := peak / rms
	if rms == 0 || math.IsNaN(snr) || math.IsInf(snr, 0) {
		res.SNR = math.NaN()
		return res, errors.New(ErrDegenerateAperture).
			Component("photometry").
			Category(errors.CategoryAperture).
			Context("peak", peak).
			Context("rms", rms).
			Build()
	}
	res.SNR = snr
	return res, nil
}
