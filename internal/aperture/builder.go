// Package aperture derives pixel-space signal and background apertures for a
// source and rasterizes them onto the source's cutout.
package aperture

import (
	"fmt"
	"math"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/skyimage"
)

// Config holds the angular aperture constants.
type Config struct {
	CenterDistance float64 // degrees between the source extent and the annulus
	AnnulusWidth   float64 // degrees
	CutoutScale    float64 // cutout half size in units of the aperture extent
	EllipseScale   float64 // ellipse semi-axes in units of FWHM
}

// DefaultConfig returns the standard aperture constants.
func DefaultConfig() Config {
	return Config{
		CenterDistance: 1e-5,
		AnnulusWidth:   1e-5,
		CutoutScale:    2.2,
		EllipseScale:   2.0,
	}
}

// Source is the sky description of a candidate. Angles in degrees; the
// position angle is counter-clockwise from the +x pixel axis.
type Source struct {
	RA, Dec       float64
	MajorFWHM     float64
	MinorFWHM     float64
	PositionAngle float64
}

// Geometry is the per-source aperture set in the cutout's local pixel frame.
type Geometry struct {
	Cutout  skyimage.Cutout
	Center  Point
	Ellipse Ellipse
	Inner   Circle
	Outer   Circle
}

// Builder converts sources into aperture geometry on one image.
type Builder struct {
	image *skyimage.Image
	cfg   Config
}

// NewBuilder returns a Builder for image.
func NewBuilder(image *skyimage.Image, cfg Config) (*Builder, error) {
	if image == nil || image.Transform == nil {
		return nil, errors.New(fmt.Errorf("%w: image has no coordinate transform", errors.ErrInvalidTransform)).
			Component("aperture").
			Build()
	}
	if cfg.CutoutScale <= 0 || cfg.EllipseScale <= 0 || cfg.AnnulusWidth <= 0 || cfg.CenterDistance < 0 {
		return nil, errors.Newf("invalid aperture config %+v", cfg).
			Component("aperture").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Builder{image: image, cfg: cfg}, nil
}

// Build projects src onto the image and returns its apertures. A source that
// cannot be projected is reported as an empty aperture so the caller can mark
// it unevaluable.
func (b *Builder) Build(src Source) (*Geometry, error) {
	tr := b.image.Transform

	px, py, err := tr.SkyToPixel(src.RA, src.Dec)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: source position not projectable: %w", errors.ErrEmptyAperture, err)).
			Component("aperture").
			Category(errors.CategoryAperture).
			Build()
	}

	majorPix := tr.AngleToPixels(src.MajorFWHM)
	minorPix := tr.AngleToPixels(src.MinorFWHM)
	innerRadius := tr.AngleToPixels(b.cfg.CenterDistance) + majorPix
	outerRadius := innerRadius + tr.AngleToPixels(b.cfg.AnnulusWidth)
	half := b.cfg.CutoutScale * tr.AngleToPixels(b.cfg.CenterDistance+b.cfg.AnnulusWidth+src.MajorFWHM)

	if math.IsNaN(half) || math.IsNaN(majorPix) || math.IsNaN(minorPix) {
		return nil, errors.New(fmt.Errorf("%w: non-finite source shape", errors.ErrEmptyAperture)).
			Component("aperture").
			Build()
	}

	cutout := b.image.Cutout(px, py, half)
	lx, ly := cutout.Local(px, py)
	center := Point{X: lx, Y: ly}

	return &Geometry{
		Cutout: cutout,
		Center: center,
		Ellipse: Ellipse{
			Center:    center,
			SemiMajor: b.cfg.EllipseScale * majorPix,
			SemiMinor: b.cfg.EllipseScale * minorPix,
			Angle:     src.PositionAngle,
		},
		Inner: Circle{Center: center, Radius: innerRadius},
		Outer: Circle{Center: center, Radius: outerRadius},
	}, nil
}

// validMask returns the cutout's finite-sample mask.
func (g *Geometry) validMask() Mask {
	m, err := MaskFromSlice(g.Cutout.Width, g.Cutout.Height, g.Cutout.Valid)
	if err != nil {
		return NewMask(g.Cutout.Width, g.Cutout.Height)
	}
	return m
}

// EllipseMask returns the signal aperture restricted to finite samples.
func (g *Geometry) EllipseMask() Mask {
	return Rasterize(g.Ellipse, g.Cutout.Width, g.Cutout.Height).And(g.validMask())
}

// AnnulusMask returns outer AND NOT inner, restricted to finite samples.
func (g *Geometry) AnnulusMask() Mask {
	return g.RawAnnulusMask().And(g.validMask())
}

// RawAnnulusMask returns outer AND NOT inner over the whole cutout grid.
func (g *Geometry) RawAnnulusMask() Mask {
	outer := Rasterize(g.Outer, g.Cutout.Width, g.Cutout.Height)
	inner := Rasterize(g.Inner, g.Cutout.Width, g.Cutout.Height)
	return outer.AndNot(inner)
}
