// Package skyimage holds the calibrated image raster with its beam and
// coordinate transform, and cuts bounded sub-rasters around sources.
package skyimage

import (
	"fmt"
	"math"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/wcs"
)

// Image is a row-major 2D raster. Pixel (x, y) is Data[y*Width+x] with its
// centre at integer coordinates. Images are treated as immutable.
type Image struct {
	Data          []float64
	Width, Height int
	Transform     *wcs.Transform
	Beam          *Beam
	PixelsPerBeam float64 // non-zero once normalized
}

// New validates the raster shape and returns an Image.
func New(data []float64, width, height int, transform *wcs.Transform, beam *Beam) (*Image, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, errors.Newf("raster of %d samples does not match %dx%d", len(data), width, height).
			Component("skyimage").
			Category(errors.CategoryValidation).
			Build()
	}
	if transform == nil {
		return nil, errors.New(fmt.Errorf("%w: image has no coordinate transform", errors.ErrInvalidTransform)).
			Component("skyimage").
			Build()
	}
	return &Image{Data: data, Width: width, Height: height, Transform: transform, Beam: beam}, nil
}

// At returns the sample at (x, y), NaN outside the raster.
func (im *Image) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return math.NaN()
	}
	return im.Data[y*im.Width+x]
}

// Normalize returns a copy of the image with every sample divided by the
// beam area in pixels, so fluxes read per beam. The receiver is not modified.
// Normalizing an already normalized image is an error.
func (im *Image) Normalize() (*Image, error) {
	if im.PixelsPerBeam != 0 {
		return nil, errors.Newf("image already normalized by %g pixels per beam", im.PixelsPerBeam).
			Component("skyimage").
			Category(errors.CategoryState).
			Build()
	}

	ppb, err := PixelsPerBeam(im.Beam, im.Transform.PixelScale())
	if err != nil {
		return nil, err
	}

	scaled := make([]float64, len(im.Data))
	inv := 1 / ppb
	for i, v := range im.Data {
		scaled[i] = v * inv
	}

	return &Image{
		Data:          scaled,
		Width:         im.Width,
		Height:        im.Height,
		Transform:     im.Transform,
		Beam:          im.Beam,
		PixelsPerBeam: ppb,
	}, nil
}

// Cutout is a window of an image clipped to the raster bounds. Local pixel
// (i, j) corresponds to image pixel (X0+i, Y0+j). Valid is false for
// non-finite samples.
type Cutout struct {
	X0, Y0        int
	Width, Height int
	Values        []float64
	Valid         []bool
}

// Empty reports whether the window has no pixels.
func (c Cutout) Empty() bool {
	return c.Width == 0 || c.Height == 0
}

// Local converts image pixel coordinates into the cutout frame.
func (c Cutout) Local(x, y float64) (float64, float64) {
	return x - float64(c.X0), y - float64(c.Y0)
}

// Cutout returns the pixels whose centres lie within halfSize of (cx, cy) along
// each axis. Parts of the window outside the raster are dropped rather than
// filled, so the result may be smaller than requested or empty.
func (im *Image) Cutout(cx, cy, halfSize float64) Cutout {
	if math.IsNaN(cx) || math.IsNaN(cy) || !(halfSize >= 0) {
		return Cutout{}
	}
	if cx+halfSize < 0 || cy+halfSize < 0 || cx-halfSize > float64(im.Width-1) || cy-halfSize > float64(im.Height-1) {
		return Cutout{}
	}

	x0 := max(0, int(math.Ceil(cx-halfSize)))
	y0 := max(0, int(math.Ceil(cy-halfSize)))
	x1 := min(im.Width-1, int(math.Floor(cx+halfSize)))
	y1 := min(im.Height-1, int(math.Floor(cy+halfSize)))

	if x1 < x0 || y1 < y0 {
		return Cutout{X0: x0, Y0: y0}
	}

	w, h := x1-x0+1, y1-y0+1
	c := Cutout{
		X0:     x0,
		Y0:     y0,
		Width:  w,
		Height: h,
		Values: make([]float64, w*h),
		Valid:  make([]bool, w*h),
	}
	for j := range h {
		row := (y0+j)*im.Width + x0
		copy(c.Values[j*w:(j+1)*w], im.Data[row:row+w])
	}
	for i, v := range c.Values {
		c.Valid[i] = !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return c
}
