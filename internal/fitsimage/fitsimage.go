// Package fitsimage loads the primary HDU of a FITS file as a sky image.
package fitsimage

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/spf13/afero"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/skyimage"
	"github.com/tphakala/sourcefilter/internal/wcs"
)

// Load opens path on fs and decodes its primary image.
func Load(fs afero.Fs, path string) (*skyimage.Image, wcs.Header, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, errors.FileError(err, path)
	}
	defer f.Close()

	img, hdr, err := Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	return img, hdr, nil
}

// Decode reads a FITS stream. Axes beyond the first two must be degenerate
// (length 1) and are dropped. BSCALE, BZERO and BLANK are applied.
func Decode(r io.Reader) (*skyimage.Image, wcs.Header, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, nil, parseError(fmt.Sprintf("open: %v", err))
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, nil, parseError("no HDU")
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, nil, parseError("primary HDU is not an image")
	}

	axes := hdu.Header().Axes()
	hdr := HeaderFromFITS(hdu.Header())
	hdr["NAXIS"] = len(axes)
	for i, n := range axes {
		hdr[fmt.Sprintf("NAXIS%d", i+1)] = n
	}
	width, height, err := planeSize(axes)
	if err != nil {
		return nil, nil, err
	}

	data, err := decodeSamples(hdu.Raw(), hdu.Header().Bitpix(), width*height, hdr)
	if err != nil {
		return nil, nil, err
	}

	transform, err := wcs.FromHeader(hdr)
	if err != nil {
		return nil, nil, err
	}
	beam, err := skyimage.BeamFromHeader(hdr)
	if err != nil {
		return nil, nil, err
	}

	img, err := skyimage.New(data, width, height, transform, beam)
	if err != nil {
		return nil, nil, err
	}
	return img, hdr, nil
}

// HeaderFromFITS flattens the header cards into a keyword map. Commentary
// cards are skipped.
func HeaderFromFITS(h *fitsio.Header) wcs.Header {
	out := make(wcs.Header)
	for _, key := range h.Keys() {
		switch key {
		case "", "COMMENT", "HISTORY", "END":
			continue
		}
		card := h.Get(key)
		if card == nil {
			continue
		}
		if s, ok := card.Value.(string); ok {
			out[strings.ToUpper(key)] = strings.TrimSpace(s)
			continue
		}
		out[strings.ToUpper(key)] = card.Value
	}
	return out
}

func planeSize(axes []int) (width, height int, err error) {
	if len(axes) < 2 {
		return 0, 0, parseError(fmt.Sprintf("image has %d axes, need at least 2", len(axes)))
	}
	for i, n := range axes[2:] {
		if n != 1 {
			return 0, 0, parseError(fmt.Sprintf("axis %d has length %d, only 2D planes are supported", i+3, n))
		}
	}
	if axes[0] <= 0 || axes[1] <= 0 {
		return 0, 0, parseError(fmt.Sprintf("empty image plane %dx%d", axes[0], axes[1]))
	}
	return axes[0], axes[1], nil
}

func decodeSamples(raw []byte, bitpix, n int, hdr wcs.Header) ([]float64, error) {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 || len(raw) < n*size {
		return nil, parseError(fmt.Sprintf("%d data bytes for %d samples of BITPIX %d", len(raw), n, bitpix))
	}

	bscale, ok := hdr.Float("BSCALE")
	if !ok {
		bscale = 1
	}
	bzero, _ := hdr.Float("BZERO")
	blank, hasBlank := hdr.Float("BLANK")

	be := binary.BigEndian
	out := make([]float64, n)
	for i := range out {
		b := raw[i*size : (i+1)*size]
		var v float64
		integer := true
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(be.Uint16(b)))
		case 32:
			v = float64(int32(be.Uint32(b)))
		case 64:
			v = float64(int64(be.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(be.Uint32(b)))
			integer = false
		case -64:
			v = math.Float64frombits(be.Uint64(b))
			integer = false
		default:
			return nil, parseError(fmt.Sprintf("unsupported BITPIX %d", bitpix))
		}
		if integer && hasBlank && v == blank {
			out[i] = math.NaN()
			continue
		}
		out[i] = bzero + bscale*v
	}
	return out, nil
}

func parseError(reason string) error {
	return errors.Newf("fits: %s", reason).
		Component("fitsimage").
		Category(errors.CategoryFileParsing).
		Build()
}
