package aperture

import (
	"fmt"
	"math"
)

// Mask is a boolean occupancy grid, row-major like the cutout it covers.
type Mask struct {
	Width, Height int
	bits          []bool
}

// NewMask returns an all-false mask.
func NewMask(width, height int) Mask {
	return Mask{Width: width, Height: height, bits: make([]bool, width*height)}
}

// MaskFromSlice wraps an existing occupancy slice, e.g. a cutout validity mask.
func MaskFromSlice(width, height int, bits []bool) (Mask, error) {
	if len(bits) != width*height {
		return Mask{}, fmt.Errorf("mask of %d cells does not match %dx%d", len(bits), width, height)
	}
	return Mask{Width: width, Height: height, bits: bits}, nil
}

// Rasterize marks the cells of a width x height grid whose centres (integer
// coordinates) lie inside s. Boundary centres are included.
func Rasterize(s Shape, width, height int) Mask {
	m := NewMask(width, height)
	if width == 0 || height == 0 {
		return m
	}

	minX, minY, maxX, maxY := s.Bounds()
	if math.IsNaN(minX) || math.IsNaN(minY) || math.IsNaN(maxX) || math.IsNaN(maxY) {
		return m
	}
	x0 := clampIndex(math.Floor(minX), width)
	y0 := clampIndex(math.Floor(minY), height)
	x1 := clampIndex(math.Ceil(maxX), width)
	y1 := clampIndex(math.Ceil(maxY), height)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if s.Contains(float64(x), float64(y)) {
				m.bits[y*width+x] = true
			}
		}
	}
	return m
}

func clampIndex(v float64, n int) int {
	if v < 0 {
		return 0
	}
	if v > float64(n-1) {
		return n - 1
	}
	return int(v)
}

// At reports the occupancy of cell (x, y); out of range cells are false.
func (m Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Count returns the number of set cells.
func (m Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Len returns the number of cells.
func (m Mask) Len() int {
	return len(m.bits)
}

// Set reports the occupancy of flat index i.
func (m Mask) Set(i int) bool {
	return m.bits[i]
}

// And returns the cells set in both masks.
func (m Mask) And(o Mask) Mask {
	return m.combine(o, func(a, b bool) bool { return a && b })
}

// AndNot returns the cells set in m and not in o.
func (m Mask) AndNot(o Mask) Mask {
	return m.combine(o, func(a, b bool) bool { return a && !b })
}

func (m Mask) combine(o Mask, op func(a, b bool) bool) Mask {
	if m.Width != o.Width || m.Height != o.Height {
		panic(fmt.Sprintf("aperture: mask shape mismatch %dx%d vs %dx%d", m.Width, m.Height, o.Width, o.Height))
	}
	out := NewMask(m.Width, m.Height)
	for i := range m.bits {
		out.bits[i] = op(m.bits[i], o.bits[i])
	}
	return out
}

// Equal reports whether two masks have the same shape and cells.
func (m Mask) Equal(o Mask) bool {
	if m.Width != o.Width || m.Height != o.Height {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}
