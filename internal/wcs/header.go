package wcs

import (
	"strconv"
	"strings"
)

// Header is a flat view of FITS header cards keyed by upper-case keyword.
// Values are the decoded card values (float64, int, string, bool).
type Header map[string]any

// Float returns a numeric keyword as float64.
func (h Header) Float(key string) (float64, bool) {
	switch v := h[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns a string keyword with surrounding blanks removed.
func (h Header) String(key string) (string, bool) {
	v, ok := h[key].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Has reports whether key is present.
func (h Header) Has(key string) bool {
	_, ok := h[key]
	return ok
}

func axisKey(prefix string, axis int) string {
	return prefix + strconv.Itoa(axis)
}

func matrixKey(prefix string, i, j int) string {
	return prefix + strconv.Itoa(i) + "_" + strconv.Itoa(j)
}
