package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column names produced by the detection stage.
const (
	ColumnID            = "_idx"
	ColumnRA            = "x_cen"
	ColumnDec           = "y_cen"
	ColumnMajorFWHM     = "major_fwhm"
	ColumnMinorFWHM     = "minor_fwhm"
	ColumnPositionAngle = "position_angle"
	ColumnRejected      = "rejected"
)

// FluxColumn names the per-band dendrogram flux column.
func FluxColumn(band int) string { return fmt.Sprintf("dend_flux_band%d", band) }

// SNRColumn names the per-band SNR column added by Update.
func SNRColumn(band int) string { return fmt.Sprintf("snr_band%d", band) }

// DetectedColumn names the per-band detection flag added by Update.
func DetectedColumn(band int) string { return fmt.Sprintf("detected_band%d", band) }

// Candidate is one catalog row. Angles are in degrees.
type Candidate struct {
	Row           int
	ID            int
	RA            float64
	Dec           float64
	MajorFWHM     float64
	MinorFWHM     float64
	PositionAngle float64
	Flux          float64
	HasFlux       bool
}

// Candidates extracts the sources of band from t in row order.
func Candidates(t *Table, band int) ([]Candidate, error) {
	cols := map[string]int{}
	for _, name := range []string{ColumnID, ColumnRA, ColumnDec, ColumnMajorFWHM, ColumnMinorFWHM, ColumnPositionAngle, FluxColumn(band)} {
		idx := t.Index(name)
		if idx < 0 {
			return nil, schemaError(fmt.Sprintf("missing column %q", name))
		}
		cols[name] = idx
	}

	out := make([]Candidate, len(t.Rows))
	for row, rec := range t.Rows {
		if len(rec) != len(t.Columns) {
			return nil, schemaError(fmt.Sprintf("row %d has %d fields, want %d", row, len(rec), len(t.Columns)))
		}

		id, err := strconv.Atoi(rec[cols[ColumnID]])
		if err != nil {
			return nil, schemaError(fmt.Sprintf("row %d: %s %q is not an integer", row, ColumnID, rec[cols[ColumnID]]))
		}
		c := Candidate{Row: row, ID: id}

		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{ColumnRA, &c.RA},
			{ColumnDec, &c.Dec},
			{ColumnMajorFWHM, &c.MajorFWHM},
			{ColumnMinorFWHM, &c.MinorFWHM},
			{ColumnPositionAngle, &c.PositionAngle},
		} {
			v, ok := parseValue(rec[cols[f.name]])
			if !ok {
				return nil, schemaError(fmt.Sprintf("row %d: %s %q is not a number", row, f.name, rec[cols[f.name]]))
			}
			*f.dst = v
		}

		c.Flux, c.HasFlux = parseValue(rec[cols[FluxColumn(band)]])
		out[row] = c
	}
	return out, nil
}

// parseValue reports false for masked values ("", "--", "nan").
func parseValue(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "", "--", "nan":
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}
