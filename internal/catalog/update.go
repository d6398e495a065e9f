package catalog

import (
	"fmt"

	"github.com/tphakala/sourcefilter/internal/decision"
)

// Update returns a copy of t with the SNR, detection and rejection columns
// appended. verdicts must be aligned with the table rows and carry the same
// source ids. A source counts as detected when its flux in this band is
// present, whether or not its SNR could be measured.
func Update(t *Table, band int, candidates []Candidate, verdicts []decision.Verdict) (*Table, error) {
	added := []string{SNRColumn(band), DetectedColumn(band), ColumnRejected}
	for _, name := range added {
		if t.Index(name) >= 0 {
			return nil, schemaError(fmt.Sprintf("column %q already present", name))
		}
	}
	if len(verdicts) != t.Len() || len(candidates) != t.Len() {
		return nil, schemaError(fmt.Sprintf("%d verdicts and %d candidates for %d rows", len(verdicts), len(candidates), t.Len()))
	}

	out := t.Clone()
	out.Columns = append(out.Columns, added...)
	for row, v := range verdicts {
		c := candidates[row]
		if v.Row != row || v.ID != c.ID {
			return nil, schemaError(fmt.Sprintf("row %d: verdict for source %d (row %d) does not match source %d", row, v.ID, v.Row, c.ID))
		}
		detected := "0"
		if c.HasFlux {
			detected = "1"
		}
		rejected := "0"
		if v.Rejected {
			rejected = "1"
		}
		out.Rows[row] = append(out.Rows[row], FormatFloat(v.SNR), detected, rejected)
	}
	return out, nil
}
