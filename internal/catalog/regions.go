package catalog

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tphakala/sourcefilter/internal/decision"
)

// WriteRegions writes an icrs region file with one ellipse per accepted
// source. The ellipse comes from the catalog, so a source kept by an override
// is written even when its photometry failed. It returns the number of
// ellipses written.
func WriteRegions(w io.Writer, candidates []Candidate, verdicts []decision.Verdict) (int, error) {
	if len(candidates) != len(verdicts) {
		return 0, fmt.Errorf("%d candidates but %d verdicts", len(candidates), len(verdicts))
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("icrs\n")
	n := 0
	for i, c := range candidates {
		v := verdicts[i]
		if v.Rejected {
			continue
		}
		fmt.Fprintf(bw, "ellipse(%s, %s, %s, %s, %s) # text={%d}\n",
			FormatFloat(c.RA), FormatFloat(c.Dec),
			FormatFloat(c.MajorFWHM), FormatFloat(c.MinorFWHM),
			FormatFloat(c.PositionAngle), c.Row)
		n++
	}
	return n, bw.Flush()
}
