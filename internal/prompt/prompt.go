// Package prompt collects manual override tokens once all candidates are scored.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tphakala/sourcefilter/internal/decision"
	"github.com/tphakala/sourcefilter/internal/errors"
)

// DefaultMaxAttempts is how often the terminal prompt re-asks after malformed input.
const DefaultMaxAttempts = 3

// Summary is what the operator sees before typing overrides.
type Summary struct {
	OutputID  string
	Threshold float64
	Verdicts  []decision.Verdict
}

// Submission is what the operator entered: the well-formed tokens and one
// MalformedOverrideToken error for every entry that was skipped.
type Submission struct {
	Tokens  []decision.Token
	Skipped []error
}

// Collector returns the override tokens submitted for a run. Malformed
// entries never fail a collection; they are returned in Submission.Skipped.
type Collector interface {
	Collect(ctx context.Context, summary Summary) (Submission, error)
}

// None is a Collector that never submits overrides.
type None struct{}

// Collect implements Collector.
func (None) Collect(context.Context, Summary) (Submission, error) {
	return Submission{}, nil
}

// Scripted replays a fixed token string, e.g. from a command-line flag.
type Scripted struct {
	Text string
}

// Collect implements Collector. Malformed tokens are skipped.
func (s Scripted) Collect(ctx context.Context, _ Summary) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}
	tokens, errs := decision.ParseTokens(s.Text)
	return Submission{Tokens: tokens, Skipped: errs}, nil
}

// Terminal asks the operator on an interactive line reader.
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	maxAttempts int
}

// NewTerminal creates a prompt reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer, maxAttempts int) *Terminal {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Terminal{in: bufio.NewReader(in), out: out, maxAttempts: maxAttempts}
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Collect implements Collector. An empty line or end of input means no
// overrides; malformed input is reported and asked again. Once the attempts
// or the input run out, the well-formed tokens of the last line are kept and
// the malformed ones skipped.
func (t *Terminal) Collect(ctx context.Context, summary Summary) (Submission, error) {
	t.printSummary(summary)

	var last Submission
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Submission{}, err
		}

		fmt.Fprintln(t.out, "\nType manual override list, or press enter to continue:")
		line, err := t.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return Submission{}, errors.New(err).
				Component("prompt").
				Category(errors.CategoryFileIO).
				Build()
		}
		eof := err == io.EOF

		tokens, errs := decision.ParseTokens(strings.TrimSpace(line))
		last = Submission{Tokens: tokens, Skipped: errs}
		if len(errs) == 0 {
			return last, nil
		}
		for _, e := range errs {
			fmt.Fprintf(t.out, "  %v\n", e)
		}
		if eof {
			break
		}
	}

	fmt.Fprintf(t.out, "Skipping %d malformed override(s), applying %d.\n", len(last.Skipped), len(last.Tokens))
	return last, nil
}

func (t *Terminal) printSummary(s Summary) {
	accepted, rejected, unevaluable := 0, 0, 0
	for _, v := range s.Verdicts {
		switch {
		case v.Unevaluable():
			unevaluable++
		case v.Rejected:
			rejected++
		default:
			accepted++
		}
	}

	fmt.Fprintf(t.out, "\n%s: %d accepted, %d rejected, %d unevaluable (threshold %g)\n",
		s.OutputID, accepted, rejected, unevaluable, s.Threshold)
	for _, v := range s.Verdicts {
		status := "accept"
		if v.Rejected {
			status = "reject"
		}
		fmt.Fprintf(t.out, "  #%-6d snr=%-8.3f %-6s (%s)\n", v.ID, v.SNR, status, v.Provenance)
	}
	fmt.Fprintln(t.out, `Manual overrides example: type "r319, a605" to manually reject source #319 and accept source #605.`)
}
