// Package decision turns photometry into accept/reject verdicts and reconciles
// them with persisted and newly submitted manual overrides.
package decision

import (
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/overrides"
)

// Provenance records what produced a verdict.
type Provenance string

const (
	ProvenanceThreshold      Provenance = "threshold"
	ProvenanceOverrideAccept Provenance = "override-accept"
	ProvenanceOverrideReject Provenance = "override-reject"
	ProvenanceUnevaluable    Provenance = "unevaluable"
)

// State is the lifecycle position of a verdict.
type State int

const (
	StateUnscored State = iota
	StateScored
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUnscored:
		return "unscored"
	case StateScored:
		return "scored"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Verdict is the decision for one catalog row.
type Verdict struct {
	Row        int
	ID         int
	SNR        float64 // NaN when unevaluable
	Rejected   bool
	Provenance Provenance
	State      State
	Cause      error // why the source could not be evaluated
}

// Unevaluable reports whether photometry failed for the source.
func (v Verdict) Unevaluable() bool {
	return v.Cause != nil
}

// Engine holds the verdicts of one run. It is not safe for concurrent use;
// scoring happens after photometry results are joined.
type Engine struct {
	threshold float64
	persisted overrides.Set
	verdicts  []Verdict
	rowOf     map[int]int
	finalized bool
	log       logger.Logger
}

// NewEngine creates an engine for the given source ids in catalog row order.
// Duplicate ids are a schema error since overrides are keyed by id.
func NewEngine(threshold float64, persisted overrides.Set, ids []int, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Global().Module("decision")
	}
	if persisted.Accepted == nil || persisted.Rejected == nil {
		persisted = overrides.NewSet()
	}

	e := &Engine{
		threshold: threshold,
		persisted: persisted,
		verdicts:  make([]Verdict, len(ids)),
		rowOf:     make(map[int]int, len(ids)),
		log:       log,
	}
	for row, id := range ids {
		if prev, dup := e.rowOf[id]; dup {
			return nil, errors.New(fmt.Errorf("%w: source id %d on rows %d and %d", errors.ErrCatalogSchemaMismatch, id, prev, row)).
				Component("decision").
				Category(errors.CategorySchema).
				Build()
		}
		e.rowOf[id] = row
		e.verdicts[row] = Verdict{Row: row, ID: id, SNR: math.NaN(), State: StateUnscored}
	}
	return e, nil
}

func (e *Engine) verdictAt(row int) (*Verdict, error) {
	if row < 0 || row >= len(e.verdicts) {
		return nil, fmt.Errorf("row %d out of range [0, %d)", row, len(e.verdicts))
	}
	v := &e.verdicts[row]
	if v.State != StateUnscored {
		return nil, errors.Newf("row %d already %s", row, v.State).
			Component("decision").
			Category(errors.CategoryState).
			Build()
	}
	return v, nil
}

// Score applies the threshold rule, rejected = snr <= threshold.
func (e *Engine) Score(row int, snr float64) error {
	v, err := e.verdictAt(row)
	if err != nil {
		return err
	}
	v.SNR = snr
	v.Rejected = snr <= e.threshold
	v.Provenance = ProvenanceThreshold
	v.State = StateScored
	return nil
}

// MarkUnevaluable records that photometry failed for row. Such sources are
// rejected unless an accept override applies.
func (e *Engine) MarkUnevaluable(row int, cause error) error {
	v, err := e.verdictAt(row)
	if err != nil {
		return err
	}
	v.SNR = math.NaN()
	v.Rejected = true
	v.Provenance = ProvenanceUnevaluable
	v.Cause = cause
	v.State = StateScored
	return nil
}

// Conflicts returns one ErrConflictingOverride per id present in both
// persisted sets, in id order. Ids not in the catalog are ignored.
func (e *Engine) Conflicts() []error {
	var errs []error
	for _, id := range e.persisted.Conflicts() {
		row, ok := e.rowOf[id]
		if !ok {
			continue
		}
		errs = append(errs, errors.New(fmt.Errorf("%w: source %d is both accepted and rejected", errors.ErrConflictingOverride, id)).
			Component("decision").
			Category(errors.CategoryConflict).
			SourceContext(row, id).
			Build())
	}
	return errs
}

// ApplyPersisted forces persisted overrides onto scored verdicts. A reject
// entry wins over an accept entry for the same id. Returns the number of
// verdicts touched.
func (e *Engine) ApplyPersisted() (int, error) {
	if e.finalized {
		return 0, e.finalizedErr()
	}
	n := 0
	for i := range e.verdicts {
		v := &e.verdicts[i]
		if v.State != StateScored {
			continue
		}
		switch {
		case e.persisted.Has(overrides.KindReject, v.ID):
			v.Rejected = true
			v.Provenance = ProvenanceOverrideReject
			n++
		case e.persisted.Has(overrides.KindAccept, v.ID):
			v.Rejected = false
			v.Provenance = ProvenanceOverrideAccept
			n++
		}
	}
	return n, nil
}

// ApplyResult describes how submitted tokens were handled.
type ApplyResult struct {
	Applied  []Token // effective tokens, one per id, in first-seen order
	Unknown  []Token // ids absent from the catalog, not applied
	Reversed []Token // applied tokens that contradict a persisted override
}

// Apply forces newly submitted tokens onto the verdicts. For repeated ids the
// last token wins. Tokens for ids not in the catalog are skipped.
func (e *Engine) Apply(tokens []Token) (ApplyResult, error) {
	var res ApplyResult
	if e.finalized {
		return res, e.finalizedErr()
	}

	last := make(map[int]overrides.Kind, len(tokens))
	var order []int
	for _, tok := range tokens {
		if _, known := e.rowOf[tok.ID]; !known {
			res.Unknown = append(res.Unknown, tok)
			e.log.Warn("override for unknown source id skipped", logger.String("token", tok.String()))
			continue
		}
		if _, seen := last[tok.ID]; !seen {
			order = append(order, tok.ID)
		}
		last[tok.ID] = tok.Kind
	}

	for _, id := range order {
		tok := Token{Kind: last[id], ID: id}
		v := &e.verdicts[e.rowOf[id]]
		if v.State == StateUnscored {
			return res, errors.Newf("override for source %d before it was scored", id).
				Component("decision").
				Category(errors.CategoryState).
				Build()
		}

		opposite := overrides.KindAccept
		if tok.Kind == overrides.KindAccept {
			opposite = overrides.KindReject
		}
		if e.persisted.Has(opposite, id) {
			res.Reversed = append(res.Reversed, tok)
		}

		v.Rejected = tok.Kind == overrides.KindReject
		if v.Rejected {
			v.Provenance = ProvenanceOverrideReject
		} else {
			v.Provenance = ProvenanceOverrideAccept
		}
		res.Applied = append(res.Applied, tok)
	}
	return res, nil
}

// Finalize freezes every verdict and returns them in row order. All rows must
// be scored; finalizing twice is an error.
func (e *Engine) Finalize() ([]Verdict, error) {
	if e.finalized {
		return nil, e.finalizedErr()
	}
	for i := range e.verdicts {
		if e.verdicts[i].State != StateScored {
			return nil, errors.Newf("row %d is %s", i, e.verdicts[i].State).
				Component("decision").
				Category(errors.CategoryState).
				Build()
		}
	}
	for i := range e.verdicts {
		e.verdicts[i].State = StateFinalized
	}
	e.finalized = true
	return slices.Clone(e.verdicts), nil
}

// Verdicts returns a snapshot of the current verdicts.
func (e *Engine) Verdicts() []Verdict {
	return slices.Clone(e.verdicts)
}

// Threshold returns the SNR threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

func (e *Engine) finalizedErr() error {
	return errors.NewStd("verdicts already finalized")
}
