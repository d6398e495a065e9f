// Package metrics provides constants used across metric definitions.
package metrics

// Outcome labels for rejection verdicts.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeUnevaluable = "unevaluable"
)

// Stage labels for run phases.
const (
	StageLoad       = "load"
	StagePhotometry = "photometry"
	StageDecision   = "decision"
	StageWrite      = "write"
)

// snrBuckets spans faint noise peaks to bright compact sources.
var snrBuckets = []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 50, 100}
