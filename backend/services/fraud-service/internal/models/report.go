package models

import "time"

// PassOutcome summarizes one pass within a run.
type PassOutcome struct {
	Pass       Pass    `json:"pass"`
	Slot       int     `json:"slot"`
	Flagged    int     `json:"flagged"`
	Inserted   int     `json:"inserted"`
	Updated    int     `json:"updated"`
	Unchanged  int     `json:"unchanged"`
	Removed    int     `json:"removed"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// Failed reports whether the pass did not complete.
func (o PassOutcome) Failed() bool {
	return o.Error != ""
}

// RunReport is the composite result of a detection run.
type RunReport struct {
	ID          string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Sessions    int           `json:"sessions"`
	Flagged     int           `json:"flagged_sessions"`
	Corrections int           `json:"corrections"`
	Passes      []PassOutcome `json:"passes"`
	Error       string        `json:"error,omitempty"`
	// Verdicts holds the reasons produced by this run; it is not cached or broadcast.
	Verdicts []Verdict `json:"verdicts,omitempty"`
}

// Outcome returns the outcome of a pass if present.
func (r *RunReport) Outcome(pass Pass) (PassOutcome, bool) {
	for _, o := range r.Passes {
		if o.Pass == pass {
			return o, true
		}
	}
	return PassOutcome{}, false
}

// Summary returns a copy without per-session verdicts.
func (r *RunReport) Summary() RunReport {
	out := *r
	out.Verdicts = nil
	out.Passes = append([]PassOutcome(nil), r.Passes...)
	return out
}
