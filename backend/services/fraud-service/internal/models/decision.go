package models

import "time"

// DecisionStatus is an investigator's call on a flagged session.
type DecisionStatus string

const (
	DecisionApprove DecisionStatus = "approve"
	DecisionDeny    DecisionStatus = "deny"
	DecisionMaybe   DecisionStatus = "maybe"
)

// Valid reports whether s is a known status.
func (s DecisionStatus) Valid() bool {
	switch s {
	case DecisionApprove, DecisionDeny, DecisionMaybe:
		return true
	}
	return false
}

// Decision records an investigator verdict.
type Decision struct {
	ID        string         `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"cdr_id"`
	UserID    string         `db:"user_id" json:"user_id"`
	UserName  string         `db:"user_name" json:"user_name"`
	Status    DecisionStatus `db:"status" json:"status"`
	Reason    string         `db:"reason" json:"reason"`
	DecidedAt time.Time      `db:"decided_at" json:"decided_at"`
}
