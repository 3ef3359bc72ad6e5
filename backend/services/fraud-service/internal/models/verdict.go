package models

import (
	"fmt"
	"time"
)

// Finding is a single flagged session produced by a pass.
type Finding struct {
	SessionID string `json:"cdr_id"`
	Reason    string `json:"reason"`
}

// Verdict collects every reason recorded against a session, keyed by pass.
type Verdict struct {
	SessionID string          `json:"cdr_id"`
	Reasons   map[Pass]string `json:"reasons"`
}

// Flagged reports whether any pass recorded a reason.
func (v Verdict) Flagged() bool {
	return len(v.Reasons) > 0
}

// LegacyView renders the verdict as the Reason1..Reason7 columns older consumers expect.
func (v Verdict) LegacyView() map[string]*string {
	view := make(map[string]*string, len(AllPasses))
	for _, pass := range AllPasses {
		key := fmt.Sprintf("Reason%d", pass.Slot())
		if reason, ok := v.Reasons[pass]; ok {
			r := reason
			view[key] = &r
			continue
		}
		view[key] = nil
	}
	return view
}

// AccountReason is a stored reason joined with the owning account.
type AccountReason struct {
	AccountID string
	SessionID string
	Pass      Pass
	Reason    string
}

// StoredReason is a single persisted verdict entry.
type StoredReason struct {
	SessionID string    `json:"cdr_id"`
	Pass      Pass      `json:"pass"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}
