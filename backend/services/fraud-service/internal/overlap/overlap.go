// Package overlap finds charge sessions of the same account whose time intervals
// intersect and groups them into connected clusters.
package overlap

import (
	"strings"
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// DefaultLeeway absorbs back-to-back sessions whose boundaries were rounded to the second.
const DefaultLeeway = time.Second

// Overlaps is the single overlap predicate used by detection and queries alike.
// Two distinct sessions of the same account overlap when
// a.Start < b.End-leeway and a.End > b.Start+leeway.
// Sessions without both timestamps or without an account never overlap.
func Overlaps(a, b models.ChargeSession, leeway time.Duration) bool {
	if a.ID == b.ID {
		return false
	}
	account := AccountKey(a)
	if account == "" || account != AccountKey(b) {
		return false
	}
	if !a.HasInterval() || !b.HasInterval() {
		return false
	}
	return a.Start.Before(b.End.Add(-leeway)) && a.End.After(b.Start.Add(leeway))
}

// AccountKey is the normalized account used to partition sessions.
func AccountKey(s models.ChargeSession) string {
	return strings.TrimSpace(s.AccountID)
}
