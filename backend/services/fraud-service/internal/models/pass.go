package models

import (
	"strconv"
	"strings"
)

// Pass names a detection pass. Each pass owns exactly one reason slot of a verdict.
type Pass string

const (
	PassHighVolume   Pass = "high_volume_short_duration"
	PassCostPerKWh   Pass = "unusual_cost_per_kwh"
	PassRapidSession Pass = "rapid_consecutive_sessions"
	PassOverlap      Pass = "overlapping_sessions"
	PassRepeated     Pass = "repeated_behavior"
	PassIntegrity    Pass = "data_integrity"
	PassTravel       Pass = "unrealistic_movement"
)

// AllPasses lists passes in slot order.
var AllPasses = []Pass{
	PassHighVolume,
	PassCostPerKWh,
	PassRapidSession,
	PassOverlap,
	PassRepeated,
	PassIntegrity,
	PassTravel,
}

// RepeatSources are the passes whose stored reasons feed repeated behavior detection.
var RepeatSources = []Pass{PassHighVolume, PassCostPerKWh, PassRapidSession, PassOverlap}

var passLabels = map[Pass]string{
	PassHighVolume:   "High volume in short duration",
	PassCostPerKWh:   "Unusual cost per kWh",
	PassRapidSession: "Rapid consecutive sessions",
	PassOverlap:      "Overlapping sessions",
	PassRepeated:     "Repeated behavior",
	PassIntegrity:    "Data integrity violation",
	PassTravel:       "Unrealistic movement",
}

// Valid reports whether p is a known pass.
func (p Pass) Valid() bool {
	_, ok := passLabels[p]
	return ok
}

// Slot returns the 1-based legacy reason slot, or 0 for unknown passes.
func (p Pass) Slot() int {
	for i, known := range AllPasses {
		if known == p {
			return i + 1
		}
	}
	return 0
}

// Label is the human readable pass title.
func (p Pass) Label() string {
	return passLabels[p]
}

// Retained reports whether stored reasons of p survive runs that no longer
// reproduce them. Integrity findings are fixed at the source by the run that
// records them, so later runs never see them again.
func (p Pass) Retained() bool {
	return p == PassIntegrity
}

// PassForSlot maps a legacy slot number back to its pass.
func PassForSlot(slot int) (Pass, bool) {
	if slot < 1 || slot > len(AllPasses) {
		return "", false
	}
	return AllPasses[slot-1], true
}

// ParseSlot accepts a slot number ("3") or a legacy column name ("Reason3").
func ParseSlot(raw string) (Pass, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len("Reason") && strings.EqualFold(raw[:len("Reason")], "Reason") {
		raw = raw[len("Reason"):]
	}
	slot, err := strconv.Atoi(raw)
	if err != nil {
		return "", false
	}
	return PassForSlot(slot)
}
