package models

import (
	"math"
	"sort"
)

const (
	ThresholdMaxVolumeKWh       = "MAX_VOLUME_KWH"
	ThresholdMaxDurationMinutes = "MAX_DURATION_MINUTES"
	ThresholdMinCost            = "MIN_COST_THRESHOLD"
	ThresholdMinTimeGapMinutes  = "MIN_TIME_GAP_MINUTES"
	ThresholdRepeatCount        = "THRESHOLD"
	ThresholdMinDistanceKM      = "MIN_DISTANCE_KM"
	ThresholdMinTravelMinutes   = "MIN_TRAVEL_TIME_MINUTES"
)

// MaxRepeatCount caps THRESHOLD. Larger values behave as "never repeated".
const MaxRepeatCount = math.MaxInt32

// DefaultThresholds are seeded on first load and never overwrite stored values.
var DefaultThresholds = map[string]float64{
	ThresholdMaxVolumeKWh:       22,
	ThresholdMaxDurationMinutes: 60,
	ThresholdMinCost:            20,
	ThresholdMinTimeGapMinutes:  30,
	ThresholdRepeatCount:        3,
	ThresholdMinDistanceKM:      10,
	ThresholdMinTravelMinutes:   15,
}

// ThresholdNames returns the known threshold keys sorted.
func ThresholdNames() []string {
	names := make([]string, 0, len(DefaultThresholds))
	for name := range DefaultThresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Thresholds is an immutable snapshot of threshold values taken at the start of a run.
type Thresholds struct {
	values map[string]float64
}

// NewThresholds copies values; keys that are absent take their default.
func NewThresholds(values map[string]float64) Thresholds {
	snapshot := make(map[string]float64, len(DefaultThresholds))
	for name, def := range DefaultThresholds {
		snapshot[name] = def
	}
	for name, v := range values {
		snapshot[name] = v
	}
	return Thresholds{values: snapshot}
}

// DefaultThresholdSnapshot returns the built-in defaults.
func DefaultThresholdSnapshot() Thresholds {
	return NewThresholds(nil)
}

// Value returns a threshold by name, falling back to its default.
func (t Thresholds) Value(name string) float64 {
	if v, ok := t.values[name]; ok {
		return v
	}
	return DefaultThresholds[name]
}

// Map returns a copy of all values.
func (t Thresholds) Map() map[string]float64 {
	out := make(map[string]float64, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	if len(out) == 0 {
		for k, v := range DefaultThresholds {
			out[k] = v
		}
	}
	return out
}

func (t Thresholds) MaxVolumeKWh() float64       { return t.Value(ThresholdMaxVolumeKWh) }
func (t Thresholds) MaxDurationMinutes() float64 { return t.Value(ThresholdMaxDurationMinutes) }
func (t Thresholds) MinCost() float64            { return t.Value(ThresholdMinCost) }
func (t Thresholds) MinTimeGapMinutes() float64  { return t.Value(ThresholdMinTimeGapMinutes) }
func (t Thresholds) MinDistanceKM() float64      { return t.Value(ThresholdMinDistanceKM) }
func (t Thresholds) MinTravelMinutes() float64   { return t.Value(ThresholdMinTravelMinutes) }

// RepeatCount is the minimum number of recurrences that counts as repeated behavior.
func (t Thresholds) RepeatCount() int {
	v := t.Value(ThresholdRepeatCount)
	switch {
	case math.IsNaN(v) || v < 1:
		return 1
	case v >= MaxRepeatCount:
		return MaxRepeatCount
	}
	return int(v)
}
