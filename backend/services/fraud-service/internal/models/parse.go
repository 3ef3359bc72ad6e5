package models

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseVolume parses an energy volume in kWh. Both "12.5" and "12,5" are accepted.
func ParseVolume(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// ParseDurationMinutes parses either "HH:MM:SS" or a number of seconds and
// returns minutes. Negative and malformed values are rejected.
func ParseDurationMinutes(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	if !strings.Contains(s, ":") {
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
		if err != nil || d.IsNegative() {
			return 0, false
		}
		return d.Div(decimal.NewFromInt(60)).InexactFloat64(), true
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0, false
	}
	seconds, err := decimal.NewFromString(parts[2])
	if err != nil || seconds.IsNegative() || seconds.GreaterThanOrEqual(decimal.NewFromInt(60)) {
		return 0, false
	}

	total := decimal.NewFromInt(int64(hours*60 + minutes)).Add(seconds.Div(decimal.NewFromInt(60)))
	return total.InexactFloat64(), true
}
