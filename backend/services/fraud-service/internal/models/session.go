package models

import "time"

// ChargeSession is one imported charge detail record.
type ChargeSession struct {
	ID            string    `db:"cdr_id" json:"cdr_id"`
	AccountID     string    `db:"authentication_id" json:"authentication_id"`
	ChargePointID string    `db:"charge_point_id" json:"charge_point_id"`
	Start         time.Time `db:"start_datetime" json:"start_datetime"`
	End           time.Time `db:"end_datetime" json:"end_datetime"`
	// Volume is kept as imported; some exports use a comma decimal separator.
	Volume string `db:"volume" json:"volume"`
	// Duration is either elapsed seconds or HH:MM:SS.
	Duration  string   `db:"duration" json:"duration"`
	Cost      *float64 `db:"calculated_cost" json:"calculated_cost,omitempty"`
	Address   string   `db:"charge_point_address" json:"charge_point_address,omitempty"`
	ZIP       string   `db:"charge_point_zip" json:"charge_point_zip,omitempty"`
	City      string   `db:"charge_point_city" json:"charge_point_city,omitempty"`
	Country   string   `db:"charge_point_country" json:"charge_point_country,omitempty"`
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
}

// VolumeKWh returns the parsed energy volume.
func (s ChargeSession) VolumeKWh() (float64, bool) {
	return ParseVolume(s.Volume)
}

// DurationMinutes returns the parsed duration in minutes.
func (s ChargeSession) DurationMinutes() (float64, bool) {
	return ParseDurationMinutes(s.Duration)
}

// HasInterval reports whether both timestamps were parsed.
func (s ChargeSession) HasInterval() bool {
	return !s.Start.IsZero() && !s.End.IsZero()
}

// Coordinates returns the session's own coordinates when both are present.
func (s ChargeSession) Coordinates() (lat, lng float64, ok bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return 0, 0, false
	}
	return *s.Latitude, *s.Longitude, true
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// Correction is an in-place fix of whitespace around identifiers. Nil fields stay as stored.
type Correction struct {
	SessionID     string  `json:"cdr_id"`
	AccountID     *string `json:"authentication_id,omitempty"`
	ChargePointID *string `json:"charge_point_id,omitempty"`
}

// Location holds resolved coordinates of a charge point.
type Location struct {
	ChargePointID string    `db:"charge_point_id" json:"charge_point_id"`
	Latitude      float64   `db:"latitude" json:"latitude"`
	Longitude     float64   `db:"longitude" json:"longitude"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ChargePointAddress is a charge point still waiting for geocoding.
type ChargePointAddress struct {
	ChargePointID string `json:"charge_point_id"`
	Address       string `json:"address"`
	ZIP           string `json:"zip"`
	City          string `json:"city"`
	Country       string `json:"country"`
}

// Geocode attempt results recorded for charge points that were not resolved.
const (
	GeocodeSkipped  = "skipped"
	GeocodeNotFound = "not_found"
	GeocodeFailed   = "failed"
)

// GeocodeAttempt is the last unsuccessful lookup of a charge point.
type GeocodeAttempt struct {
	ChargePointID   string    `json:"charge_point_id"`
	Attempts        int       `json:"attempts"`
	LastResult      string    `json:"last_result"`
	LastAttemptedAt time.Time `json:"last_attempted_at"`
}
