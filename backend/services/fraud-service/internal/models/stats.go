package models

import "time"

// AccountStats aggregates the overlapping sessions of one account.
type AccountStats struct {
	AccountID string `json:"authentication_id"`
	// ClusterCount is the number of distinct sessions taking part in at least one overlap.
	ClusterCount int     `json:"cluster_count"`
	TotalVolume  float64 `json:"total_volume"`
	TotalCost    float64 `json:"total_cost"`
}

// OverlappingSession is a session with the number of sessions it overlaps.
type OverlappingSession struct {
	ChargeSession
	OverlapCount int `json:"overlap_count"`
}

// ReasonCount is the frequency of one pass across flagged sessions.
type ReasonCount struct {
	Pass       Pass    `json:"pass"`
	Slot       int     `json:"slot"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ReasonStats summarizes all stored verdicts.
type ReasonStats struct {
	TotalFlagged int           `json:"total_flagged"`
	Reasons      []ReasonCount `json:"reasons"`
}

// SessionDetails is a session together with its verdict and decisions.
type SessionDetails struct {
	Session   ChargeSession      `json:"session"`
	Verdict   Verdict            `json:"verdict"`
	Legacy    map[string]*string `json:"legacy_reasons"`
	Decisions []Decision         `json:"decisions"`
}

// FlaggedSession is a session together with the reasons stored for it.
type FlaggedSession struct {
	ChargeSession
	Reasons map[Pass]string `json:"reasons"`
}

// FraudTotals sums every session of an account or charge point that has at
// least one flagged session.
type FraudTotals struct {
	Sessions    int     `json:"transaction_count"`
	Flagged     int     `json:"flagged_count"`
	TotalVolume float64 `json:"total_volume"`
	TotalCost   float64 `json:"total_cost"`
}

// AccountFraudStats are the totals of one account with fraud.
type AccountFraudStats struct {
	AccountID string `json:"authentication_id"`
	FraudTotals
}

// ChargePointFraudStats are the totals of one charge point with fraud.
type ChargePointFraudStats struct {
	ChargePointID string `json:"charge_point_id"`
	Country       string `json:"charge_point_country"`
	FraudTotals
}

// FraudLocation places the flagged sessions of a geocoded charge point on a map.
type FraudLocation struct {
	ChargePointID string    `json:"charge_point_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Address       string    `json:"address"`
	ZIP           string    `json:"zip"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	FraudCount    int       `json:"fraud_count"`
	LastDetected  time.Time `json:"last_detected"`
	Reasons       []string  `json:"reasons"`
}
