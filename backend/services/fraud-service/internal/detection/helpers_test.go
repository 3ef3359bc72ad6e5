package detection

import (
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
)

var base = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

type sessionOpt func(*models.ChargeSession)

func newSession(id string, opts ...sessionOpt) models.ChargeSession {
	s := models.ChargeSession{
		ID:            id,
		AccountID:     "acc-1",
		ChargePointID: "cp-1",
		Start:         base,
		End:           base.Add(time.Hour),
		Volume:        "10",
		Duration:      "3600",
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func withAccount(a string) sessionOpt     { return func(s *models.ChargeSession) { s.AccountID = a } }
func withChargePoint(c string) sessionOpt { return func(s *models.ChargeSession) { s.ChargePointID = c } }
func withVolume(v string) sessionOpt      { return func(s *models.ChargeSession) { s.Volume = v } }
func withDuration(d string) sessionOpt    { return func(s *models.ChargeSession) { s.Duration = d } }

func withCost(c float64) sessionOpt {
	return func(s *models.ChargeSession) { s.Cost = &c }
}

// withWindow sets start and end as minute offsets from base.
func withWindow(from, to int) sessionOpt {
	return func(s *models.ChargeSession) {
		s.Start = base.Add(time.Duration(from) * time.Minute)
		s.End = base.Add(time.Duration(to) * time.Minute)
	}
}

func withCoordinates(lat, lng float64) sessionOpt {
	return func(s *models.ChargeSession) {
		s.Latitude = &lat
		s.Longitude = &lng
	}
}

func flaggedIDs(findings []models.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.SessionID)
	}
	return out
}
