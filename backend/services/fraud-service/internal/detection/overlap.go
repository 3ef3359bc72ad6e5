package detection

import (
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/overlap"
)

const ReasonOverlap = "Overlapping sessions"

// OverlapPass flags every session that overlaps another session of the same account.
type OverlapPass struct {
	Leeway time.Duration
}

// NewOverlapPass uses overlap.DefaultLeeway.
func NewOverlapPass() OverlapPass {
	return OverlapPass{Leeway: overlap.DefaultLeeway}
}

func (OverlapPass) Name() models.Pass { return models.PassOverlap }

func (p OverlapPass) Run(sessions []models.ChargeSession, _ models.Thresholds) []models.Finding {
	g := overlap.NewGraph(sessions, overlap.WithLeeway(p.Leeway))
	var findings []models.Finding
	for _, s := range g.OverlappingSessions("") {
		findings = append(findings, models.Finding{SessionID: s.ID, Reason: ReasonOverlap})
	}
	return findings
}
