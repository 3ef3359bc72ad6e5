package detection

import (
	"strings"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const ReasonRapidSession = "Rapid consecutive sessions"

// RapidSessionPass flags a session that starts less than MIN_TIME_GAP_MINUTES
// after the previous session of the same account on the same charge point ended.
// Only the later session of a pair is flagged.
type RapidSessionPass struct{}

func (RapidSessionPass) Name() models.Pass { return models.PassRapidSession }

func (RapidSessionPass) Run(sessions []models.ChargeSession, th models.Thresholds) []models.Finding {
	groups := byAccount(sessions, func(s models.ChargeSession) string {
		account := strings.TrimSpace(s.AccountID)
		cp := strings.TrimSpace(s.ChargePointID)
		if account == "" || cp == "" {
			return ""
		}
		return account + "\x00" + cp
	})

	var findings []models.Finding
	for _, key := range sortedKeys(groups) {
		group := groups[key]
		for i := 1; i < len(group); i++ {
			gap := group[i].Start.Sub(group[i-1].End).Minutes()
			if gap < th.MinTimeGapMinutes() {
				findings = append(findings, models.Finding{SessionID: group[i].ID, Reason: ReasonRapidSession})
			}
		}
	}
	return findings
}
