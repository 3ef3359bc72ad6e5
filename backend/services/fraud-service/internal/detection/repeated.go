package detection

import (
	"fmt"
	"sort"
	"strings"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const reasonRepeatedPattern = "Repeated behavior (%dx): %s"

// Repeated groups stored reasons by account and reason text. Every group with at
// least THRESHOLD distinct sessions promotes its members to a repeated behavior
// finding. A session in several groups gets one finding with the texts joined.
func Repeated(reasons []models.AccountReason, th models.Thresholds) []models.Finding {
	type groupKey struct{ account, reason string }
	members := make(map[groupKey][]string)
	seen := make(map[groupKey]map[string]struct{})

	for _, r := range reasons {
		account := strings.TrimSpace(r.AccountID)
		if account == "" || r.SessionID == "" || r.Reason == "" {
			continue
		}
		key := groupKey{account: account, reason: r.Reason}
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		if _, dup := seen[key][r.SessionID]; dup {
			continue
		}
		seen[key][r.SessionID] = struct{}{}
		members[key] = append(members[key], r.SessionID)
	}

	promoted := make(map[string][]string)
	for key, ids := range members {
		if len(ids) < th.RepeatCount() {
			continue
		}
		text := fmt.Sprintf(reasonRepeatedPattern, len(ids), key.reason)
		for _, id := range ids {
			promoted[id] = append(promoted[id], text)
		}
	}

	sessionIDs := make([]string, 0, len(promoted))
	for id := range promoted {
		sessionIDs = append(sessionIDs, id)
	}
	sort.Strings(sessionIDs)

	findings := make([]models.Finding, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		texts := promoted[id]
		sort.Strings(texts)
		findings = append(findings, models.Finding{SessionID: id, Reason: strings.Join(texts, "; ")})
	}
	return findings
}

// RepeatedPass adapts Repeated to the Pass interface for callers that already
// hold the stored reasons.
type RepeatedPass struct {
	Reasons []models.AccountReason
}

func (RepeatedPass) Name() models.Pass { return models.PassRepeated }

func (p RepeatedPass) Run(_ []models.ChargeSession, th models.Thresholds) []models.Finding {
	return Repeated(p.Reasons, th)
}
