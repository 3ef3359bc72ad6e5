package detection

import (
	"strings"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const (
	reasonIntegrityPrefix = "Data integrity violation: "

	IssueMissingAccount        = "missing account id"
	IssueMissingChargePoint    = "missing charge point id"
	IssueWhitespaceAccount     = "whitespace in account id"
	IssueWhitespaceChargePoint = "whitespace in charge point id"
)

// IntegrityPass flags missing identifiers and identifiers padded with whitespace.
// Padded identifiers are also returned as corrections; once applied, the session
// is no longer flagged for it.
type IntegrityPass struct{}

func (IntegrityPass) Name() models.Pass { return models.PassIntegrity }

func (IntegrityPass) Run(sessions []models.ChargeSession, _ models.Thresholds) []models.Finding {
	var findings []models.Finding
	for _, s := range sessions {
		if strings.TrimSpace(s.ID) == "" {
			continue
		}
		if issues := integrityIssues(s); len(issues) > 0 {
			findings = append(findings, models.Finding{
				SessionID: s.ID,
				Reason:    reasonIntegrityPrefix + strings.Join(issues, "; "),
			})
		}
	}
	return findings
}

// Corrections returns the trimmed identifiers for sessions with padded fields.
// Blank identifiers are missing, not padded, and are left alone.
func (IntegrityPass) Corrections(sessions []models.ChargeSession) []models.Correction {
	var out []models.Correction
	for _, s := range sessions {
		if strings.TrimSpace(s.ID) == "" {
			continue
		}
		c := models.Correction{SessionID: s.ID}
		if padded(s.AccountID) {
			v := strings.TrimSpace(s.AccountID)
			c.AccountID = &v
		}
		if padded(s.ChargePointID) {
			v := strings.TrimSpace(s.ChargePointID)
			c.ChargePointID = &v
		}
		if c.AccountID != nil || c.ChargePointID != nil {
			out = append(out, c)
		}
	}
	return out
}

func integrityIssues(s models.ChargeSession) []string {
	var issues []string
	switch {
	case strings.TrimSpace(s.AccountID) == "":
		issues = append(issues, IssueMissingAccount)
	case padded(s.AccountID):
		issues = append(issues, IssueWhitespaceAccount)
	}
	switch {
	case strings.TrimSpace(s.ChargePointID) == "":
		issues = append(issues, IssueMissingChargePoint)
	case padded(s.ChargePointID):
		issues = append(issues, IssueWhitespaceChargePoint)
	}
	return issues
}

func padded(v string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed != "" && trimmed != v
}
