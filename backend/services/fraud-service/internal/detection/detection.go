// Package detection holds the fraud detection passes. Passes are pure: they
// read a slice of sessions and a threshold snapshot and return findings.
// Persisting findings is the caller's job.
package detection

import (
	"sort"
	"strings"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// Pass is one independent detection rule.
type Pass interface {
	Name() models.Pass
	Run(sessions []models.ChargeSession, th models.Thresholds) []models.Finding
}

// Corrector is implemented by passes that also repair the records they flag.
type Corrector interface {
	Corrections(sessions []models.ChargeSession) []models.Correction
}

// Independent returns the passes that only depend on raw sessions.
// Travel detection falls back to the given charge point locations.
func Independent(locations map[string]models.Location) []Pass {
	return []Pass{
		HighVolumePass{},
		CostPerKWhPass{},
		RapidSessionPass{},
		NewOverlapPass(),
		IntegrityPass{},
		TravelPass{Locations: locations},
	}
}

// byAccount groups sessions with a usable interval by trimmed account id,
// each group sorted by start time.
func byAccount(sessions []models.ChargeSession, key func(models.ChargeSession) string) map[string][]models.ChargeSession {
	groups := make(map[string][]models.ChargeSession)
	for _, s := range sessions {
		if s.ID == "" || !s.HasInterval() {
			continue
		}
		k := key(s)
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], s)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].Start.Equal(group[j].Start) {
				return group[i].Start.Before(group[j].Start)
			}
			return group[i].ID < group[j].ID
		})
	}
	return groups
}

func accountKey(s models.ChargeSession) string {
	return strings.TrimSpace(s.AccountID)
}

func sortedKeys(groups map[string][]models.ChargeSession) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
