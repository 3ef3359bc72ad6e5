package detection

import (
	"github.com/shopspring/decimal"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const (
	ReasonHighVolume = "High volume in short duration"
	reasonCostPrefix = "Unusual cost per kWh: "
)

// HighVolumePass flags sessions delivering more than MAX_VOLUME_KWH in less than MAX_DURATION_MINUTES.
type HighVolumePass struct{}

func (HighVolumePass) Name() models.Pass { return models.PassHighVolume }

func (HighVolumePass) Run(sessions []models.ChargeSession, th models.Thresholds) []models.Finding {
	var findings []models.Finding
	for _, s := range sessions {
		if s.ID == "" {
			continue
		}
		volume, ok := s.VolumeKWh()
		if !ok {
			continue
		}
		minutes, ok := s.DurationMinutes()
		if !ok {
			continue
		}
		if volume > th.MaxVolumeKWh() && minutes < th.MaxDurationMinutes() {
			findings = append(findings, models.Finding{SessionID: s.ID, Reason: ReasonHighVolume})
		}
	}
	return findings
}

// CostPerKWhPass flags sessions costing more than MIN_COST_THRESHOLD while
// delivering less than MAX_VOLUME_KWH.
type CostPerKWhPass struct{}

func (CostPerKWhPass) Name() models.Pass { return models.PassCostPerKWh }

func (CostPerKWhPass) Run(sessions []models.ChargeSession, th models.Thresholds) []models.Finding {
	var findings []models.Finding
	for _, s := range sessions {
		if s.ID == "" || s.Cost == nil {
			continue
		}
		volume, ok := s.VolumeKWh()
		if !ok || volume <= 0 {
			continue
		}
		cost := *s.Cost
		if cost > th.MinCost() && volume < th.MaxVolumeKWh() {
			findings = append(findings, models.Finding{SessionID: s.ID, Reason: CostReason(cost, volume)})
		}
	}
	return findings
}

// CostReason renders the cost per kWh rounded to two decimals.
func CostReason(cost, volume float64) string {
	ratio := decimal.NewFromFloat(cost).Div(decimal.NewFromFloat(volume))
	return reasonCostPrefix + ratio.StringFixed(2) + " per kWh"
}
