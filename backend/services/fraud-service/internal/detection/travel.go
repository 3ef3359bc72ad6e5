package detection

import (
	"fmt"
	"math"
	"strings"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const (
	EarthRadiusKM       = 6371.0
	reasonTravelPattern = "Unrealistic movement: %.1f km in %.1f min"
)

// TravelPass flags the later of two consecutive sessions of an account when the
// charge points are at least MIN_DISTANCE_KM apart but the time between them is
// shorter than MIN_TRAVEL_TIME_MINUTES. Coordinates on the session win over Locations.
type TravelPass struct {
	Locations map[string]models.Location
}

func (TravelPass) Name() models.Pass { return models.PassTravel }

func (p TravelPass) Run(sessions []models.ChargeSession, th models.Thresholds) []models.Finding {
	groups := byAccount(sessions, accountKey)

	var findings []models.Finding
	for _, account := range sortedKeys(groups) {
		group := groups[account]
		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			lat1, lng1, ok := p.coordinates(prev)
			if !ok {
				continue
			}
			lat2, lng2, ok := p.coordinates(cur)
			if !ok {
				continue
			}
			distance := Haversine(lat1, lng1, lat2, lng2)
			gap := cur.Start.Sub(prev.End).Minutes()
			if distance >= th.MinDistanceKM() && gap < th.MinTravelMinutes() {
				findings = append(findings, models.Finding{
					SessionID: cur.ID,
					Reason:    fmt.Sprintf(reasonTravelPattern, distance, gap),
				})
			}
		}
	}
	return findings
}

func (p TravelPass) coordinates(s models.ChargeSession) (float64, float64, bool) {
	if lat, lng, ok := s.Coordinates(); ok {
		return lat, lng, true
	}
	loc, ok := p.Locations[strings.TrimSpace(s.ChargePointID)]
	if !ok {
		return 0, 0, false
	}
	return loc.Latitude, loc.Longitude, true
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
