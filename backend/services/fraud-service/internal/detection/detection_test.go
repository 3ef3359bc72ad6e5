package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargeguard/backend/services/fraud-service/internal/models"
)

func TestHighVolumePass(t *testing.T) {
	th := models.DefaultThresholdSnapshot()
	sessions := []models.ChargeSession{
		newSession("flag", withVolume("25"), withDuration("00:30:00")),
		newSession("comma", withVolume("25,5"), withDuration("1800")),
		newSession("slow", withVolume("25"), withDuration("01:30:00")),
		newSession("small", withVolume("5"), withDuration("00:10:00")),
		newSession("bad-volume", withVolume("n/a"), withDuration("00:10:00")),
		newSession("bad-duration", withVolume("30"), withDuration("soon")),
	}

	findings := HighVolumePass{}.Run(sessions, th)
	assert.Equal(t, []string{"flag", "comma"}, flaggedIDs(findings))
	assert.Equal(t, ReasonHighVolume, findings[0].Reason)
}

func TestHighVolumePassFollowsThresholds(t *testing.T) {
	sessions := []models.ChargeSession{
		newSession("big", withVolume("25"), withDuration("00:30:00")),
		newSession("small", withVolume("8"), withDuration("00:30:00")),
	}

	before := HighVolumePass{}.Run(sessions, models.DefaultThresholdSnapshot())
	assert.Equal(t, []string{"big"}, flaggedIDs(before))

	lowered := models.NewThresholds(map[string]float64{models.ThresholdMaxVolumeKWh: 5})
	after := HighVolumePass{}.Run(sessions, lowered)
	assert.Equal(t, []string{"big", "small"}, flaggedIDs(after))
}

func TestCostPerKWhPass(t *testing.T) {
	th := models.DefaultThresholdSnapshot()
	sessions := []models.ChargeSession{
		newSession("flag", withVolume("3"), withCost(25)),
		newSession("cheap", withVolume("3"), withCost(10)),
		newSession("big", withVolume("30"), withCost(40)),
		newSession("zero", withVolume("0"), withCost(40)),
		newSession("no-cost", withVolume("3")),
	}

	findings := CostPerKWhPass{}.Run(sessions, th)
	require.Len(t, findings, 1)
	assert.Equal(t, "flag", findings[0].SessionID)
	assert.Equal(t, "Unusual cost per kWh: 8.33 per kWh", findings[0].Reason)
}

func TestCostReasonRounding(t *testing.T) {
	assert.Equal(t, "Unusual cost per kWh: 0.67 per kWh", CostReason(2, 3))
	assert.Equal(t, "Unusual cost per kWh: 12.50 per kWh", CostReason(25, 2))
}

func TestRapidSessionPass(t *testing.T) {
	th := models.DefaultThresholdSnapshot()
	sessions := []models.ChargeSession{
		newSession("first", withWindow(0, 60)),
		newSession("second", withWindow(70, 90)),
		newSession("third", withWindow(150, 180)),
		newSession("other-cp", withChargePoint("cp-2"), withWindow(65, 80)),
		newSession("other-account", withAccount("acc-2"), withWindow(61, 80)),
	}

	findings := RapidSessionPass{}.Run(sessions, th)
	assert.Equal(t, []string{"second"}, flaggedIDs(findings))
	assert.Equal(t, ReasonRapidSession, findings[0].Reason)
}

func TestOverlapPass(t *testing.T) {
	sessions := []models.ChargeSession{
		newSession("A", withWindow(120, 180)),
		newSession("B", withWindow(150, 210)),
		newSession("C", withWindow(240, 300)),
	}

	findings := NewOverlapPass().Run(sessions, models.DefaultThresholdSnapshot())
	assert.ElementsMatch(t, []string{"A", "B"}, flaggedIDs(findings))
	for _, f := range findings {
		assert.Equal(t, ReasonOverlap, f.Reason)
	}
}

func TestIntegrityPass(t *testing.T) {
	sessions := []models.ChargeSession{
		newSession("clean"),
		newSession("padded", withAccount("  acc-1 ")),
		newSession("missing", withAccount(""), withChargePoint(" ")),
		newSession("both", withAccount("acc-1\t"), withChargePoint(" cp-9")),
		newSession("  ", withAccount("")),
	}

	pass := IntegrityPass{}
	findings := pass.Run(sessions, models.DefaultThresholdSnapshot())
	reasons := map[string]string{}
	for _, f := range findings {
		reasons[f.SessionID] = f.Reason
	}
	assert.Equal(t, map[string]string{
		"padded":  "Data integrity violation: whitespace in account id",
		"missing": "Data integrity violation: missing account id; missing charge point id",
		"both":    "Data integrity violation: whitespace in account id; whitespace in charge point id",
	}, reasons)

	corrections := pass.Corrections(sessions)
	require.Len(t, corrections, 2)
	assert.Equal(t, "padded", corrections[0].SessionID)
	require.NotNil(t, corrections[0].AccountID)
	assert.Equal(t, "acc-1", *corrections[0].AccountID)
	assert.Nil(t, corrections[0].ChargePointID)
	assert.Equal(t, "cp-9", *corrections[1].ChargePointID)
}

func TestIntegrityPassReachesFixedPoint(t *testing.T) {
	sessions := []models.ChargeSession{newSession("s1", withAccount(" acc-1 "))}
	pass := IntegrityPass{}

	first := pass.Run(sessions, models.DefaultThresholdSnapshot())
	require.Len(t, first, 1)

	for _, c := range pass.Corrections(sessions) {
		if c.AccountID != nil {
			sessions[0].AccountID = *c.AccountID
		}
	}

	assert.Empty(t, pass.Run(sessions, models.DefaultThresholdSnapshot()))
	assert.Empty(t, pass.Corrections(sessions))
}

func TestTravelPass(t *testing.T) {
	th := models.DefaultThresholdSnapshot()
	locations := map[string]models.Location{
		"cp-ams": {ChargePointID: "cp-ams", Latitude: 52.3676, Longitude: 4.9041},
		"cp-rtm": {ChargePointID: "cp-rtm", Latitude: 51.9244, Longitude: 4.4777},
	}
	sessions := []models.ChargeSession{
		newSession("ams", withChargePoint("cp-ams"), withWindow(0, 30)),
		newSession("rtm", withChargePoint("cp-rtm"), withWindow(35, 60)),
		newSession("rtm-later", withChargePoint("cp-rtm"), withWindow(62, 80)),
		newSession("unknown", withChargePoint("cp-x"), withWindow(81, 90)),
		newSession("own-coords", withChargePoint("cp-x"), withCoordinates(52.3676, 4.9041), withWindow(95, 100)),
	}

	findings := TravelPass{Locations: locations}.Run(sessions, th)
	require.Len(t, findings, 1)
	assert.Equal(t, "rtm", findings[0].SessionID)
	assert.Equal(t, "Unrealistic movement: 57.2 km in 5.0 min", findings[0].Reason)
}

func TestTravelPassSkipsSlowMoves(t *testing.T) {
	th := models.NewThresholds(map[string]float64{models.ThresholdMinTravelMinutes: 5})
	sessions := []models.ChargeSession{
		newSession("a", withCoordinates(52.3676, 4.9041), withWindow(0, 30)),
		newSession("b", withCoordinates(51.9244, 4.4777), withWindow(35, 60)),
	}
	assert.Empty(t, TravelPass{}.Run(sessions, th))
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(52, 4, 52, 4), 1e-9)
	// Amsterdam to Rotterdam.
	assert.InDelta(t, 57.23, Haversine(52.3676, 4.9041, 51.9244, 4.4777), 0.1)
	// One degree of latitude.
	assert.InDelta(t, 111.19, Haversine(0, 0, 1, 0), 0.01)
}

func TestRepeated(t *testing.T) {
	reasons := []models.AccountReason{
		{AccountID: "acc-1", SessionID: "s1", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
		{AccountID: "acc-1", SessionID: "s2", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
		{AccountID: "acc-1", SessionID: "s3", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
		{AccountID: "acc-1", SessionID: "s3", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
		{AccountID: "acc-2", SessionID: "s4", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
		{AccountID: "acc-2", SessionID: "s5", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
		{AccountID: "", SessionID: "s6", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
	}

	findings := Repeated(reasons, models.DefaultThresholdSnapshot())
	assert.Equal(t, []string{"s1", "s2", "s3"}, flaggedIDs(findings))
	for _, f := range findings {
		assert.Equal(t, "Repeated behavior (3x): High volume in short duration", f.Reason)
	}
}

func TestRepeatedHugeThresholdPromotesNothing(t *testing.T) {
	reasons := []models.AccountReason{
		{AccountID: "acc-1", SessionID: "s1", Pass: models.PassHighVolume, Reason: ReasonHighVolume},
	}
	th := models.NewThresholds(map[string]float64{models.ThresholdRepeatCount: 1e20})

	assert.Empty(t, Repeated(reasons, th))
}

func TestRepeatedJoinsGroupsPerSession(t *testing.T) {
	var reasons []models.AccountReason
	for _, id := range []string{"a", "b"} {
		reasons = append(reasons,
			models.AccountReason{AccountID: "acc", SessionID: id, Pass: models.PassHighVolume, Reason: ReasonHighVolume},
			models.AccountReason{AccountID: "acc", SessionID: id, Pass: models.PassOverlap, Reason: ReasonOverlap},
		)
	}
	th := models.NewThresholds(map[string]float64{models.ThresholdRepeatCount: 2})

	findings := RepeatedPass{Reasons: reasons}.Run(nil, th)
	require.Len(t, findings, 2)
	assert.Equal(t,
		"Repeated behavior (2x): High volume in short duration; Repeated behavior (2x): Overlapping sessions",
		findings[0].Reason)
}

func TestIndependentPasses(t *testing.T) {
	passes := Independent(nil)
	names := make([]models.Pass, 0, len(passes))
	for _, p := range passes {
		names = append(names, p.Name())
	}
	assert.ElementsMatch(t, []models.Pass{
		models.PassHighVolume, models.PassCostPerKWh, models.PassRapidSession,
		models.PassOverlap, models.PassIntegrity, models.PassTravel,
	}, names)

	var corrector Corrector = IntegrityPass{}
	assert.NotNil(t, corrector)
}
