package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chargeguard/backend/services/fraud-service/internal/detection"
	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/repository"
	"chargeguard/backend/services/fraud-service/internal/thresholds"
	"chargeguard/backend/services/fraud-service/internal/verdict"
)

var base = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store    *repository.MemoryStore
	registry *thresholds.Registry
	svc      *DetectionService
}

func newFixture(t *testing.T, opts ...DetectionOption) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()
	registry := thresholds.NewRegistry(store, logger)
	agg := verdict.NewAggregator(store, logger)
	return &fixture{
		store:    store,
		registry: registry,
		svc:      NewDetectionService(store, registry, agg, logger, opts...),
	}
}

func (f *fixture) seed(t *testing.T, sessions ...models.ChargeSession) {
	t.Helper()
	require.NoError(t, f.store.InsertSessions(context.Background(), sessions))
}

// session builds a clean 60 minute session starting from minutes after base.
func session(id, account string, from int) models.ChargeSession {
	return models.ChargeSession{
		ID:            id,
		AccountID:     account,
		ChargePointID: "cp-1",
		Start:         base.Add(time.Duration(from) * time.Minute),
		End:           base.Add(time.Duration(from+60) * time.Minute),
		Volume:        "10",
		Duration:      "3600",
	}
}

// highVolume makes s deliver 30 kWh in 30 minutes.
func highVolume(s models.ChargeSession) models.ChargeSession {
	s.Volume = "30"
	s.Duration = "00:30:00"
	s.End = s.Start.Add(30 * time.Minute)
	return s
}

type panicPass struct{}

func (panicPass) Name() models.Pass { return models.PassTravel }

func (panicPass) Run([]models.ChargeSession, models.Thresholds) []models.Finding {
	panic("boom")
}

func onlyPasses(passes ...detection.Pass) PassBuilder {
	return func(map[string]models.Location) []detection.Pass { return passes }
}
