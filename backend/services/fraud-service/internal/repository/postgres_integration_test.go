//go:build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"chargeguard/backend/libs/db"
	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/migrations"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("chargeguard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.NewPostgresDB(ctx, dsn, db.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, migrations.Up(ctx, pool))
	return NewPostgresStore(pool)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	start := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	cost := 12.5

	require.NoError(t, store.InsertSessions(ctx, []models.ChargeSession{
		{ID: "s1", AccountID: " acc ", ChargePointID: "cp-1", Start: start, End: start.Add(time.Hour), Volume: "12,5", Duration: "01:00:00", Cost: &cost, Address: "Main 1"},
		{ID: "s2", AccountID: "acc", ChargePointID: "cp-2", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour)},
		{ID: "s3", AccountID: "", ChargePointID: "cp-1"},
	}))
	require.NoError(t, store.UpsertLocation(ctx, models.Location{ChargePointID: "cp-1", Latitude: 52.1, Longitude: 4.3}))

	sessions, err := store.ListSessions(ctx, models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "s1", sessions[0].ID)
	require.NotNil(t, sessions[0].Latitude)
	assert.Equal(t, 52.1, *sessions[0].Latitude)
	assert.True(t, sessions[2].Start.IsZero())

	filtered, err := store.ListSessions(ctx, models.SessionFilter{AccountID: "acc"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	_, err = store.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	pending, err := store.PendingChargePoints(ctx, 10, start)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPostgresStoreGeocodeAttempts(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	at := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	full := func(id, cp, zip string) models.ChargeSession {
		return models.ChargeSession{ID: id, ChargePointID: cp, Address: "Main 1", ZIP: zip, City: "Delft", Country: "NLD"}
	}
	require.NoError(t, store.InsertSessions(ctx, []models.ChargeSession{
		full("s1", "a-cp", ""),
		full("s2", "b-cp", "2611AA"),
		full("s3", "c-cp", "2611AB"),
	}))

	pending, err := store.PendingChargePoints(ctx, 10, at)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b-cp", pending[0].ChargePointID)

	require.NoError(t, store.RecordGeocodeAttempt(ctx, "b-cp", models.GeocodeNotFound, at))
	pending, err = store.PendingChargePoints(ctx, 10, at)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c-cp", pending[0].ChargePointID)

	pending, err = store.PendingChargePoints(ctx, 10, at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "c-cp", pending[0].ChargePointID)

	require.NoError(t, store.RecordGeocodeAttempt(ctx, "b-cp", models.GeocodeFailed, at.Add(time.Minute)))
	attempts, err := store.GeocodeAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 2, attempts[0].Attempts)
	assert.Equal(t, models.GeocodeFailed, attempts[0].LastResult)
}

func TestPostgresStorePruneAndFlaggedSessions(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertSessions(ctx, []models.ChargeSession{
		{ID: "s1", AccountID: "acc", ChargePointID: "cp-1"},
		{ID: "s2", AccountID: "acc", ChargePointID: "cp-2"},
	}))
	require.NoError(t, store.UpsertLocation(ctx, models.Location{ChargePointID: "cp-1", Latitude: 52, Longitude: 4}))
	require.NoError(t, store.UpsertReasons(ctx, models.PassHighVolume, "High volume in short duration", []string{"s1", "s2"}))
	require.NoError(t, store.UpsertReasons(ctx, models.PassOverlap, "Overlapping sessions", []string{"s1"}))

	flagged, err := store.FlaggedSessions(ctx, models.AllPasses)
	require.NoError(t, err)
	require.Len(t, flagged, 2)
	assert.Equal(t, "s1", flagged[0].ID)
	assert.Len(t, flagged[0].Reasons, 2)
	require.NotNil(t, flagged[0].Latitude)

	var removed int
	err = store.InTx(ctx, func(tx Tx) error {
		var err error
		removed, err = tx.PruneReasons(ctx, models.PassHighVolume, []string{"s2"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = store.PruneReasons(ctx, models.PassOverlap, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	flagged, err = store.FlaggedSessions(ctx, models.AllPasses)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "s2", flagged[0].ID)
}

func TestPostgresStoreReasonsAreIsolatedPerPass(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertSessions(ctx, []models.ChargeSession{{ID: "s1", AccountID: "acc"}, {ID: "s2", AccountID: "acc"}}))

	err := store.InTx(ctx, func(tx Tx) error {
		if err := tx.UpsertReasons(ctx, models.PassHighVolume, "High volume in short duration", []string{"s1", "s2"}); err != nil {
			return err
		}
		return tx.UpsertReasons(ctx, models.PassOverlap, "Overlapping sessions", []string{"s1"})
	})
	require.NoError(t, err)

	require.NoError(t, store.UpsertReasons(ctx, models.PassOverlap, "changed", []string{"s1"}))

	v, err := store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "High volume in short duration", v.Reasons[models.PassHighVolume])
	assert.Equal(t, "changed", v.Reasons[models.PassOverlap])

	existing, err := store.ReasonsForPass(ctx, models.PassHighVolume, []string{"s1", "s2", "s3"})
	require.NoError(t, err)
	assert.Len(t, existing, 2)

	reasons, err := store.AccountReasons(ctx, models.RepeatSources)
	require.NoError(t, err)
	assert.Len(t, reasons, 3)

	stats, err := store.ReasonStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFlagged)

	var legacy sql.NullString
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT reason4 FROM fraud_verdicts WHERE cdr_id = 's1'`).Scan(&legacy))
	assert.Equal(t, "changed", legacy.String)
}

func TestPostgresStoreRollback(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertSessions(ctx, []models.ChargeSession{{ID: "s1", AccountID: " acc"}}))

	boom := errors.New("boom")
	trimmed := "acc"
	err := store.InTx(ctx, func(tx Tx) error {
		if err := tx.ApplyCorrections(ctx, []models.Correction{{SessionID: "s1", AccountID: &trimmed}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, " acc", s.AccountID)
}

func TestPostgresStoreThresholds(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureThresholdTable(ctx))
	require.NoError(t, store.UpsertThresholds(ctx, map[string]float64{models.ThresholdMaxVolumeKWh: 7}))
	require.NoError(t, store.SeedThresholds(ctx, models.DefaultThresholds))

	values, err := store.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7.0, values[models.ThresholdMaxVolumeKWh])
	assert.Equal(t, 60.0, values[models.ThresholdMaxDurationMinutes])
}
