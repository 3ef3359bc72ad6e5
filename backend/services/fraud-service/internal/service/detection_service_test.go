package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargeguard/backend/services/fraud-service/internal/detection"
	"chargeguard/backend/services/fraud-service/internal/models"
	redisstore "chargeguard/backend/services/fraud-service/internal/redis"
)

func TestRunEmptyStore(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Sessions)
	assert.Equal(t, 0, report.Flagged)
	assert.Len(t, report.Passes, len(models.AllPasses))
	for i, o := range report.Passes {
		assert.Equal(t, i+1, o.Slot)
		assert.False(t, o.Failed())
	}
	assert.Empty(t, report.Error)
}

func TestRunFlagsAndStoresVerdicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, highVolume(session("s1", "acc-1", 0)), session("s2", "acc-2", 0))

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Sessions)
	assert.Equal(t, 1, report.Flagged)
	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, "s1", report.Verdicts[0].SessionID)

	o, ok := report.Outcome(models.PassHighVolume)
	require.True(t, ok)
	assert.Equal(t, 1, o.Flagged)
	assert.Equal(t, 1, o.Inserted)

	v, err := f.store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, detection.ReasonHighVolume, v.Reasons[models.PassHighVolume])
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, highVolume(session("s1", "acc-1", 0)), session("s2", "acc-1", 30))

	_, err := f.svc.Run(ctx)
	require.NoError(t, err)
	writes := f.store.ReasonWrites()
	require.Positive(t, writes)

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, writes, f.store.ReasonWrites())
	for _, o := range report.Passes {
		assert.Zero(t, o.Inserted, o.Pass)
		assert.Zero(t, o.Updated, o.Pass)
	}
}

func TestRunUsesCurrentThresholds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, highVolume(session("s1", "acc-1", 0)))

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	o, _ := report.Outcome(models.PassHighVolume)
	assert.Equal(t, 1, o.Flagged)

	require.NoError(t, f.registry.Set(ctx, models.ThresholdMaxVolumeKWh, 40))

	report, err = f.svc.Run(ctx)
	require.NoError(t, err)
	o, _ = report.Outcome(models.PassHighVolume)
	assert.Zero(t, o.Flagged)
}

func TestRunDropsReasonsNoLongerReproduced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.registry.Set(ctx, models.ThresholdRepeatCount, 2))
	f.seed(t,
		highVolume(session("s1", "acc-1", 0)),
		highVolume(session("s2", "acc-1", 120)),
	)

	_, err := f.svc.Run(ctx)
	require.NoError(t, err)
	v, err := f.store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	require.Contains(t, v.Reasons, models.PassHighVolume)
	require.Contains(t, v.Reasons, models.PassRepeated)

	require.NoError(t, f.registry.Set(ctx, models.ThresholdMaxVolumeKWh, 40))

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	o, _ := report.Outcome(models.PassHighVolume)
	assert.Equal(t, 2, o.Removed)
	o, _ = report.Outcome(models.PassRepeated)
	assert.Equal(t, 2, o.Removed)
	assert.Zero(t, report.Flagged)

	for _, id := range []string{"s1", "s2"} {
		v, err := f.store.GetVerdict(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, v.Reasons, id)
	}
}

func TestRunPromotesRepeatedBehavior(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t,
		highVolume(session("s1", "acc-1", 0)),
		highVolume(session("s2", "acc-1", 120)),
		highVolume(session("s3", "acc-1", 240)),
		highVolume(session("s4", "acc-2", 0)),
	)

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)

	o, ok := report.Outcome(models.PassRepeated)
	require.True(t, ok)
	assert.Equal(t, 3, o.Flagged)

	v, err := f.store.GetVerdict(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "Repeated behavior (3x): High volume in short duration", v.Reasons[models.PassRepeated])

	v, err = f.store.GetVerdict(ctx, "s4")
	require.NoError(t, err)
	assert.NotContains(t, v.Reasons, models.PassRepeated)
}

func TestRunCorrectsPaddedIdentifiers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	padded := session("s1", " acc-1 ", 0)
	padded.ChargePointID = "cp-1 "
	f.seed(t, padded)

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrections)

	stored, err := f.store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", stored.AccountID)
	assert.Equal(t, "cp-1", stored.ChargePointID)

	v, err := f.store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t,
		"Data integrity violation: whitespace in account id; whitespace in charge point id",
		v.Reasons[models.PassIntegrity])

	report, err = f.svc.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Corrections)
	o, _ := report.Outcome(models.PassIntegrity)
	assert.Zero(t, o.Flagged)
	assert.Zero(t, o.Removed)

	v, err = f.store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, v.Reasons, models.PassIntegrity)
}

func TestRunRollsBackOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	padded := highVolume(session("s1", "acc-1 ", 0))
	f.seed(t, padded)
	f.store.FailOn("AccountReasons", errors.New("connection reset"))

	report, err := f.svc.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStorage)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Error)

	v, err := f.store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, v.Reasons)
	stored, err := f.store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1 ", stored.AccountID)
	assert.Zero(t, f.store.ReasonWrites())

	_, err = f.svc.LastReport(ctx)
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestRunIsolatesPanickingPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithPasses(onlyPasses(detection.HighVolumePass{}, panicPass{})))
	f.seed(t, highVolume(session("s1", "acc-1", 0)))

	report, err := f.svc.Run(ctx)
	require.NoError(t, err)

	failed, ok := report.Outcome(models.PassTravel)
	require.True(t, ok)
	assert.True(t, failed.Failed())
	assert.Contains(t, failed.Error, "boom")

	o, _ := report.Outcome(models.PassHighVolume)
	assert.Equal(t, 1, o.Flagged)
	v, err := f.store.GetVerdict(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, v.Reasons, models.PassHighVolume)
}

func TestRunHonoursRunLockAndCachesReport(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	lock := redisstore.NewRunLock(client, "test", time.Minute)
	cache := redisstore.NewReportStore(client, "test", time.Hour)
	f := newFixture(t, WithRunLock(lock), WithReportCache(cache))
	f.seed(t, highVolume(session("s1", "acc-1", 0)))

	release, ok, err := redisstore.NewRunLock(client, "test", time.Minute).TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Run(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, release(ctx))
	report, err := f.svc.Run(ctx)
	require.NoError(t, err)

	last, err := f.svc.LastReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ID, last.ID)
	assert.Equal(t, 1, last.Flagged)
	assert.Empty(t, last.Verdicts)

	// Lock is released after the run.
	_, ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

type recordingPublisher struct{ reports []*models.RunReport }

func (p *recordingPublisher) PublishRun(r *models.RunReport) { p.reports = append(p.reports, r) }

func TestRunPublishesReport(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithPublisher(pub), WithParallelism(1))

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.reports, 1)
	assert.Equal(t, report.ID, pub.reports[0].ID)
}
