package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chargeguard/backend/services/fraud-service/internal/detection"
	"chargeguard/backend/services/fraud-service/internal/metrics"
	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/repository"
	"chargeguard/backend/services/fraud-service/internal/thresholds"
	"chargeguard/backend/services/fraud-service/internal/verdict"
)

const tracerName = "chargeguard/fraud-service/detection"

// PassBuilder returns the passes that run directly on sessions.
type PassBuilder func(locations map[string]models.Location) []detection.Pass

// DetectionService runs every detection pass over the stored sessions and
// persists the findings in a single transaction.
type DetectionService struct {
	store       DetectionStore
	registry    *thresholds.Registry
	aggregator  *verdict.Aggregator
	lock        RunLock
	cache       ReportCache
	publisher   RunPublisher
	passes      PassBuilder
	parallelism int
	tracer      trace.Tracer
	logger      *zap.Logger
	now         func() time.Time

	mu   sync.RWMutex
	last *models.RunReport
}

// DetectionOption configures DetectionService.
type DetectionOption func(*DetectionService)

// WithRunLock makes runs exclusive across replicas.
func WithRunLock(lock RunLock) DetectionOption {
	return func(s *DetectionService) { s.lock = lock }
}

// WithReportCache stores finished reports.
func WithReportCache(cache ReportCache) DetectionOption {
	return func(s *DetectionService) { s.cache = cache }
}

// WithPublisher announces finished runs.
func WithPublisher(p RunPublisher) DetectionOption {
	return func(s *DetectionService) { s.publisher = p }
}

// WithPasses replaces the independent pass set.
func WithPasses(b PassBuilder) DetectionOption {
	return func(s *DetectionService) { s.passes = b }
}

// WithParallelism bounds concurrently evaluated passes. Zero or less means unbounded.
func WithParallelism(n int) DetectionOption {
	return func(s *DetectionService) { s.parallelism = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) DetectionOption {
	return func(s *DetectionService) { s.now = now }
}

// NewDetectionService builds service.
func NewDetectionService(
	store DetectionStore,
	registry *thresholds.Registry,
	aggregator *verdict.Aggregator,
	logger *zap.Logger,
	opts ...DetectionOption,
) *DetectionService {
	s := &DetectionService{
		store:      store,
		registry:   registry,
		aggregator: aggregator,
		passes:     detection.Independent,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type passResult struct {
	pass        models.Pass
	findings    []models.Finding
	corrections []models.Correction
	duration    time.Duration
	err         error
}

// Run executes a full detection run. On failure the returned report still
// carries whatever per-pass information was gathered, and nothing was written.
func (s *DetectionService) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{ID: uuid.NewString(), StartedAt: s.now()}
	ctx, span := s.tracer.Start(ctx, "detection.run", trace.WithAttributes(attribute.String("run.id", report.ID)))
	defer span.End()
	logger := s.logger.With(zap.String("run_id", report.ID))

	if s.lock != nil {
		release, ok, err := s.lock.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("detection: acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release run lock", zap.Error(err))
			}
		}()
	}

	err := s.run(ctx, report, logger)
	report.FinishedAt = s.now()
	s.record(report, err)

	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "detection run failed")
		logger.Error("detection run failed", zap.Error(err))
		return report, err
	}

	s.remember(ctx, report, logger)
	logger.Info("detection run completed",
		zap.Int("sessions", report.Sessions),
		zap.Int("flagged", report.Flagged),
		zap.Int("corrections", report.Corrections),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *DetectionService) run(ctx context.Context, report *models.RunReport, logger *zap.Logger) error {
	th, err := s.registry.Load(ctx)
	if err != nil {
		return err
	}
	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{})
	if err != nil {
		return storageErr("detection: list sessions", err)
	}
	locations, err := s.store.ListLocations(ctx)
	if err != nil {
		return storageErr("detection: list locations", err)
	}
	report.Sessions = len(sessions)

	results := s.evaluate(ctx, s.passes(locations), sessions, th)
	verdicts := make(map[string]map[models.Pass]string)
	var outcomes []models.PassOutcome

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		outcomes = outcomes[:0]
		clear(verdicts)
		agg := s.aggregator.With(tx)
		corrections := 0

		for _, r := range results {
			outcome, err := s.apply(ctx, agg, r, verdicts, logger)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, outcome)
			if r.err == nil && len(r.corrections) > 0 {
				if err := tx.ApplyCorrections(ctx, r.corrections); err != nil {
					return storageErr("detection: apply corrections", err)
				}
				corrections += len(r.corrections)
			}
		}

		// Every independent pass is stored; repeated behavior reads their reasons back.
		reasons, err := tx.AccountReasons(ctx, models.RepeatSources)
		if err != nil {
			return storageErr("detection: read stored reasons", err)
		}
		repeated := s.evaluatePass(ctx, detection.RepeatedPass{Reasons: reasons}, nil, th)
		outcome, err := s.apply(ctx, agg, repeated, verdicts, logger)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, outcome)
		report.Corrections = corrections
		return nil
	})
	if err != nil {
		report.Passes = nil
		return storageErr("detection: persist verdicts", err)
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Slot < outcomes[j].Slot })
	report.Passes = outcomes
	report.Verdicts = verdictSet(verdicts)
	report.Flagged = len(report.Verdicts)
	return nil
}

// apply replaces the stored reasons of one pass with its findings, or only adds
// to them for retained passes. A failed pass is reported and left untouched.
func (s *DetectionService) apply(
	ctx context.Context,
	agg *verdict.Aggregator,
	r passResult,
	verdicts map[string]map[models.Pass]string,
	logger *zap.Logger,
) (models.PassOutcome, error) {
	outcome := models.PassOutcome{
		Pass:       r.pass,
		Slot:       r.pass.Slot(),
		DurationMS: float64(r.duration.Microseconds()) / 1000,
	}
	if r.err != nil {
		outcome.Error = r.err.Error()
		logger.Error("detection pass failed", zap.String("pass", string(r.pass)), zap.Error(r.err))
		return outcome, nil
	}

	write := agg.Replace
	if r.pass.Retained() {
		write = agg.Apply
	}
	res, err := write(ctx, r.pass, r.findings)
	if err != nil {
		return outcome, storageErr("detection: write verdicts", err)
	}
	outcome.Inserted = res.Inserted
	outcome.Updated = res.Updated
	outcome.Unchanged = res.Unchanged
	outcome.Removed = res.Removed

	flagged := make(map[string]struct{}, len(r.findings))
	for _, f := range r.findings {
		flagged[f.SessionID] = struct{}{}
		if verdicts[f.SessionID] == nil {
			verdicts[f.SessionID] = make(map[models.Pass]string)
		}
		verdicts[f.SessionID][r.pass] = f.Reason
	}
	outcome.Flagged = len(flagged)

	logger.Debug("detection pass applied",
		zap.String("pass", string(r.pass)),
		zap.Int("flagged", outcome.Flagged),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("removed", res.Removed),
	)
	return outcome, nil
}

// evaluate runs passes concurrently. A pass failing does not affect the others.
func (s *DetectionService) evaluate(ctx context.Context, passes []detection.Pass, sessions []models.ChargeSession, th models.Thresholds) []passResult {
	results := make([]passResult, len(passes))
	g, gctx := errgroup.WithContext(ctx)
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	}
	for i, p := range passes {
		g.Go(func() error {
			results[i] = s.evaluatePass(gctx, p, slices.Clone(sessions), th)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].pass.Slot() < results[j].pass.Slot() })
	return results
}

func (s *DetectionService) evaluatePass(ctx context.Context, p detection.Pass, sessions []models.ChargeSession, th models.Thresholds) (res passResult) {
	res.pass = p.Name()
	_, span := s.tracer.Start(ctx, "detection.pass", trace.WithAttributes(attribute.String("pass", string(res.pass))))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.findings, res.corrections = nil, nil
			res.err = fmt.Errorf("%w: %s: %v", ErrPassPanicked, res.pass, r)
		}
		res.duration = time.Since(start)
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, "pass failed")
		}
		span.SetAttributes(attribute.Int("findings", len(res.findings)))
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	res.findings = p.Run(sessions, th)
	if c, ok := p.(detection.Corrector); ok {
		res.corrections = c.Corrections(sessions)
	}
	return res
}

func (s *DetectionService) record(report *models.RunReport, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()
	metrics.RunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	if err != nil {
		return
	}
	metrics.SessionsScanned.Set(float64(report.Sessions))
	for _, o := range report.Passes {
		label := string(o.Pass)
		metrics.PassDuration.WithLabelValues(label).Observe(o.DurationMS / 1000)
		if o.Failed() {
			metrics.PassFailures.WithLabelValues(label).Inc()
			continue
		}
		metrics.FlaggedSessions.WithLabelValues(label).Set(float64(o.Flagged))
		metrics.VerdictWrites.WithLabelValues(label, "inserted").Add(float64(o.Inserted))
		metrics.VerdictWrites.WithLabelValues(label, "updated").Add(float64(o.Updated))
	}
}

func (s *DetectionService) remember(ctx context.Context, report *models.RunReport, logger *zap.Logger) {
	summary := report.Summary()
	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Save(ctx, report); err != nil {
			logger.Warn("failed to cache run report", zap.Error(err))
		}
	}
	if s.publisher != nil {
		s.publisher.PublishRun(report)
	}
}

// LastReport returns the latest finished run, preferring the shared cache.
func (s *DetectionService) LastReport(ctx context.Context) (*models.RunReport, error) {
	if s.cache != nil {
		report, err := s.cache.Last(ctx)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, ErrNoReport) {
			s.logger.Warn("failed to read cached run report", zap.Error(err))
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, ErrNoReport
	}
	report := *s.last
	return &report, nil
}

func verdictSet(verdicts map[string]map[models.Pass]string) []models.Verdict {
	out := make([]models.Verdict, 0, len(verdicts))
	for id, reasons := range verdicts {
		out = append(out, models.Verdict{SessionID: id, Reasons: reasons})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
