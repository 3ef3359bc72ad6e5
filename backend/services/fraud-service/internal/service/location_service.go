package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/clients"
	"chargeguard/backend/services/fraud-service/internal/metrics"
	"chargeguard/backend/services/fraud-service/internal/models"
)

const (
	defaultGeocodeBatch = 50
	defaultGeocodeRetry = 24 * time.Hour
)

// Geocoder resolves a charge point address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, addr models.ChargePointAddress) (lat, lng float64, found bool, err error)
}

// GeocodeSummary reports the outcome of one geocoding batch.
type GeocodeSummary struct {
	Processed int `json:"processed"`
	Resolved  int `json:"resolved"`
	NotFound  int `json:"not_found"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// LocationService fills in coordinates for charge points used by travel detection.
type LocationService struct {
	store      LocationStore
	geocoder   Geocoder
	logger     *zap.Logger
	retryAfter time.Duration
	now        func() time.Time
}

// LocationOption configures LocationService.
type LocationOption func(*LocationService)

// WithRetryAfter sets how long an unresolved charge point waits before it is
// looked up again. Zero or less keeps the default of a day.
func WithRetryAfter(d time.Duration) LocationOption {
	return func(s *LocationService) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

// WithLocationClock overrides time.Now.
func WithLocationClock(now func() time.Time) LocationOption {
	return func(s *LocationService) { s.now = now }
}

// NewLocationService builds service.
func NewLocationService(store LocationStore, geocoder Geocoder, logger *zap.Logger, opts ...LocationOption) *LocationService {
	s := &LocationService{
		store:      store,
		geocoder:   geocoder,
		logger:     logger,
		retryAfter: defaultGeocodeRetry,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GeocodePending resolves up to limit charge points without coordinates.
// Charge points that do not resolve are recorded and sit out the retry window,
// so later batches reach the rest. A storage failure stops the batch.
func (s *LocationService) GeocodePending(ctx context.Context, limit int) (GeocodeSummary, error) {
	var summary GeocodeSummary
	if limit <= 0 {
		limit = defaultGeocodeBatch
	}
	pending, err := s.store.PendingChargePoints(ctx, limit, s.now().Add(-s.retryAfter))
	if err != nil {
		return summary, storageErr("geocode: pending charge points", err)
	}

	for _, cp := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++

		lat, lng, found, err := s.geocoder.Geocode(ctx, cp)
		switch {
		case errors.Is(err, clients.ErrIncompleteAddress):
			summary.Skipped++
			metrics.GeocodeRequests.WithLabelValues("skipped").Inc()
			if err := s.recordAttempt(ctx, cp, models.GeocodeSkipped); err != nil {
				return summary, err
			}
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			summary.Failed++
			metrics.GeocodeRequests.WithLabelValues("error").Inc()
			s.logger.Warn("geocoding failed", zap.String("charge_point_id", cp.ChargePointID), zap.Error(err))
			if err := s.recordAttempt(ctx, cp, models.GeocodeFailed); err != nil {
				return summary, err
			}
			continue
		case !found:
			summary.NotFound++
			metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
			if err := s.recordAttempt(ctx, cp, models.GeocodeNotFound); err != nil {
				return summary, err
			}
			continue
		}

		metrics.GeocodeRequests.WithLabelValues("found").Inc()
		loc := models.Location{ChargePointID: cp.ChargePointID, Latitude: lat, Longitude: lng, UpdatedAt: s.now()}
		if err := s.store.UpsertLocation(ctx, loc); err != nil {
			return summary, storageErr("geocode: store location", err)
		}
		summary.Resolved++
	}

	s.logger.Info("geocoding batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("resolved", summary.Resolved),
		zap.Int("not_found", summary.NotFound),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Attempts lists charge points whose last lookup did not resolve.
func (s *LocationService) Attempts(ctx context.Context) ([]models.GeocodeAttempt, error) {
	attempts, err := s.store.GeocodeAttempts(ctx)
	if err != nil {
		return nil, storageErr("geocode: list attempts", err)
	}
	return attempts, nil
}

func (s *LocationService) recordAttempt(ctx context.Context, cp models.ChargePointAddress, result string) error {
	if err := s.store.RecordGeocodeAttempt(ctx, cp.ChargePointID, result, s.now()); err != nil {
		return storageErr("geocode: record attempt", err)
	}
	return nil
}
