// Package thresholds owns the named numeric parameters that drive detection.
// Values are read from storage on every Load and never cached.
package thresholds

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/models"
)

var (
	ErrUnknownThreshold = errors.New("unknown threshold")
	ErrInvalidThreshold = errors.New("invalid threshold value")
)

// Store persists thresholds as name to value pairs.
type Store interface {
	EnsureThresholdTable(ctx context.Context) error
	// SeedThresholds inserts missing names and leaves existing values alone.
	SeedThresholds(ctx context.Context, defaults map[string]float64) error
	Thresholds(ctx context.Context) (map[string]float64, error)
	UpsertThresholds(ctx context.Context, values map[string]float64) error
}

// Registry loads and updates thresholds.
type Registry struct {
	store  Store
	logger *zap.Logger
}

// NewRegistry returns a registry over store.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Load seeds defaults if absent and returns a snapshot of the stored values.
func (r *Registry) Load(ctx context.Context) (models.Thresholds, error) {
	if err := r.store.EnsureThresholdTable(ctx); err != nil {
		return models.Thresholds{}, storageErr("ensure table", err)
	}
	if err := r.store.SeedThresholds(ctx, models.DefaultThresholds); err != nil {
		return models.Thresholds{}, storageErr("seed defaults", err)
	}
	values, err := r.store.Thresholds(ctx)
	if err != nil {
		return models.Thresholds{}, storageErr("read", err)
	}

	known := make(map[string]float64, len(values))
	for name, v := range values {
		if _, ok := models.DefaultThresholds[name]; !ok {
			r.logger.Warn("ignoring unknown stored threshold", zap.String("name", name))
			continue
		}
		known[name] = v
	}
	return models.NewThresholds(known), nil
}

// Set validates and stores a single threshold.
func (r *Registry) Set(ctx context.Context, name string, value float64) error {
	return r.SetMany(ctx, map[string]float64{name: value})
}

// SetMany validates every value before storing any of them.
func (r *Registry) SetMany(ctx context.Context, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}
	for name, v := range values {
		if err := Validate(name, v); err != nil {
			return err
		}
	}
	if err := r.store.EnsureThresholdTable(ctx); err != nil {
		return storageErr("ensure table", err)
	}
	if err := r.store.UpsertThresholds(ctx, values); err != nil {
		return storageErr("write", err)
	}
	for name, v := range values {
		r.logger.Info("threshold updated", zap.String("name", name), zap.Float64("value", v))
	}
	return nil
}

// Validate checks a single threshold value.
func Validate(name string, value float64) error {
	if _, ok := models.DefaultThresholds[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownThreshold, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidThreshold, name)
	}
	if name == models.ThresholdRepeatCount {
		if value < 1 || value != math.Trunc(value) {
			return fmt.Errorf("%w: %s must be a whole number of at least 1", ErrInvalidThreshold, name)
		}
		if value > models.MaxRepeatCount {
			return fmt.Errorf("%w: %s must not exceed %d", ErrInvalidThreshold, name, models.MaxRepeatCount)
		}
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("thresholds: %s: %w: %w", op, models.ErrStorage, err)
}
