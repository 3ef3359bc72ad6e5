package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// ErrNoReport means no run has been cached yet or the entry expired.
var ErrNoReport = errors.New("no cached run report")

// ReportStore caches the summary of the latest detection run.
type ReportStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewReportStore returns redis-backed report cache.
func NewReportStore(client *redis.Client, prefix string, ttl time.Duration) *ReportStore {
	return &ReportStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ReportStore) key() string {
	return fmt.Sprintf("%s:runs:last", s.prefix)
}

// Save caches the report without per-session verdicts.
func (s *ReportStore) Save(ctx context.Context, report *models.RunReport) error {
	data, err := json.Marshal(report.Summary())
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(), data, s.ttl).Err()
}

// Last returns the cached report.
func (s *ReportStore) Last(ctx context.Context) (*models.RunReport, error) {
	result, err := s.client.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoReport
		}
		return nil, err
	}
	var report models.RunReport
	if err := json.Unmarshal([]byte(result), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
