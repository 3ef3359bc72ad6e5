package service

import (
	"context"
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/repository"
)

// SessionReader reads charge sessions and charge point locations.
type SessionReader interface {
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.ChargeSession, error)
	GetSession(ctx context.Context, id string) (*models.ChargeSession, error)
	ListLocations(ctx context.Context) (map[string]models.Location, error)
}

// DetectionStore is what a detection run needs from the record store.
type DetectionStore interface {
	SessionReader
	InTx(ctx context.Context, fn func(repository.Tx) error) error
}

// VerdictReader reads stored verdicts.
type VerdictReader interface {
	GetVerdict(ctx context.Context, sessionID string) (models.Verdict, error)
	ReasonStats(ctx context.Context) (models.ReasonStats, error)
	FlaggedSessions(ctx context.Context, passes []models.Pass) ([]models.FlaggedSession, error)
}

// DecisionStore persists investigator decisions.
type DecisionStore interface {
	AddDecision(ctx context.Context, d models.Decision) error
	ListDecisions(ctx context.Context, sessionID string) ([]models.Decision, error)
}

// LocationStore reads pending charge points, stores resolved coordinates and
// remembers lookups that did not resolve.
type LocationStore interface {
	PendingChargePoints(ctx context.Context, limit int, retryBefore time.Time) ([]models.ChargePointAddress, error)
	UpsertLocation(ctx context.Context, loc models.Location) error
	RecordGeocodeAttempt(ctx context.Context, chargePointID, result string, at time.Time) error
	GeocodeAttempts(ctx context.Context) ([]models.GeocodeAttempt, error)
}

// QueryStore combines the read side used by QueryService.
type QueryStore interface {
	SessionReader
	VerdictReader
	DecisionStore
}

// RunLock guards against concurrent detection runs.
type RunLock interface {
	TryLock(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// ReportCache keeps the latest run report.
type ReportCache interface {
	Save(ctx context.Context, report *models.RunReport) error
	Last(ctx context.Context) (*models.RunReport, error)
}

// RunPublisher pushes finished runs to live subscribers.
type RunPublisher interface {
	PublishRun(report *models.RunReport)
}
