// Package repository is the record store: charge sessions, charge point
// locations, verdicts, thresholds and investigator decisions.
package repository

import (
	"context"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// Tx is the unit of work a detection run writes through. It commits or rolls
// back as a whole.
type Tx interface {
	ReasonsForPass(ctx context.Context, pass models.Pass, ids []string) (map[string]string, error)
	UpsertReasons(ctx context.Context, pass models.Pass, reason string, ids []string) error
	PruneReasons(ctx context.Context, pass models.Pass, keep []string) (int, error)
	AccountReasons(ctx context.Context, passes []models.Pass) ([]models.AccountReason, error)
	ApplyCorrections(ctx context.Context, corrections []models.Correction) error
}
