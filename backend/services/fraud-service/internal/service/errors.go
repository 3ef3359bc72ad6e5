package service

import (
	"errors"
	"fmt"

	"chargeguard/backend/services/fraud-service/internal/models"
	redisstore "chargeguard/backend/services/fraud-service/internal/redis"
)

var (
	// ErrRunInProgress is returned when another detection run holds the run lock.
	ErrRunInProgress = errors.New("detection run already in progress")
	// ErrNoReport means no run has completed since the cache was last cleared.
	ErrNoReport = redisstore.ErrNoReport
	// ErrInvalidDecision is returned for malformed investigator decisions.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrUnknownReason is returned for a reason filter that names no pass.
	ErrUnknownReason = errors.New("unknown reason")
	// ErrPassPanicked marks a pass that crashed during evaluation.
	ErrPassPanicked = errors.New("detection pass panicked")
)

func storageErr(op string, err error) error {
	if errors.Is(err, models.ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorage, err)
}
