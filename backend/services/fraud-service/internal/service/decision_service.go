package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const maxDecisionReason = 2000

// DecisionService records investigator decisions on flagged sessions.
type DecisionService struct {
	sessions  SessionReader
	decisions DecisionStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewDecisionService builds service.
func NewDecisionService(sessions SessionReader, decisions DecisionStore, logger *zap.Logger) *DecisionService {
	return &DecisionService{
		sessions:  sessions,
		decisions: decisions,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddDecisionInput is what an investigator submits.
type AddDecisionInput struct {
	SessionID string
	UserID    string
	UserName  string
	Status    models.DecisionStatus
	Reason    string
}

// Add validates and stores a decision.
func (s *DecisionService) Add(ctx context.Context, in AddDecisionInput) (*models.Decision, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Status = models.DecisionStatus(strings.ToLower(strings.TrimSpace(string(in.Status))))
	switch {
	case in.SessionID == "":
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidDecision)
	case !in.Status.Valid():
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidDecision, in.Status)
	case len(in.Reason) > maxDecisionReason:
		return nil, fmt.Errorf("%w: reason longer than %d characters", ErrInvalidDecision, maxDecisionReason)
	}

	if _, err := s.sessions.GetSession(ctx, in.SessionID); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, err
		}
		return nil, storageErr("decision: get session", err)
	}

	d := models.Decision{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Status:    in.Status,
		Reason:    strings.TrimSpace(in.Reason),
		DecidedAt: s.now(),
	}
	if err := s.decisions.AddDecision(ctx, d); err != nil {
		return nil, storageErr("decision: add", err)
	}
	s.logger.Info("decision recorded",
		zap.String("cdr_id", d.SessionID),
		zap.String("status", string(d.Status)),
		zap.String("user_id", d.UserID),
	)
	return &d, nil
}

// List returns decisions for a session, newest first.
func (s *DecisionService) List(ctx context.Context, sessionID string) ([]models.Decision, error) {
	out, err := s.decisions.ListDecisions(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, storageErr("decision: list", err)
	}
	if out == nil {
		out = []models.Decision{}
	}
	return out, nil
}
