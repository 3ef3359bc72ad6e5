package repository

import (
	"context"
	"fmt"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// AddDecision stores an investigator decision.
func (r *queries) AddDecision(ctx context.Context, d models.Decision) error {
	const query = `
		INSERT INTO fraud_decisions (id, session_id, user_id, user_name, status, reason, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.q.ExecContext(ctx, query,
		d.ID, d.SessionID, d.UserID, d.UserName, string(d.Status), d.Reason, d.DecidedAt,
	); err != nil {
		return fmt.Errorf("repository: add decision: %w", err)
	}
	return nil
}

// ListDecisions returns decisions on a session, newest first.
func (r *queries) ListDecisions(ctx context.Context, sessionID string) ([]models.Decision, error) {
	const query = `
		SELECT id, session_id, user_id, user_name, status, reason, decided_at
		FROM fraud_decisions
		WHERE session_id = $1
		ORDER BY decided_at DESC
	`
	rows, err := r.q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("repository: list decisions: %w", err)
	}
	defer rows.Close()

	var out []models.Decision
	for rows.Next() {
		var (
			d      models.Decision
			status string
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.UserID, &d.UserName, &status, &d.Reason, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("repository: scan decision: %w", err)
		}
		d.Status = models.DecisionStatus(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list decisions: %w", err)
	}
	return out, nil
}
