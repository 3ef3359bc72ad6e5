package repository

import (
	"context"
	"fmt"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// ReasonsForPass returns the stored reason of pass for the given sessions.
func (r *queries) ReasonsForPass(ctx context.Context, pass models.Pass, ids []string) (map[string]string, error) {
	const query = `
		SELECT session_id, reason
		FROM fraud_reasons
		WHERE pass = $1 AND session_id = ANY($2)
	`
	rows, err := r.q.QueryContext(ctx, query, string(pass), ids)
	if err != nil {
		return nil, fmt.Errorf("repository: read reasons: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return nil, fmt.Errorf("repository: scan reason: %w", err)
		}
		out[id] = reason
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: read reasons: %w", err)
	}
	return out, nil
}

// UpsertReasons writes reason for pass on every id in one statement. Rows that
// already hold the same text are not rewritten.
func (r *queries) UpsertReasons(ctx context.Context, pass models.Pass, reason string, ids []string) error {
	const query = `
		INSERT INTO fraud_reasons (session_id, pass, slot, reason, created_at, updated_at)
		SELECT id, $2, $3, $4, NOW(), NOW()
		FROM UNNEST($1::text[]) AS id
		ON CONFLICT (session_id, pass) DO UPDATE SET
			reason = EXCLUDED.reason,
			updated_at = NOW()
		WHERE fraud_reasons.reason IS DISTINCT FROM EXCLUDED.reason
	`
	if _, err := r.q.ExecContext(ctx, query, ids, string(pass), pass.Slot(), reason); err != nil {
		return fmt.Errorf("repository: upsert reasons: %w", err)
	}
	return nil
}

// PruneReasons deletes the reasons of pass held by sessions outside keep.
func (r *queries) PruneReasons(ctx context.Context, pass models.Pass, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	const query = `
		DELETE FROM fraud_reasons
		WHERE pass = $1 AND NOT (session_id = ANY($2))
	`
	res, err := r.q.ExecContext(ctx, query, string(pass), keep)
	if err != nil {
		return 0, fmt.Errorf("repository: prune reasons: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: prune reasons: %w", err)
	}
	return int(n), nil
}

// AccountReasons returns stored reasons of the given passes joined with the account.
func (r *queries) AccountReasons(ctx context.Context, passes []models.Pass) ([]models.AccountReason, error) {
	names := make([]string, 0, len(passes))
	for _, p := range passes {
		names = append(names, string(p))
	}
	const query = `
		SELECT TRIM(COALESCE(s.authentication_id, '')), r.session_id, r.pass, r.reason
		FROM fraud_reasons r
		JOIN charge_sessions s ON s.cdr_id = r.session_id
		WHERE r.pass = ANY($1)
		ORDER BY r.session_id, r.slot
	`
	rows, err := r.q.QueryContext(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("repository: account reasons: %w", err)
	}
	defer rows.Close()

	var out []models.AccountReason
	for rows.Next() {
		var (
			ar   models.AccountReason
			pass string
		)
		if err := rows.Scan(&ar.AccountID, &ar.SessionID, &pass, &ar.Reason); err != nil {
			return nil, fmt.Errorf("repository: scan account reason: %w", err)
		}
		ar.Pass = models.Pass(pass)
		out = append(out, ar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: account reasons: %w", err)
	}
	return out, nil
}

// extraColumns scans trailing columns after the session columns.
type extraColumns struct {
	row   rowScanner
	extra []any
}

func (e extraColumns) Scan(dest ...any) error {
	return e.row.Scan(append(dest, e.extra...)...)
}

// FlaggedSessions returns sessions holding a reason of any of passes, each with
// those reasons, ordered by session id.
func (r *queries) FlaggedSessions(ctx context.Context, passes []models.Pass) ([]models.FlaggedSession, error) {
	names := make([]string, 0, len(passes))
	for _, p := range passes {
		names = append(names, string(p))
	}
	query := "SELECT" + sessionColumns + ",\n\tr.pass,\n\tr.reason" + sessionFrom + `
	JOIN fraud_reasons r ON r.session_id = s.cdr_id
	WHERE r.pass = ANY($1)
	ORDER BY s.cdr_id, r.slot`
	rows, err := r.q.QueryContext(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("repository: flagged sessions: %w", err)
	}
	defer rows.Close()

	var out []models.FlaggedSession
	for rows.Next() {
		var pass, reason string
		s, err := scanSession(extraColumns{row: rows, extra: []any{&pass, &reason}})
		if err != nil {
			return nil, fmt.Errorf("repository: scan flagged session: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != s.ID {
			out = append(out, models.FlaggedSession{ChargeSession: s, Reasons: make(map[models.Pass]string)})
		}
		out[len(out)-1].Reasons[models.Pass(pass)] = reason
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: flagged sessions: %w", err)
	}
	return out, nil
}

// GetVerdict returns every reason stored for a session.
func (r *queries) GetVerdict(ctx context.Context, sessionID string) (models.Verdict, error) {
	const query = `
		SELECT pass, reason
		FROM fraud_reasons
		WHERE session_id = $1
		ORDER BY slot
	`
	rows, err := r.q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("repository: get verdict: %w", err)
	}
	defer rows.Close()

	v := models.Verdict{SessionID: sessionID, Reasons: make(map[models.Pass]string)}
	for rows.Next() {
		var pass, reason string
		if err := rows.Scan(&pass, &reason); err != nil {
			return models.Verdict{}, fmt.Errorf("repository: scan verdict: %w", err)
		}
		v.Reasons[models.Pass(pass)] = reason
	}
	if err := rows.Err(); err != nil {
		return models.Verdict{}, fmt.Errorf("repository: get verdict: %w", err)
	}
	return v, nil
}

// ReasonStats counts flagged sessions overall and per pass.
func (r *queries) ReasonStats(ctx context.Context) (models.ReasonStats, error) {
	var stats models.ReasonStats
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM fraud_reasons`).Scan(&stats.TotalFlagged); err != nil {
		return stats, fmt.Errorf("repository: reason stats: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `SELECT pass, COUNT(*) FROM fraud_reasons GROUP BY pass`)
	if err != nil {
		return stats, fmt.Errorf("repository: reason stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Pass]int)
	for rows.Next() {
		var (
			pass  string
			count int
		)
		if err := rows.Scan(&pass, &count); err != nil {
			return stats, fmt.Errorf("repository: scan reason stats: %w", err)
		}
		counts[models.Pass(pass)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("repository: reason stats: %w", err)
	}
	stats.Reasons = reasonCounts(counts, stats.TotalFlagged)
	return stats, nil
}

func reasonCounts(counts map[models.Pass]int, total int) []models.ReasonCount {
	out := make([]models.ReasonCount, 0, len(models.AllPasses))
	for _, p := range models.AllPasses {
		rc := models.ReasonCount{Pass: p, Slot: p.Slot(), Label: p.Label(), Count: counts[p]}
		if total > 0 {
			rc.Percentage = float64(rc.Count) * 100 / float64(total)
		}
		out = append(out, rc)
	}
	return out
}
