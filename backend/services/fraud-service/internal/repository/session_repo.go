package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
)

const sessionColumns = `
	s.cdr_id,
	COALESCE(s.authentication_id, ''),
	COALESCE(s.charge_point_id, ''),
	s.start_datetime,
	s.end_datetime,
	COALESCE(s.volume, ''),
	COALESCE(s.duration, ''),
	s.calculated_cost,
	COALESCE(s.charge_point_address, ''),
	COALESCE(s.charge_point_zip, ''),
	COALESCE(s.charge_point_city, ''),
	COALESCE(s.charge_point_country, ''),
	l.latitude,
	l.longitude`

const sessionFrom = `
	FROM charge_sessions s
	LEFT JOIN charge_point_locations l ON l.charge_point_id = TRIM(s.charge_point_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.ChargeSession, error) {
	var (
		s          models.ChargeSession
		start, end sql.NullTime
		cost       sql.NullFloat64
		lat, lng   sql.NullFloat64
	)
	if err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.ChargePointID,
		&start,
		&end,
		&s.Volume,
		&s.Duration,
		&cost,
		&s.Address,
		&s.ZIP,
		&s.City,
		&s.Country,
		&lat,
		&lng,
	); err != nil {
		return models.ChargeSession{}, err
	}
	if start.Valid {
		s.Start = start.Time
	}
	if end.Valid {
		s.End = end.Time
	}
	if cost.Valid {
		s.Cost = &cost.Float64
	}
	if lat.Valid && lng.Valid {
		s.Latitude = &lat.Float64
		s.Longitude = &lng.Float64
	}
	return s, nil
}

// ListSessions returns sessions ordered by start time, optionally filtered.
func (r *queries) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.ChargeSession, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, fmt.Sprintf("TRIM(s.authentication_id) = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("s.end_datetime >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("s.start_datetime < $%d", len(args)))
	}

	query := "SELECT" + sessionColumns + sessionFrom
	if len(where) > 0 {
		query += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\tORDER BY s.start_datetime NULLS LAST, s.cdr_id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChargeSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session or models.ErrSessionNotFound.
func (r *queries) GetSession(ctx context.Context, id string) (*models.ChargeSession, error) {
	query := "SELECT" + sessionColumns + sessionFrom + "\n\tWHERE s.cdr_id = $1"
	s, err := scanSession(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("repository: get session: %w", err)
	}
	return &s, nil
}

// ApplyCorrections writes trimmed identifiers back. Nil fields are kept.
func (r *queries) ApplyCorrections(ctx context.Context, corrections []models.Correction) error {
	const query = `
		UPDATE charge_sessions
		SET authentication_id = COALESCE($2, authentication_id),
		    charge_point_id = COALESCE($3, charge_point_id)
		WHERE cdr_id = $1
	`
	for _, c := range corrections {
		if _, err := r.q.ExecContext(ctx, query, c.SessionID, c.AccountID, c.ChargePointID); err != nil {
			return fmt.Errorf("repository: correct session %s: %w", c.SessionID, err)
		}
	}
	return nil
}

// InsertSessions stores sessions, replacing rows with the same id.
func (r *queries) InsertSessions(ctx context.Context, sessions []models.ChargeSession) error {
	const query = `
		INSERT INTO charge_sessions (
			cdr_id, authentication_id, charge_point_id, start_datetime, end_datetime,
			volume, duration, calculated_cost,
			charge_point_address, charge_point_zip, charge_point_city, charge_point_country
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (cdr_id) DO UPDATE SET
			authentication_id = EXCLUDED.authentication_id,
			charge_point_id = EXCLUDED.charge_point_id,
			start_datetime = EXCLUDED.start_datetime,
			end_datetime = EXCLUDED.end_datetime,
			volume = EXCLUDED.volume,
			duration = EXCLUDED.duration,
			calculated_cost = EXCLUDED.calculated_cost,
			charge_point_address = EXCLUDED.charge_point_address,
			charge_point_zip = EXCLUDED.charge_point_zip,
			charge_point_city = EXCLUDED.charge_point_city,
			charge_point_country = EXCLUDED.charge_point_country
	`
	for _, s := range sessions {
		if _, err := r.q.ExecContext(ctx, query,
			s.ID,
			s.AccountID,
			s.ChargePointID,
			nullTime(s.Start),
			nullTime(s.End),
			s.Volume,
			s.Duration,
			s.Cost,
			s.Address,
			s.ZIP,
			s.City,
			s.Country,
		); err != nil {
			return fmt.Errorf("repository: insert session %s: %w", s.ID, err)
		}
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
