package repository

import (
	"context"
	"fmt"
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// ListLocations returns every resolved charge point keyed by id.
func (r *queries) ListLocations(ctx context.Context) (map[string]models.Location, error) {
	const query = `
		SELECT charge_point_id, latitude, longitude, updated_at
		FROM charge_point_locations
	`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: list locations: %w", err)
	}
	defer rows.Close()

	locations := make(map[string]models.Location)
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ChargePointID, &l.Latitude, &l.Longitude, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan location: %w", err)
		}
		locations[l.ChargePointID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list locations: %w", err)
	}
	return locations, nil
}

// UpsertLocation stores coordinates for a charge point.
func (r *queries) UpsertLocation(ctx context.Context, loc models.Location) error {
	const query = `
		INSERT INTO charge_point_locations (charge_point_id, latitude, longitude, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (charge_point_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()
	`
	if _, err := r.q.ExecContext(ctx, query, loc.ChargePointID, loc.Latitude, loc.Longitude); err != nil {
		return fmt.Errorf("repository: upsert location: %w", err)
	}
	return nil
}

// PendingChargePoints lists charge points with a complete address and no
// coordinates. Charge points attempted at or after retryBefore are left out;
// the rest come never attempted first, then by oldest attempt.
func (r *queries) PendingChargePoints(ctx context.Context, limit int, retryBefore time.Time) ([]models.ChargePointAddress, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		WITH candidates AS (
			SELECT DISTINCT ON (TRIM(s.charge_point_id))
				TRIM(s.charge_point_id) AS charge_point_id,
				TRIM(s.charge_point_address) AS address,
				TRIM(s.charge_point_zip) AS zip,
				TRIM(s.charge_point_city) AS city,
				TRIM(s.charge_point_country) AS country
			FROM charge_sessions s
			WHERE TRIM(COALESCE(s.charge_point_id, '')) <> ''
			  AND TRIM(COALESCE(s.charge_point_address, '')) <> ''
			  AND TRIM(COALESCE(s.charge_point_zip, '')) <> ''
			  AND TRIM(COALESCE(s.charge_point_city, '')) <> ''
			  AND TRIM(COALESCE(s.charge_point_country, '')) <> ''
			ORDER BY TRIM(s.charge_point_id), s.start_datetime NULLS LAST, s.cdr_id
		)
		SELECT c.charge_point_id, c.address, c.zip, c.city, c.country
		FROM candidates c
		LEFT JOIN charge_point_locations l ON l.charge_point_id = c.charge_point_id
		LEFT JOIN charge_point_geocode_attempts a ON a.charge_point_id = c.charge_point_id
		WHERE l.charge_point_id IS NULL
		  AND (a.charge_point_id IS NULL OR a.last_attempted_at < $2)
		ORDER BY a.last_attempted_at ASC NULLS FIRST, c.charge_point_id
		LIMIT $1
	`
	rows, err := r.q.QueryContext(ctx, query, limit, retryBefore)
	if err != nil {
		return nil, fmt.Errorf("repository: pending charge points: %w", err)
	}
	defer rows.Close()

	var out []models.ChargePointAddress
	for rows.Next() {
		var a models.ChargePointAddress
		if err := rows.Scan(&a.ChargePointID, &a.Address, &a.ZIP, &a.City, &a.Country); err != nil {
			return nil, fmt.Errorf("repository: scan charge point: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: pending charge points: %w", err)
	}
	return out, nil
}

// RecordGeocodeAttempt notes an unsuccessful lookup so the next batches move on.
func (r *queries) RecordGeocodeAttempt(ctx context.Context, chargePointID, result string, at time.Time) error {
	const query = `
		INSERT INTO charge_point_geocode_attempts (charge_point_id, attempts, last_result, last_attempted_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (charge_point_id) DO UPDATE SET
			attempts = charge_point_geocode_attempts.attempts + 1,
			last_result = EXCLUDED.last_result,
			last_attempted_at = EXCLUDED.last_attempted_at
	`
	if _, err := r.q.ExecContext(ctx, query, chargePointID, result, at); err != nil {
		return fmt.Errorf("repository: record geocode attempt: %w", err)
	}
	return nil
}

// GeocodeAttempts lists recorded attempts, most recent first.
func (r *queries) GeocodeAttempts(ctx context.Context) ([]models.GeocodeAttempt, error) {
	const query = `
		SELECT charge_point_id, attempts, last_result, last_attempted_at
		FROM charge_point_geocode_attempts
		ORDER BY last_attempted_at DESC, charge_point_id
	`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: geocode attempts: %w", err)
	}
	defer rows.Close()

	var out []models.GeocodeAttempt
	for rows.Next() {
		var a models.GeocodeAttempt
		if err := rows.Scan(&a.ChargePointID, &a.Attempts, &a.LastResult, &a.LastAttemptedAt); err != nil {
			return nil, fmt.Errorf("repository: scan geocode attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: geocode attempts: %w", err)
	}
	return out, nil
}
