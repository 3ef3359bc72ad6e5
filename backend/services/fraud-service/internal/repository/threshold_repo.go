package repository

import (
	"context"
	"fmt"
	"sort"
)

// EnsureThresholdTable creates the threshold table when migrations have not run.
func (r *queries) EnsureThresholdTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS fraud_thresholds (
			name TEXT PRIMARY KEY,
			value DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("repository: ensure thresholds: %w", err)
	}
	return nil
}

// SeedThresholds inserts missing names only.
func (r *queries) SeedThresholds(ctx context.Context, defaults map[string]float64) error {
	const query = `
		INSERT INTO fraud_thresholds (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO NOTHING
	`
	for _, name := range sortedNames(defaults) {
		if _, err := r.q.ExecContext(ctx, query, name, defaults[name]); err != nil {
			return fmt.Errorf("repository: seed threshold %s: %w", name, err)
		}
	}
	return nil
}

// Thresholds returns all stored values.
func (r *queries) Thresholds(ctx context.Context) (map[string]float64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT name, value FROM fraud_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("repository: read thresholds: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("repository: scan threshold: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: read thresholds: %w", err)
	}
	return out, nil
}

// UpsertThresholds writes values, overwriting existing ones.
func (r *queries) UpsertThresholds(ctx context.Context, values map[string]float64) error {
	const query = `
		INSERT INTO fraud_thresholds (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`
	for _, name := range sortedNames(values) {
		if _, err := r.q.ExecContext(ctx, query, name, values[name]); err != nil {
			return fmt.Errorf("repository: upsert threshold %s: %w", name, err)
		}
	}
	return nil
}

func sortedNames(values map[string]float64) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
