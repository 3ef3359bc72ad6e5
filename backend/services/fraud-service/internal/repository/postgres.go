package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; it runs on either the pool or a transaction.
type queries struct {
	q querier
}

// PostgresStore is the PostgreSQL record store.
type PostgresStore struct {
	queries
	db *sql.DB
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{queries: queries{q: db}, db: db}
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("repository: rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&queries{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
