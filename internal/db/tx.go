package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/wishaday/internal/errors"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so every query
// function can run standalone or inside a unit of work.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction and commits it if fn returns nil.
// Any error from fn rolls the transaction back and is returned unchanged.
// A failure to begin or commit is reported as TRANSIENT: nothing fn wrote
// is visible and the caller may retry.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewTransient(err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return errors.NewTransient(err)
	}

	return nil
}
