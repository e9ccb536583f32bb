package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Cheertaboi/meal-checkout-service/internal/repository"
)

// ErrConcurrentUpdate is returned when a transaction kept losing to
// concurrent writers on the same rows.
var ErrConcurrentUpdate = errors.New("concurrent update, please retry")

const maxTxAttempts = 3

// withTx runs fn inside a transaction and commits if fn succeeds. Any error
// rolls the transaction back. Serialization failures and deadlocks rerun fn
// in a fresh transaction, up to maxTxAttempts times, so fn must not keep
// state between calls that the rollback would invalidate.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, db, opts, fn)
		if err == nil || !repository.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrConcurrentUpdate, err)
}

func runTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}
	committed = true
	return nil
}
