package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner starts transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// TxOutcome is the terminal state of a unit of work.
type TxOutcome int

const (
	TxRolledBack TxOutcome = iota
	TxCommitted
)

func (o TxOutcome) String() string {
	if o == TxCommitted {
		return "committed"
	}
	return "rolled_back"
}

// WithTx runs fn inside a transaction. It commits only when fn returns nil,
// and rolls back on error, panic, or context cancellation. Panics are rethrown.
//
//	outcome, err := db.WithTx(ctx, pool, nil, func(ctx context.Context, tx db.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, b Beginner, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (outcome TxOutcome, err error) {
	tx, err := b.BeginTx(ctx, opts)
	if err != nil {
		return TxRolledBack, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			// database/sql already rolled back if ctx was cancelled.
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			outcome = TxRolledBack
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit: %w", err)
			outcome = TxRolledBack
			return
		}
		outcome = TxCommitted
	}()

	err = fn(ctx, tx)
	return TxRolledBack, err
}
