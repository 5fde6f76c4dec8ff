package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cvdreamjob/apiserver/internal/db"
)

var errNestedTx = errors.New("store: nested transactions are not supported")

// Store hands out repositories bound either to the shared pool or to one
// transaction. Repositories obtained from a transaction-scoped Store only
// see that transaction.
type Store struct {
	pool *sql.DB
	conn db.DBTX
}

// New constructs a Store over the process-wide pool.
func New(pool *sql.DB) *Store {
	return &Store{pool: pool, conn: pool}
}

func (s *Store) Users() *UserRepository       { return NewUserRepository(s.conn) }
func (s *Store) Accounts() *AccountRepository { return NewAccountRepository(s.conn) }
func (s *Store) Sessions() *SessionRepository { return NewSessionRepository(s.conn) }

// Ping verifies a pooled connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.PingContext(ctx)
}

// WithTx runs fn with a transaction-scoped Store. fn's error rolls the
// transaction back; a nil error commits it.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) (db.TxOutcome, error) {
	if s.pool == nil {
		return db.TxRolledBack, errNestedTx
	}
	return db.WithTx(ctx, s.pool, nil, func(ctx context.Context, tx db.DBTX) error {
		return fn(&Store{conn: tx})
	})
}
