package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cvdreamjob/apiserver/internal/db"
	"github.com/cvdreamjob/apiserver/types"
)

// SessionRepository reads sessions written by the auth provider.
type SessionRepository struct {
	db db.DBTX
}

func NewSessionRepository(db db.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByToken returns the session for token regardless of expiry.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (types.Session, error) {
	const query = `
		SELECT id, token, "userId", "expiresAt"
		FROM session
		WHERE token = $1`
	var s types.Session
	err := r.db.QueryRowContext(ctx, query, token).Scan(&s.ID, &s.Token, &s.UserID, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return s, nil
}

func (r *SessionRepository) Create(ctx context.Context, s types.Session) error {
	now := time.Now().UTC()
	const query = `
		INSERT INTO session (id, token, "userId", "expiresAt", "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.Token, s.UserID, s.ExpiresAt, now, now)
	return err
}
