package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cvdreamjob/apiserver/internal/db"
	"github.com/cvdreamjob/apiserver/types"
)

// AccountRepository handles persistence for per-provider credential rows.
type AccountRepository struct {
	db db.DBTX
}

func NewAccountRepository(db db.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetCredential(ctx context.Context, userID, providerID string) (types.Credential, error) {
	const query = `
		SELECT id, "accountId", "providerId", "userId", password, "createdAt", "updatedAt"
		FROM account
		WHERE "userId" = $1 AND "providerId" = $2`
	var (
		cred     types.Credential
		password sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID, providerID).Scan(
		&cred.ID,
		&cred.AccountID,
		&cred.ProviderID,
		&cred.UserID,
		&password,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Credential{}, ErrNotFound
		}
		return types.Credential{}, err
	}
	cred.PasswordHash = password.String
	return cred, nil
}

func (r *AccountRepository) Create(ctx context.Context, cred types.Credential) (types.Credential, error) {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = cred.CreatedAt
	}
	password := sql.NullString{String: cred.PasswordHash, Valid: cred.PasswordHash != ""}

	const query = `
		INSERT INTO account (id, "accountId", "providerId", "userId", password, "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		cred.ID,
		cred.AccountID,
		cred.ProviderID,
		cred.UserID,
		password,
		cred.CreatedAt,
		cred.UpdatedAt,
	); err != nil {
		return types.Credential{}, err
	}
	return cred, nil
}

// UpdatePassword rotates the hash of the user's "credentials" account row.
// ErrNotFound means the user has no password login.
func (r *AccountRepository) UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error {
	const query = `
		UPDATE account
		SET password = $1,
			"updatedAt" = $2
		WHERE "userId" = $3 AND "providerId" = $4`
	result, err := r.db.ExecContext(ctx, query, passwordHash, updatedAt, userID, types.CredentialsProvider)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
