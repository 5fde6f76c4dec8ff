package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cvdreamjob/apiserver/internal/db"
	"github.com/cvdreamjob/apiserver/types"
)

// UserRepository handles persistence for the "user" table.
type UserRepository struct {
	db db.DBTX
}

func NewUserRepository(db db.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetProfile projects the public profile columns only.
func (r *UserRepository) GetProfile(ctx context.Context, id string) (types.Profile, error) {
	const query = `
		SELECT id, name, email, image
		FROM "user"
		WHERE id = $1`
	var (
		profile types.Profile
		image   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Email,
		&image,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	profile.Image = nullStringPtr(image)
	return profile, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT id, name, email, "emailVerified", image, "createdAt", "updatedAt"
		FROM "user"
		WHERE id = $1`
	var (
		user  types.User
		image sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerified,
		&image,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Image = nullStringPtr(image)
	return user, nil
}

// Create inserts a user row. Users are normally created by the auth provider
// at sign-up; this is used for seeding.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	const query = `
		INSERT INTO "user" (id, name, email, "emailVerified", image, "createdAt", "updatedAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.EmailVerified,
		ptrNullString(user.Image),
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Image returns the stored image reference of user id.
func (r *UserRepository) Image(ctx context.Context, id string) (*string, error) {
	const query = `SELECT image FROM "user" WHERE id = $1`
	var image sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return nullStringPtr(image), nil
}

// UpdateProfile replaces name and image and stamps updatedAt.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, name string, image *string, updatedAt time.Time) error {
	const query = `
		UPDATE "user"
		SET name = $1,
			image = $2,
			"updatedAt" = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, name, ptrNullString(image), updatedAt, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes the user row and returns its image reference. Dependent
// account and session rows go with it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) (*string, error) {
	const query = `DELETE FROM "user" WHERE id = $1 RETURNING image`
	var image sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return nullStringPtr(image), nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
