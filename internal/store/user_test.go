package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestGetProfile_Found(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	q := `(?s)^\s*SELECT\s+id,\s*name,\s*email,\s*image\s+FROM\s+"user"\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "image"}).
			AddRow("u1", "Alice", "alice@example.com", "/avatars/a.png"))

	got, err := repo.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)
	require.NotNil(t, got.Image)
	require.Equal(t, "/avatars/a.png", *got.Image)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile_NullImage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM\s+"user"`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "image"}).
			AddRow("u1", "Alice", "alice@example.com", nil))

	got, err := repo.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Nil(t, got.Image)
}

func TestGetProfile_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM\s+"user"`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetProfile_DBError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM\s+"user"`).WithArgs("u1").WillReturnError(errors.New("db down"))

	_, err := repo.GetProfile(context.Background(), "u1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile_SetsNameImageAndTimestamp(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	image := "/avatars/new.png"

	q := `(?s)^\s*UPDATE\s+"user"\s+SET\s+name\s*=\s*\$1,\s*image\s*=\s*\$2,\s*"updatedAt"\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$4\s*$`
	mock.ExpectExec(q).
		WithArgs("Alice B", image, at, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProfile(context.Background(), "u1", "Alice B", &image, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile_ClearsImage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE\s+"user"`).
		WithArgs("Alice", nil, sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateProfile(context.Background(), "u1", "Alice", nil, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile_NoRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE\s+"user"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProfile(context.Background(), "ghost", "Nobody", nil, time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_ReturnsImage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	q := `(?s)^DELETE\s+FROM\s+"user"\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+image$`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"image"}).AddRow("/avatars/avatars/u1/x.png"))

	image, err := repo.Delete(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, image)
	require.Equal(t, "/avatars/avatars/u1/x.png", *image)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_Missing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`DELETE\s+FROM\s+"user"`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"image"}))

	_, err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestImage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	q := `(?s)^\s*SELECT\s+image\s+FROM\s+"user"\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"image"}).AddRow("/avatars/u1/a.png"))
	mock.ExpectQuery(q).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	image, err := repo.Image(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "/avatars/u1/a.png", *image)

	_, err = repo.Image(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
