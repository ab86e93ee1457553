package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserCreate_Success(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(code,\s*name,\s*passcode\).*RETURNING\s+created_at$`).
		WithArgs("11111", "Ann", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	u := &models.User{Code: "11111", Name: "Ann", PasscodeHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	require.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("11111", "Ann", "hash").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Code: "11111", Name: "Ann", PasscodeHash: "hash"})
	require.ErrorIs(t, err, models.ErrCodeAlreadyRegistered)
}

func TestUserGetByCode(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT\s+code,\s*name,\s*passcode,\s*created_at\s+FROM\s+users\s+WHERE\s+code\s*=\s*\$1$`).
		WithArgs("11111").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "passcode", "created_at"}).
			AddRow("11111", "Ann", "hash", now))

	u, err := repo.GetByCode(context.Background(), "11111")
	require.NoError(t, err)
	require.Equal(t, "Ann", u.Name)
	require.Equal(t, "hash", u.PasscodeHash)
}

func TestUserGetByCode_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(`SELECT`).WithArgs("99999").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "99999")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserGetByCode_TransientError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(`SELECT`).WithArgs("11111").WillReturnError(&pq.Error{Code: "08006"})

	_, err := repo.GetByCode(context.Background(), "11111")
	require.ErrorIs(t, err, models.ErrTransient)
	require.Contains(t, err.Error(), "db error")
}

func TestUserDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectExec(`DELETE\s+FROM\s+users\s+WHERE\s+code\s*=\s*\$1`).
		WithArgs("11111").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Delete(context.Background(), "11111")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(context.DeadlineExceeded))
	require.True(t, IsTransient(&pq.Error{Code: "57P01"}))
	require.False(t, IsTransient(&pq.Error{Code: "23505"}))
	require.False(t, IsTransient(context.Canceled))
	require.False(t, IsTransient(errors.New("syntax")))
	require.False(t, IsTransient(nil))
}
