package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AnshRaj112/soconnect-backend/internal/dbx"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByCode(ctx context.Context, code string) (*models.User, error)
	Delete(ctx context.Context, code string) (int64, error)
}

type PostgresUserRepository struct {
	db dbx.DBTX
}

func NewPostgresUserRepository(db dbx.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create inserts the user and fills CreatedAt. A taken code yields models.ErrCodeAlreadyRegistered.
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (code, name, passcode)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, user.Code, user.Name, user.PasscodeHash).Scan(&user.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return models.ErrCodeAlreadyRegistered
		}
		return wrapDBError(err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT code, name, passcode, created_at FROM users WHERE code = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(&user.Code, &user.Name, &user.PasscodeHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, wrapDBError(err)
	}
	return user, nil
}

// Delete removes the user row and returns the number of rows deleted.
func (r *PostgresUserRepository) Delete(ctx context.Context, code string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE code = $1`, code)
	if err != nil {
		return 0, wrapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError(err)
	}
	return n, nil
}
