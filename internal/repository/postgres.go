package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/fitmeta/fitmeta-api/internal/model"
)

// pgxQuerier is the subset of *pgxpool.Pool used by PostgresUserRepository.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUserRepository implements UserStore using PostgreSQL.
type PostgresUserRepository struct {
	pool pgxQuerier
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(pool pgxQuerier) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create inserts a new user. A unique violation on email returns ErrDuplicateEmail.
func (r *PostgresUserRepository) Create(ctx context.Context, user *model.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role, birth_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash,
		int16(user.Role), user.BirthDate, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateEmail
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves a user by their email address.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanPostgresUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// UpdatePassword overwrites the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetToken stores a reset token digest and expiry, replacing any previous token.
func (r *PostgresUserRepository) SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_token_expiry = $3 WHERE id = $1
	`, id, digest, expiry)
	if err != nil {
		return oops.Code("USER_SET_RESET_TOKEN_FAILED").
			With("operation", "set reset token").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearResetToken removes the reset token only if digest is still the stored one.
// It reports whether a row was changed.
func (r *PostgresUserRepository) ClearResetToken(ctx context.Context, id, digest string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL
		WHERE id = $1 AND reset_token_hash = $2
	`, id, digest)
	if err != nil {
		return false, oops.Code("USER_CLEAR_RESET_TOKEN_FAILED").
			With("operation", "clear reset token").
			With("id", id).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// CompleteReset stores passwordHash and clears the reset token in one statement,
// only if digest is still the stored token. It reports whether a row was changed.
func (r *PostgresUserRepository) CompleteReset(ctx context.Context, id, digest, passwordHash string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $3, reset_token_hash = NULL, reset_token_expiry = NULL
		WHERE id = $1 AND reset_token_hash = $2
	`, id, digest, passwordHash)
	if err != nil {
		return false, oops.Code("USER_COMPLETE_RESET_FAILED").
			With("operation", "complete password reset").
			With("id", id).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// scanPostgresUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanPostgresUser(row pgx.Row) (*model.User, error) {
	var (
		id, firstName, lastName, email, passwordHash string
		role                                         int16
		birthDate, createdAt                         time.Time
		resetHash                                    *string
		resetExpiry                                  *time.Time
	)
	if err := row.Scan(&id, &firstName, &lastName, &email, &passwordHash, &role,
		&birthDate, &createdAt, &resetHash, &resetExpiry); err != nil {
		return nil, err
	}
	return newUser(id, firstName, lastName, email, passwordHash, role, birthDate, createdAt, resetHash, resetExpiry), nil
}

var _ UserStore = (*PostgresUserRepository)(nil)
