package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/samber/oops"

	"github.com/fitmeta/fitmeta-api/internal/model"
)

// mysqlDuplicateEntry is the MySQL server error ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MySQLUserRepository implements UserStore using MySQL.
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQLUserRepository.
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// Create inserts a new user. A duplicate email returns ErrDuplicateEmail.
func (r *MySQLUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, first_name, last_name, email, password_hash, role, birth_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.FirstName, user.LastName, user.Email,
		user.PasswordHash, int16(user.Role), user.BirthDate, user.CreatedAt)
	if err != nil {
		if isDuplicateEntryError(err) {
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
func (r *MySQLUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanMySQLUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
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
func (r *MySQLUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	return requireRow(result)
}

// SetResetToken stores a reset token digest and expiry, replacing any previous token.
func (r *MySQLUserRepository) SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = ?, reset_token_expiry = ? WHERE id = ?`, digest, expiry, id)
	if err != nil {
		return oops.Code("USER_SET_RESET_TOKEN_FAILED").
			With("operation", "set reset token").
			With("id", id).
			Wrap(err)
	}
	return requireRow(result)
}

// ClearResetToken removes the reset token only if digest is still the stored one.
// It reports whether a row was changed.
func (r *MySQLUserRepository) ClearResetToken(ctx context.Context, id, digest string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL WHERE id = ? AND reset_token_hash = ?`,
		id, digest)
	if err != nil {
		return false, oops.Code("USER_CLEAR_RESET_TOKEN_FAILED").
			With("operation", "clear reset token").
			With("id", id).
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, oops.Code("USER_CLEAR_RESET_TOKEN_FAILED").With("id", id).Wrap(err)
	}
	return n == 1, nil
}

// CompleteReset stores passwordHash and clears the reset token in one statement,
// only if digest is still the stored token. It reports whether a row was changed.
func (r *MySQLUserRepository) CompleteReset(ctx context.Context, id, digest, passwordHash string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_token_hash = NULL, reset_token_expiry = NULL
		WHERE id = ? AND reset_token_hash = ?`,
		passwordHash, id, digest)
	if err != nil {
		return false, oops.Code("USER_COMPLETE_RESET_FAILED").
			With("operation", "complete password reset").
			With("id", id).
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, oops.Code("USER_COMPLETE_RESET_FAILED").With("id", id).Wrap(err)
	}
	return n == 1, nil
}

// requireRow maps zero affected rows to ErrUserNotFound. The connection is
// opened with clientFoundRows so unchanged matches still count.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanMySQLUser(row *sql.Row) (*model.User, error) {
	var (
		id, firstName, lastName, email, passwordHash string
		role                                         int16
		birthDate, createdAt                         time.Time
		resetHash                                    sql.NullString
		resetExpiry                                  sql.NullTime
	)
	if err := row.Scan(&id, &firstName, &lastName, &email, &passwordHash, &role,
		&birthDate, &createdAt, &resetHash, &resetExpiry); err != nil {
		return nil, err
	}

	var hashPtr *string
	var expiryPtr *time.Time
	if resetHash.Valid && resetExpiry.Valid {
		hashPtr, expiryPtr = &resetHash.String, &resetExpiry.Time
	}
	return newUser(id, firstName, lastName, email, passwordHash, role, birthDate, createdAt, hashPtr, expiryPtr), nil
}

// isDuplicateEntryError checks if a MySQL error is a duplicate entry error (code 1062).
func isDuplicateEntryError(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

var _ UserStore = (*MySQLUserRepository)(nil)
