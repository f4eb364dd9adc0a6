package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitmeta/fitmeta-api/internal/model"
)

func newMySQLMock(t *testing.T) (sqlmock.Sqlmock, *MySQLUserRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewMySQLUserRepository(db)
}

func TestMySQLUserRepository_Create(t *testing.T) {
	u := testUser()

	t.Run("inserts user", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, int16(model.RoleStudent), u.BirthDate, u.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), u))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate entry", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice@example.com' for key 'users_email_unique'"})

		assert.ErrorIs(t, repo.Create(context.Background(), u), ErrDuplicateEmail)
	})

	t.Run("other error", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		mock.ExpectExec(`INSERT INTO users`).WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})

		err := repo.Create(context.Background(), u)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestMySQLUserRepository_GetByEmail(t *testing.T) {
	want := testUser()

	t.Run("found", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		expiry := time.Date(2026, time.January, 10, 9, 30, 0, 0, time.UTC)
		rows := sqlmock.NewRows(userColumnNames).AddRow(
			want.ID, want.FirstName, want.LastName, want.Email, want.PasswordHash, int64(3),
			want.BirthDate, want.CreatedAt, "digest", expiry,
		)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \?`).WithArgs("alice@example.com").WillReturnRows(rows)

		got, err := repo.GetByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, want.Email, got.Email)
		assert.Equal(t, model.RoleNutritionist, got.Role)
		require.True(t, got.HasResetToken())
		assert.Equal(t, "digest", *got.ResetTokenHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("null reset columns", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		rows := sqlmock.NewRows(userColumnNames).AddRow(
			want.ID, want.FirstName, want.LastName, want.Email, want.PasswordHash, int64(1),
			want.BirthDate, want.CreatedAt, nil, nil,
		)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).WillReturnRows(rows)

		got, err := repo.GetByEmail(context.Background(), "alice@example.com")
		require.NoError(t, err)
		assert.False(t, got.HasResetToken())
	})

	t.Run("not found", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock, repo := newMySQLMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).WillReturnError(errors.New("bad connection"))

		_, err := repo.GetByEmail(context.Background(), "alice@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})
}

func TestMySQLUserRepository_UpdatePassword(t *testing.T) {
	mock, repo := newMySQLMock(t)
	mock.ExpectExec(`UPDATE users SET password_hash = \? WHERE id = \?`).
		WithArgs("new-hash", "id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "id-1", "new-hash"), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepository_ResetToken(t *testing.T) {
	mock, repo := newMySQLMock(t)
	expiry := time.Date(2026, time.January, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE users SET reset_token_hash = \?, reset_token_expiry = \? WHERE id = \?`).
		WithArgs("digest", expiry, "id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL WHERE id = \? AND reset_token_hash = \?`).
		WithArgs("id-1", "digest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET reset_token_hash = NULL`).
		WithArgs("id-1", "digest").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetResetToken(context.Background(), "id-1", "digest", expiry))

	cleared, err := repo.ClearResetToken(context.Background(), "id-1", "digest")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = repo.ClearResetToken(context.Background(), "id-1", "digest")
	require.NoError(t, err)
	assert.False(t, cleared, "second clear must not report success")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserRepository_CompleteReset(t *testing.T) {
	mock, repo := newMySQLMock(t)

	mock.ExpectExec(`UPDATE users SET password_hash = \?, reset_token_hash = NULL, reset_token_expiry = NULL\s+WHERE id = \? AND reset_token_hash = \?`).
		WithArgs("new-hash", "id-1", "digest").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET password_hash = \?`).
		WithArgs("new-hash", "id-1", "digest").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE users SET password_hash = \?`).
		WithArgs("new-hash", "id-1", "digest").
		WillReturnError(errors.New("bad connection"))

	done, err := repo.CompleteReset(context.Background(), "id-1", "digest", "new-hash")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.CompleteReset(context.Background(), "id-1", "digest", "new-hash")
	require.NoError(t, err)
	assert.False(t, done, "a consumed token must not complete a second reset")

	done, err = repo.CompleteReset(context.Background(), "id-1", "digest", "new-hash")
	require.Error(t, err)
	assert.False(t, done)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateEntryError(t *testing.T) {
	assert.False(t, isDuplicateEntryError(nil))
	assert.False(t, isDuplicateEntryError(ErrUserNotFound))
	assert.False(t, isDuplicateEntryError(errors.New("Duplicate entry 'x' for key 'y'")))
	assert.True(t, isDuplicateEntryError(&mysql.MySQLError{Number: 1062}))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "file::memory:")
	assert.ErrorContains(t, err, "unsupported database driver")

	assert.ErrorContains(t, Migrate(context.Background(), nil, "sqlite"), "unsupported database driver")
}
