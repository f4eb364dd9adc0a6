package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fitmeta/fitmeta-api/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserStore is the persistence contract shared by the PostgreSQL and MySQL backends.
// Emails are expected to be normalised by the caller.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id, digest string) (bool, error)
	CompleteReset(ctx context.Context, id, digest, passwordHash string) (bool, error)
}

const userColumns = `id, first_name, last_name, email, password_hash, role, birth_date,
		created_at, reset_token_hash, reset_token_expiry`

// newUser builds a model.User from scanned column values.
func newUser(id, firstName, lastName, email, passwordHash string, role int16,
	birthDate, createdAt time.Time, resetHash *string, resetExpiry *time.Time,
) *model.User {
	u := &model.User{
		ID:           id,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         model.Role(role),
		BirthDate:    birthDate.UTC(),
		CreatedAt:    createdAt.UTC(),
	}
	if resetHash != nil && resetExpiry != nil {
		u.SetResetToken(*resetHash, resetExpiry.UTC())
	}
	return u
}
