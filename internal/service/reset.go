package service

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/fitmeta/fitmeta-api/internal/crypto"
	"github.com/fitmeta/fitmeta-api/internal/model"
)

// DefaultResetTokenTTL is how long a reset token stays valid after issuance.
const DefaultResetTokenTTL = time.Hour

// resetTokenRepository is the part of UserRepository the reset store writes to.
type resetTokenRepository interface {
	SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id, digest string) (bool, error)
	CompleteReset(ctx context.Context, id, digest, passwordHash string) (bool, error)
}

// ResetTokenStore issues and consumes single-use password reset tokens.
// Only the SHA-256 digest of a token is persisted.
type ResetTokenStore struct {
	users resetTokenRepository
	ttl   time.Duration
	now   func() time.Time
}

// ResetTokenOption configures a ResetTokenStore.
type ResetTokenOption func(*ResetTokenStore)

// WithClock overrides the clock used for issuance and expiry checks.
func WithClock(now func() time.Time) ResetTokenOption {
	return func(s *ResetTokenStore) {
		s.now = now
	}
}

// NewResetTokenStore creates a ResetTokenStore whose tokens live for ttl.
func NewResetTokenStore(users resetTokenRepository, ttl time.Duration, opts ...ResetTokenOption) (*ResetTokenStore, error) {
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if ttl <= 0 {
		return nil, errors.New("reset token ttl must be positive")
	}

	s := &ResetTokenStore{users: users, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueResetToken generates a new token for user, replacing any previous one,
// and returns the plaintext. user is updated to reflect the stored state.
func (s *ResetTokenStore) IssueResetToken(ctx context.Context, user *model.User) (string, error) {
	token, err := crypto.GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_TOKEN_ISSUE_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	digest := crypto.HashResetToken(token)
	expiry := s.now().UTC().Add(s.ttl)

	if err := s.users.SetResetToken(ctx, user.ID, digest, expiry); err != nil {
		return "", oops.Code("RESET_TOKEN_ISSUE_FAILED").
			With("operation", "store token").
			With("user_id", user.ID).
			Wrap(err)
	}

	user.SetResetToken(digest, expiry)
	return token, nil
}

// ValidateAndConsume checks presented against the token stored on user and
// clears it. The checks run in order: no token, mismatch, expiry. An expired
// token is cleared before ErrTokenExpired is returned. If another request
// consumed or replaced the token first, ErrNoActiveToken is returned.
//
// The password change itself is left to the caller; Redeem does both at once.
func (s *ResetTokenStore) ValidateAndConsume(ctx context.Context, user *model.User, presented string) error {
	digest, err := s.check(ctx, user, presented)
	if err != nil {
		return err
	}

	cleared, err := s.users.ClearResetToken(ctx, user.ID, digest)
	if err != nil {
		return oops.Code("RESET_TOKEN_CLEAR_FAILED").
			With("operation", "consume token").
			With("user_id", user.ID).
			Wrap(err)
	}
	user.ClearResetToken()
	if !cleared {
		return ErrNoActiveToken
	}

	return nil
}

// Redeem runs the same checks as ValidateAndConsume, then clears the token and
// stores passwordHash in a single conditional write. If the write fails the
// token stays valid.
func (s *ResetTokenStore) Redeem(ctx context.Context, user *model.User, presented, passwordHash string) error {
	digest, err := s.check(ctx, user, presented)
	if err != nil {
		return err
	}

	redeemed, err := s.users.CompleteReset(ctx, user.ID, digest, passwordHash)
	if err != nil {
		return oops.Code("RESET_TOKEN_REDEEM_FAILED").
			With("operation", "redeem token").
			With("user_id", user.ID).
			Wrap(err)
	}
	user.ClearResetToken()
	if !redeemed {
		return ErrNoActiveToken
	}

	user.PasswordHash = passwordHash
	return nil
}

// check returns the stored digest if presented matches it and has not expired.
func (s *ResetTokenStore) check(ctx context.Context, user *model.User, presented string) (string, error) {
	if !user.HasResetToken() {
		return "", ErrNoActiveToken
	}

	digest := *user.ResetTokenHash
	if !crypto.VerifyResetToken(presented, digest) {
		return "", ErrTokenMismatch
	}

	if s.now().After(*user.ResetTokenExpiry) {
		if _, err := s.users.ClearResetToken(ctx, user.ID, digest); err != nil {
			return "", oops.Code("RESET_TOKEN_CLEAR_FAILED").
				With("operation", "clear expired token").
				With("user_id", user.ID).
				Wrap(err)
		}
		user.ClearResetToken()
		return "", ErrTokenExpired
	}

	return digest, nil
}

// Discard clears token from user if it is still the stored one.
func (s *ResetTokenStore) Discard(ctx context.Context, user *model.User, token string) error {
	digest := crypto.HashResetToken(token)

	if _, err := s.users.ClearResetToken(ctx, user.ID, digest); err != nil {
		return oops.Code("RESET_TOKEN_CLEAR_FAILED").
			With("operation", "discard token").
			With("user_id", user.ID).
			Wrap(err)
	}

	if user.HasResetToken() && *user.ResetTokenHash == digest {
		user.ClearResetToken()
	}
	return nil
}
