package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/fitmeta/fitmeta-api/internal/crypto"
	"github.com/fitmeta/fitmeta-api/internal/email"
	"github.com/fitmeta/fitmeta-api/internal/model"
	"github.com/fitmeta/fitmeta-api/internal/repository"
)

// UserRepository persists users. Implementations return repository.ErrUserNotFound
// and repository.ErrDuplicateEmail.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id, digest string) (bool, error)
	CompleteReset(ctx context.Context, id, digest, passwordHash string) (bool, error)
}

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(subjectID, email, role string) (string, time.Time, error)
}

// Deps holds the collaborators of AuthService. All fields except Logger are required.
type Deps struct {
	Users        UserRepository
	Hasher       crypto.PasswordHasher
	Tokens       TokenIssuer
	Resets       *ResetTokenStore
	Mailer       email.Sender
	ResetURLBase string
	Logger       *slog.Logger
}

// AuthService handles registration, login and password reset.
type AuthService struct {
	users     UserRepository
	hasher    crypto.PasswordHasher
	tokens    TokenIssuer
	resets    *ResetTokenStore
	mailer    email.Sender
	resetURL  *url.URL
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(deps Deps) (*AuthService, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("user repository is required")
	case deps.Hasher == nil:
		return nil, errors.New("password hasher is required")
	case deps.Tokens == nil:
		return nil, errors.New("token issuer is required")
	case deps.Resets == nil:
		return nil, errors.New("reset token store is required")
	case deps.Mailer == nil:
		return nil, errors.New("email sender is required")
	}

	resetURL, err := url.Parse(deps.ResetURLBase)
	if err != nil || resetURL.Scheme == "" || resetURL.Host == "" {
		return nil, fmt.Errorf("reset url base %q must be an absolute URL", deps.ResetURLBase)
	}

	// Unknown-user logins verify against this so both paths cost one hash.
	dummyHash, err := deps.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create dummy hash: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:     deps.Users,
		hasher:    deps.Hasher,
		tokens:    deps.Tokens,
		resets:    deps.Resets,
		mailer:    deps.Mailer,
		resetURL:  resetURL,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// Register validates req, creates the account and returns it without credentials.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.UserResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)

	if err := validateRegister(req, s.now()); err != nil {
		return model.UserResponse{}, err
	}

	// The unique index decides; this lookup only avoids hashing for known duplicates.
	_, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return model.UserResponse{}, ErrEmailAlreadyRegistered
	case !errors.Is(err, repository.ErrUserNotFound):
		return model.UserResponse{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.UserResponse{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		BirthDate:    req.BirthDate.Time,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.UserResponse{}, ErrEmailAlreadyRegistered
		}
		return model.UserResponse{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role.String())
	return model.NewUserResponse(user), nil
}

// Login verifies credentials and returns a signed bearer token.
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	addr := NormalizeEmail(req.Email)

	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Verify(req.Password, s.dummyHash)
			return model.LoginResponse{}, ErrInvalidCredentials
		}
		return model.LoginResponse{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return model.LoginResponse{}, ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Role.String())
	if err != nil {
		return model.LoginResponse{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return model.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// upgradeHash replaces a legacy or outdated hash. Failure does not fail the login.
func (s *AuthService) upgradeHash(ctx context.Context, user *model.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID)
}

// ForgotPassword issues a reset token and emails the reset link.
// It returns ErrUserNotFound for unknown emails; callers must not reveal that.
// If delivery fails the new token is discarded and ErrEmailDeliveryFailed is returned.
func (s *AuthService) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) error {
	addr := NormalizeEmail(req.Email)
	if err := validateEmail(addr); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := s.resets.IssueResetToken(ctx, user)
	if err != nil {
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "issue reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	msg := email.ResetPasswordMessage(user.Email, user.FirstName, s.resetLink(token, user.Email))
	if err := s.mailer.Send(ctx, msg); err != nil {
		if discardErr := s.resets.Discard(ctx, user, token); discardErr != nil {
			s.logger.ErrorContext(ctx, "discard undelivered reset token", "user_id", user.ID, "error", discardErr)
		}
		return oops.Code("AUTH_FORGOT_PASSWORD_FAILED").
			With("operation", "send reset email").
			With("user_id", user.ID).
			Wrap(fmt.Errorf("%w: %w", ErrEmailDeliveryFailed, err))
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// resetLink appends token and email as query parameters to the configured base URL.
func (s *AuthService) resetLink(token, addr string) string {
	u := *s.resetURL
	q := u.Query()
	q.Set("token", token)
	q.Set("email", addr)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResetPassword sets a new password if req carries the user's current reset token.
// All token and lookup failures wrap ErrResetFailed.
func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	if req.NewPassword != req.ConfirmNewPassword {
		return ErrPasswordsDoNotMatch
	}
	if err := validatePassword("new password", req.NewPassword); err != nil {
		return err
	}
	if req.Token == "" {
		return validationError("token is required")
	}

	addr := NormalizeEmail(req.Email)
	if err := validateEmail(addr); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: %w", ErrResetFailed, ErrUserNotFound)
		}
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	// Hashed before the token is touched so a hashing failure leaves it usable.
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			With("user_id", user.ID).
			Wrap(err)
	}

	if err := s.resets.Redeem(ctx, user, req.Token, hash); err != nil {
		if errors.Is(err, ErrNoActiveToken) || errors.Is(err, ErrTokenMismatch) || errors.Is(err, ErrTokenExpired) {
			return fmt.Errorf("%w: %w", ErrResetFailed, err)
		}
		return oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "redeem reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	return nil
}

// GetProfile returns the identity carried by validated token claims.
func (s *AuthService) GetProfile(claims *crypto.Claims) (model.ProfileResponse, error) {
	if claims == nil || claims.Subject == "" {
		return model.ProfileResponse{}, ErrInvalidCredentials
	}
	return model.ProfileResponse{ID: claims.Subject, Email: claims.Email}, nil
}
