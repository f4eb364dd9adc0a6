package service

import "errors"

// Validation failures. Callers map these to 400.
var (
	ErrValidation          = errors.New("validation failed")
	ErrPasswordsDoNotMatch = errors.New("passwords do not match")
)

var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")

	// ErrUserNotFound is returned by ForgotPassword for unknown emails.
	// It must be rendered exactly like success.
	ErrUserNotFound = errors.New("user not found")

	ErrEmailDeliveryFailed = errors.New("email delivery failed")
)

// ErrResetFailed wraps every reset-password failure. The specific reason
// (ErrNoActiveToken, ErrTokenMismatch, ErrTokenExpired, ErrUserNotFound)
// is wrapped alongside it.
var ErrResetFailed = errors.New("password reset failed")

var (
	ErrNoActiveToken = errors.New("no active reset token")
	ErrTokenMismatch = errors.New("reset token does not match")
	ErrTokenExpired  = errors.New("reset token expired")
)
