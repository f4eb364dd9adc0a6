package handler

import (
	"errors"
	"net/http"

	"github.com/fitmeta/fitmeta-api/internal/metrics"
	"github.com/fitmeta/fitmeta-api/internal/service"
)

// Outward messages. Reset failures share one message whatever the reason.
const (
	msgInternal       = "internal server error"
	msgResetFailed    = "invalid or expired reset token"
	msgResetRequested = "if the email is registered, a reset link has been sent"
	msgResetDone      = "password has been reset"
)

// errorMapping is the outward form of a service error.
type errorMapping struct {
	status  int
	message string
	outcome string
}

// mapError translates service errors into HTTP responses. Anything it does
// not recognise is a dependency failure and is reported as a 500.
func mapError(err error) errorMapping {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrPasswordsDoNotMatch):
		return errorMapping{http.StatusBadRequest, err.Error(), metrics.OutcomeInvalid}
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return errorMapping{http.StatusConflict, service.ErrEmailAlreadyRegistered.Error(), metrics.OutcomeConflict}
	case errors.Is(err, service.ErrInvalidCredentials):
		return errorMapping{http.StatusUnauthorized, service.ErrInvalidCredentials.Error(), metrics.OutcomeDenied}
	case errors.Is(err, service.ErrResetFailed):
		return errorMapping{http.StatusBadRequest, msgResetFailed, metrics.OutcomeDenied}
	default:
		return errorMapping{http.StatusInternalServerError, msgInternal, metrics.OutcomeError}
	}
}
