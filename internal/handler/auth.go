package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fitmeta/fitmeta-api/internal/crypto"
	"github.com/fitmeta/fitmeta-api/internal/logging"
	"github.com/fitmeta/fitmeta-api/internal/metrics"
	"github.com/fitmeta/fitmeta-api/internal/middleware"
	"github.com/fitmeta/fitmeta-api/internal/model"
	"github.com/fitmeta/fitmeta-api/internal/service"
)

// AuthService is the account workflow behind the auth endpoints.
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.UserResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error)
	ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error
	GetProfile(claims *crypto.Claims) (model.ProfileResponse, error)
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service AuthService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. m may be nil.
func NewAuthHandler(svc AuthService, m *metrics.Metrics, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{service: svc, metrics: m, logger: logger}
}

// HandleRegister handles POST /api/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeJSON(w, r, &req) {
		h.metrics.RecordAuth("register", metrics.OutcomeInvalid)
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}

	h.metrics.RecordAuth("register", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusCreated, resp)
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		h.metrics.RecordAuth("login", metrics.OutcomeInvalid)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}

	h.metrics.RecordAuth("login", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, resp)
}

// HandleForgotPassword handles POST /api/auth/forgot-password requests.
// Apart from malformed input, every outcome gets the same 200 response.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		h.metrics.RecordAuth("forgot_password", metrics.OutcomeInvalid)
		return
	}

	err := h.service.ForgotPassword(r.Context(), req)
	switch {
	case err == nil:
		h.metrics.RecordAuth("forgot_password", metrics.OutcomeSuccess)
	case errors.Is(err, service.ErrValidation):
		h.writeError(w, r, "forgot_password", err)
		return
	case errors.Is(err, service.ErrUserNotFound):
		h.metrics.RecordAuth("forgot_password", metrics.OutcomeNotFound)
	default:
		h.metrics.RecordAuth("forgot_password", metrics.OutcomeError)
		logging.LogError(r.Context(), h.logger, "forgot password failed", err)
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: msgResetRequested})
}

// HandleResetPassword handles POST /api/auth/reset-password requests.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		h.metrics.RecordAuth("reset_password", metrics.OutcomeInvalid)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		if errors.Is(err, service.ErrResetFailed) {
			h.logger.InfoContext(r.Context(), "password reset rejected", "reason", err.Error())
		}
		h.writeError(w, r, "reset_password", err)
		return
	}

	h.metrics.RecordAuth("reset_password", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: msgResetDone})
}

// HandleProfile handles GET /api/auth/profile requests.
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	resp, err := h.service.GetProfile(claims)
	if err != nil {
		h.writeError(w, r, "profile", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	m := mapError(err)
	if m.status == http.StatusInternalServerError {
		logging.LogError(r.Context(), h.logger, operation+" failed", err)
	}
	h.metrics.RecordAuth(operation, m.outcome)
	writeJSON(w, m.status, errorResponse(m.message))
}
