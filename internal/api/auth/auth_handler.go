package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/FACorreiaa/go-blogr-api/internal/api"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

const msgServerError = "an error occurred"

type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		authService: authService,
	}
}

// Register handles POST /accounts/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "email or username already taken")
		default:
			l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	api.Respond(w, r, http.StatusCreated, "user created", user)
}

// Login handles POST /accounts/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req types.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	resp, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "no user found")
			return
		}
		l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, msgServerError)
		return
	}

	api.Respond(w, r, http.StatusOK, "login successful", resp)
}

// ForgotPassword handles POST /accounts/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ForgotPassword"))

	var req types.ForgotPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.authService.ForgotPassword(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
		default:
			l.ErrorContext(ctx, "Forgot password failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	api.Respond(w, r, http.StatusOK, "email sent", nil)
}

// ResetPassword handles POST /accounts/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ResetPassword"))

	var req types.ResetPasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email is required")
		return
	}

	err := h.authService.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrInvalidOTP):
			api.Respond(w, r, http.StatusBadRequest, "invalid otp", map[string]string{
				"email": req.Email,
				"otp":   req.OTP,
			})
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
		default:
			l.ErrorContext(ctx, "Reset password failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	api.Respond(w, r, http.StatusOK, "password reset successfully", nil)
}
