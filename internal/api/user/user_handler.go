package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-blogr-api/internal/api"
	"github.com/FACorreiaa/go-blogr-api/internal/api/auth"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetAccount(w http.ResponseWriter, r *http.Request)
	UpdateAccount(w http.ResponseWriter, r *http.Request)
	DeleteAccount(w http.ResponseWriter, r *http.Request)
	Follow(w http.ResponseWriter, r *http.Request)
	Unfollow(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// principal returns the authenticated user or writes 401.
func (h *HandlerImpl) principal(w http.ResponseWriter, r *http.Request) (*types.User, bool) {
	user, ok := auth.GetPrincipalFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication credentials were not provided")
	}
	return user, ok
}

func (h *HandlerImpl) writeError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		api.ErrorResponse(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, types.ErrConflict):
		api.ErrorResponse(w, r, http.StatusConflict, "username already taken")
	default:
		l.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "an error occurred")
	}
}

// GetAccount handles GET /accounts/account.
func (h *HandlerImpl) GetAccount(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "GetAccount"))
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetAccount(r.Context(), principal)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, "success", user)
}

// UpdateAccount handles PUT /accounts/account. Absent fields are left as
// they are.
func (h *HandlerImpl) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "UpdateAccount"))
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var params types.UpdateAccountParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateAccount(r.Context(), principal, params)
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, "account updated", user)
}

// DeleteAccount handles DELETE /accounts/account.
func (h *HandlerImpl) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "DeleteAccount"))
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), principal); err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusNoContent, "account deleted", nil)
}

// Follow handles GET /accounts/follow/{username}.
func (h *HandlerImpl) Follow(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Follow"))
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Follow(r.Context(), principal, chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, "followed successfully", user)
}

// Unfollow handles GET /accounts/unfollow/{username}.
func (h *HandlerImpl) Unfollow(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("HandlerImpl", "Unfollow"))
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Unfollow(r.Context(), principal, chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	api.Respond(w, r, http.StatusOK, "unfollowed successfully", user)
}
