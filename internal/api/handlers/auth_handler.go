package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/api/middleware"
	"github.com/ecogen/ecogen/backend/internal/application/services"
	"github.com/ecogen/ecogen/backend/internal/domain/entities"
)

// SessionRegistry is the workspace registry surface the auth endpoints use
type SessionRegistry interface {
	SignUp(ctx context.Context, email, password string, fields services.ProfileFields) (*entities.User, error)
	SignIn(ctx context.Context, email, password, location string) (string, *services.Workspace, error)
	SignOut(ctx context.Context, token string) error
}

// AuthHandler handles sign-up, sign-in and sign-out
type AuthHandler struct {
	registry SessionRegistry
	logger   zerolog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(registry SessionRegistry, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		registry: registry,
		logger:   logger.With().Str("handler", "auth").Logger(),
	}
}

// SignUpRequest is the body of POST /api/auth/sign-up
type SignUpRequest struct {
	Name     *string `json:"name" validate:"omitempty,trimmed_min=2"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"required,role"`
	Location string  `json:"location" validate:"required,trimmed_min=3"`
}

// SignInRequest is the body of POST /api/auth/sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Location string `json:"location" validate:"required,trimmed_min=3"`
}

// SignInResponse carries the session token and the initial dashboard state
type SignInResponse struct {
	Token      string                  `json:"token"`
	User       *entities.User          `json:"user"`
	Facilities services.FacilityResult `json:"facilities"`
}

// SignUp handles POST /api/auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeForm(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}

	user, err := h.registry.SignUp(r.Context(), req.Email, req.Password, services.ProfileFields{
		Name:     req.Name,
		Role:     entities.Role(req.Role),
		Location: req.Location,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"user": user,
	})
}

// SignIn handles POST /api/auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeForm(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	token, ws, err := h.registry.SignIn(r.Context(), req.Email, req.Password, req.Location)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SignInResponse{
		Token:      token,
		User:       ws.Session.Identity(),
		Facilities: ws.Facilities.Snapshot(),
	})
}

// SignOut handles POST /api/auth/sign-out. It succeeds without a token.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.registry.SignOut(r.Context(), token); err != nil {
		h.logger.Warn().Err(err).Msg("sign out did not complete cleanly")
		respondWithAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
