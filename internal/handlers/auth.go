package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/logging"
	"github.com/bixapp/bix/internal/models"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Accounts AccountService
	Sessions SessionManager
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("authentication dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, tokens, err := h.Accounts.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		logger.Warn("login failed", "error", err)
		respondAuthError(ctx, w, err)
		return
	}

	logger.Info("user signed in", "userId", user.ID)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: newUserPayload(user), Tokens: tokens})
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("authentication dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, tokens, err := h.Accounts.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		logger.Warn("signup failed", "error", err)
		respondAuthError(ctx, w, err)
		return
	}

	logger.Info("user signed up", "userId", user.ID)
	respondJSON(ctx, w, http.StatusCreated, authResponse{User: newUserPayload(user), Tokens: tokens})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		respondError(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondError(ctx, w, status, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout revokes the supplied refresh token. Unknown tokens are not an error.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.Sessions != nil {
		h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me for an authenticated caller.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := logging.UserIDFromContext(ctx)
	if userID == "" || h.Accounts == nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.Accounts.Lookup(ctx, userID)
	if err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, meResponse{User: newUserPayload(user)})
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset requests.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil {
		logger.Error("authentication dependencies unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid password reset payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	exists, err := h.Accounts.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		respondAuthError(ctx, w, err)
		return
	}
	logger.Info("password reset requested", "accountExists", exists)

	respondJSON(ctx, w, http.StatusAccepted, map[string]string{
		"status": "If an account exists for that email, password reset instructions have been sent.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type authResponse struct {
	User   *userPayload         `json:"user,omitempty"`
	Tokens models.SessionTokens `json:"tokens"`
}

type meResponse struct {
	User *userPayload `json:"user"`
}

func newUserPayload(u models.User) *userPayload {
	return &userPayload{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}
