package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"socialfeed/internal/middleware"
	"socialfeed/internal/models"
	"socialfeed/internal/repository"
	"socialfeed/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

const (
	oauthSessionName = "socialfeed_oauth"
	oauthStateKey    = "state"
	oauthStateMaxAge = 600
)

// Authenticator signs users in and out
type Authenticator interface {
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*services.SignInResult, error)
	OAuthEnabled() bool
	OAuthURL(state string) (string, error)
	CompleteOAuth(ctx context.Context, code string) (*services.SignInResult, error)
	SignOut(ctx context.Context, session services.Session) error
}

// UserLookup loads a user by id
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthHandler handles sign-in HTTP requests
type AuthHandler struct {
	auth       Authenticator
	users      UserLookup
	cookies    sessions.Store
	successURL string
}

// NewAuthHandler creates a new auth handler. When successURL is set, a
// completed federated sign-in redirects there with the token in the fragment.
func NewAuthHandler(auth Authenticator, users UserLookup, cookies sessions.Store, successURL string) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		users:      users,
		cookies:    cookies,
		successURL: successURL,
	}
}

// OTPRequest represents the request body for requesting a code
type OTPRequest struct {
	Email string `json:"email"`
}

// OTPVerifyRequest represents the request body for verifying a code
type OTPVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RequestOTP handles POST /api/v1/auth/otp
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		respondError(w, "email is required", http.StatusBadRequest)
		return
	}

	if err := h.auth.RequestOTP(r.Context(), req.Email); err != nil {
		respondServiceError(w, err, "", "Failed to send sign-in code")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// VerifyOTP handles POST /api/v1/auth/otp/verify
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Code == "" {
		respondError(w, "email and code are required", http.StatusBadRequest)
		return
	}

	result, err := h.auth.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		respondServiceError(w, err, "", "Failed to verify sign-in code")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// StartOAuth handles GET /api/v1/auth/google
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	if !h.auth.OAuthEnabled() {
		respondError(w, services.ErrOAuthDisabled.Error(), http.StatusNotFound)
		return
	}

	state := uuid.New().String()
	authURL, err := h.auth.OAuthURL(state)
	if err != nil {
		respondServiceError(w, err, "", "Failed to build consent URL")
		return
	}

	sess, _ := h.cookies.Get(r, oauthSessionName)
	sess.Values[oauthStateKey] = state
	sess.Options.MaxAge = oauthStateMaxAge
	sess.Options.HttpOnly = true
	sess.Options.SameSite = http.SameSiteLaxMode
	if err := sess.Save(r, w); err != nil {
		log.Error().Err(err).Msg("Failed to save oauth state")
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback handles GET /api/v1/auth/google/callback
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sess, _ := h.cookies.Get(r, oauthSessionName)
	expected, _ := sess.Values[oauthStateKey].(string)
	delete(sess.Values, oauthStateKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		log.Warn().Err(err).Msg("Failed to clear oauth state")
	}

	if expected == "" || q.Get("state") != expected {
		respondError(w, services.ErrOAuthStateMatch.Error(), http.StatusBadRequest)
		return
	}
	if reason := q.Get("error"); reason != "" {
		respondError(w, "sign-in was not completed: "+reason, http.StatusUnauthorized)
		return
	}
	if q.Get("code") == "" {
		respondError(w, "code is required", http.StatusBadRequest)
		return
	}

	result, err := h.auth.CompleteOAuth(r.Context(), q.Get("code"))
	if err != nil {
		respondServiceError(w, err, "", "Federated sign-in failed")
		return
	}

	if h.successURL != "" {
		target, err := url.Parse(h.successURL)
		if err == nil {
			target.Fragment = url.Values{"token": {result.Token}}.Encode()
			http.Redirect(w, r, target.String(), http.StatusFound)
			return
		}
		log.Warn().Err(err).Str("url", h.successURL).Msg("Invalid success URL, responding with JSON")
	}
	respondJSON(w, http.StatusOK, result)
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		respondError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.auth.SignOut(r.Context(), session); err != nil {
		respondServiceError(w, err, session.UserID, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := middleware.SessionFrom(ctx)

	user, err := h.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, "User not found", http.StatusNotFound)
			return
		}
		respondServiceError(w, err, session.UserID, "Failed to get user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":    user,
		"session": session,
	})
}
