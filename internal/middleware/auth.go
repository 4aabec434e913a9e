package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"socialfeed/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const sessionKey contextKey = "session"

// TokenValidator resolves a bearer token to a session
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (services.Session, error)
}

// AuthMiddleware rejects requests without a valid session token
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if errors.Is(err, ErrMissingToken) {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			if err != nil {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			session, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				respondTokenError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// OptionalAuthMiddleware attaches a session when a valid token is presented and passes through otherwise
func OptionalAuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err == nil {
				if session, err := validator.ValidateToken(r.Context(), token); err == nil {
					r = r.WithContext(WithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	ErrMissingToken   = errors.New("authorization header required")
	ErrMalformedToken = errors.New("invalid authorization header format")
)

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMalformedToken
	}
	return parts[1], nil
}

// WithSession stores session in ctx
func WithSession(ctx context.Context, session services.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFrom extracts the session from context
func SessionFrom(ctx context.Context) (services.Session, bool) {
	session, ok := ctx.Value(sessionKey).(services.Session)
	return session, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	session, _ := SessionFrom(ctx)
	return session.UserID
}

func respondTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionRevoked):
		respondError(w, "Session has been signed out", http.StatusUnauthorized)
	case errors.Is(err, services.ErrInvalidToken):
		respondError(w, "Invalid token", http.StatusUnauthorized)
	default:
		log.Error().Err(err).Msg("Failed to validate token")
		respondError(w, "Failed to validate token", http.StatusInternalServerError)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
