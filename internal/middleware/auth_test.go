package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialfeed/internal/services"

	"github.com/stretchr/testify/assert"
)

type stubValidator map[string]error

func (s stubValidator) ValidateToken(ctx context.Context, token string) (services.Session, error) {
	err, ok := s[token]
	if !ok {
		return services.Session{}, services.ErrInvalidToken
	}
	if err != nil {
		return services.Session{}, err
	}
	return services.Session{UserID: "user-" + token, TokenID: token}, nil
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(GetUserID(r.Context())))
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{
		"good":    nil,
		"revoked": services.ErrSessionRevoked,
		"broken":  errors.New("redis down"),
	}
	handler := AuthMiddleware(validator)(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Invalid authorization header format"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"revoked", "Bearer revoked", http.StatusUnauthorized, "signed out"},
		{"backend failure", "Bearer broken", http.StatusInternalServerError, "Failed to validate token"},
		{"valid", "Bearer good", http.StatusOK, "user-good"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	handler := OptionalAuthMiddleware(stubValidator{"good": nil})(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "user-good", rec.Body.String())
}
