package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"time"

	"socialfeed/internal/cache"
	"socialfeed/internal/metrics"
	"socialfeed/internal/models"
	"socialfeed/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	codeLength      = 6
	codeChars       = "0123456789"
	defaultUsername = "default_username"
	// GoogleUserInfoURL is the OpenID Connect userinfo endpoint
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var whitespace = regexp.MustCompile(`\s+`)

// CodeStore keeps pending one-time codes
type CodeStore interface {
	Save(ctx context.Context, email, code string, ttl time.Duration) error
	Consume(ctx context.Context, email string) (string, error)
}

// RevocationStore records signed-out sessions
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// CacheInvalidator drops cached data derived from the user table
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AuthOptions configures AuthService
type AuthOptions struct {
	JWTSecret string
	JWTTTL    time.Duration
	OTPTTL    time.Duration
	OTPRate   rate.Limit
	OTPBurst  int
	// OAuth is nil when federated sign-in is disabled
	OAuth       *oauth2.Config
	UserInfoURL string
	// MaxTrackedEmails caps the number of per-address OTP limiters held in memory
	MaxTrackedEmails int
}

// SignInResult is returned by every successful sign-in
type SignInResult struct {
	Token   string       `json:"token"`
	Session Session      `json:"session"`
	User    *models.User `json:"user"`
}

// AuthService issues and validates sessions
type AuthService struct {
	users       UserStore
	codes       CodeStore
	revocations RevocationStore
	mailer      Mailer
	sessions    *SessionProvider
	profiles    CacheInvalidator
	opts        AuthOptions
	now         func() time.Time

	limitersMu sync.Mutex
	limiters   *expirable.LRU[string, *rate.Limiter]
}

// NewAuthService creates a new auth service. profiles may be nil.
func NewAuthService(
	users UserStore,
	codes CodeStore,
	revocations RevocationStore,
	mailer Mailer,
	sessions *SessionProvider,
	profiles CacheInvalidator,
	opts AuthOptions,
) *AuthService {
	if opts.JWTTTL <= 0 {
		opts.JWTTTL = 7 * 24 * time.Hour
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.OTPRate <= 0 {
		opts.OTPRate = rate.Every(time.Minute)
	}
	if opts.OTPBurst <= 0 {
		opts.OTPBurst = 3
	}
	if opts.UserInfoURL == "" {
		opts.UserInfoURL = GoogleUserInfoURL
	}
	if opts.MaxTrackedEmails <= 0 {
		opts.MaxTrackedEmails = 10000
	}
	return &AuthService{
		users:       users,
		codes:       codes,
		revocations: revocations,
		mailer:      mailer,
		sessions:    sessions,
		profiles:    profiles,
		opts:        opts,
		now:         time.Now,
		limiters:    expirable.NewLRU[string, *rate.Limiter](opts.MaxTrackedEmails, nil, limiterTTL(opts)),
	}
}

type sessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueSession signs a session token for user
func (s *AuthService) IssueSession(user *models.User) (string, Session, error) {
	now := s.now()
	session := Session{
		UserID:    user.ID,
		Email:     user.Email,
		TokenID:   uuid.New().String(),
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(s.opts.JWTTTL).Truncate(time.Second),
	}
	claims := sessionClaims{
		UserID: session.UserID,
		Email:  session.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", Session{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, session, nil
}

// ValidateToken parses a session token and rejects revoked sessions
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (Session, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.ID == "" {
		return Session{}, ErrInvalidToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, ErrSessionRevoked
	}

	session := Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// SignOut revokes the session and notifies subscribers
func (s *AuthService) SignOut(ctx context.Context, session Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if err := s.revocations.Revoke(ctx, session.TokenID, ttl); err != nil {
		return err
	}
	s.sessions.Publish(SessionEvent{Type: SessionSignedOut, Session: session})
	log.Info().Str("user_id", session.UserID).Msg("User signed out")
	return nil
}

// limiterTTL is how long an idle limiter needs to refill its burst; an
// evicted limiter is recreated full so nothing is lost after that.
func limiterTTL(opts AuthOptions) time.Duration {
	ttl := time.Duration(float64(opts.OTPBurst) / float64(opts.OTPRate) * float64(time.Second))
	if ttl < opts.OTPTTL {
		ttl = opts.OTPTTL
	}
	return ttl
}

func (s *AuthService) limiterFor(email string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	if l, ok := s.limiters.Get(email); ok {
		return l
	}
	l := rate.NewLimiter(s.opts.OTPRate, s.opts.OTPBurst)
	s.limiters.Add(email, l)
	return l
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// RequestOTP emails a one-time sign-in code to email
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return err
	}
	if !s.limiterFor(email).AllowN(s.now(), 1) {
		metrics.OTPRequests.WithLabelValues("rate_limited").Inc()
		return ErrOTPRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := s.codes.Save(ctx, email, code, s.opts.OTPTTL); err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return err
	}
	if err := s.mailer.SendCode(ctx, email, code); err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return err
	}
	metrics.OTPRequests.WithLabelValues("ok").Inc()
	return nil
}

// VerifyOTP consumes a code and signs the owner of email in, creating the user on first sign-in
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*SignInResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	stored, err := s.codes.Consume(ctx, email)
	if err != nil {
		if errors.Is(err, cache.ErrCodeNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		return nil, ErrInvalidOTP
	}

	user, err := s.resolveUser(ctx, email, &models.User{Username: defaultUsername})
	if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

// resolveUser finds the user owning email or creates one from template
func (s *AuthService) resolveUser(ctx context.Context, email string, template *models.User) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &models.User{
		ID:             uuid.New().String(),
		Username:       template.Username,
		Email:          email,
		ProfilePicture: template.ProfilePicture,
		CreatedAt:      s.now(),
	}
	if _, err := s.SyncUser(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		// lost a race with a concurrent sign-in for the same address
		existing, lookupErr := s.users.GetByEmail(ctx, email)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to look up user: %w", lookupErr)
		}
		return existing, nil
	}
	return user, nil
}

// SyncUser inserts the user row unless one with the same id exists
func (s *AuthService) SyncUser(ctx context.Context, user *models.User) (bool, error) {
	inserted, err := s.users.InsertIfAbsent(ctx, user)
	if err != nil {
		return false, fmt.Errorf("failed to sync user: %w", err)
	}
	if inserted {
		log.Info().Str("user_id", user.ID).Msg("User synced")
		if s.profiles != nil {
			if err := s.profiles.Invalidate(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to invalidate profile cache")
			}
		}
	}
	return inserted, nil
}

func (s *AuthService) signIn(user *models.User) (*SignInResult, error) {
	token, session, err := s.IssueSession(user)
	if err != nil {
		return nil, err
	}
	s.sessions.Publish(SessionEvent{Type: SessionSignedIn, Session: session})
	log.Info().Str("user_id", user.ID).Msg("User signed in")
	return &SignInResult{Token: token, Session: session, User: user}, nil
}

// OAuthEnabled reports whether federated sign-in is configured
func (s *AuthService) OAuthEnabled() bool { return s.opts.OAuth != nil }

// OAuthURL returns the provider consent URL carrying state
func (s *AuthService) OAuthURL(state string) (string, error) {
	if s.opts.OAuth == nil {
		return "", ErrOAuthDisabled
	}
	return s.opts.OAuth.AuthCodeURL(state), nil
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// CompleteOAuth exchanges an authorization code and signs the account in
func (s *AuthService) CompleteOAuth(ctx context.Context, code string) (*SignInResult, error) {
	if s.opts.OAuth == nil {
		return nil, ErrOAuthDisabled
	}
	tok, err := s.opts.OAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	info, err := s.fetchUserInfo(ctx, s.opts.OAuth.Client(ctx, tok))
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(info.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.resolveUser(ctx, email, &models.User{
		Username:       UsernameFromName(info.Name),
		ProfilePicture: info.Picture,
	})
	if err != nil {
		return nil, err
	}
	return s.signIn(user)
}

func (s *AuthService) fetchUserInfo(ctx context.Context, client *http.Client) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// UsernameFromName turns a display name into a username by replacing whitespace runs with "_"
func UsernameFromName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultUsername
	}
	return whitespace.ReplaceAllString(name, "_")
}

// generateCode generates a random numeric one-time code
func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}
