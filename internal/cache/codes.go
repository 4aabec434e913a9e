package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound is returned when no pending code exists for an email
var ErrCodeNotFound = errors.New("code not found")

// CodeStore keeps pending one-time sign-in codes
type CodeStore struct {
	client redis.Cmdable
}

// NewCodeStore creates a new code store
func NewCodeStore(client redis.Cmdable) *CodeStore {
	return &CodeStore{client: client}
}

func codeKey(email string) string { return "otp:" + strings.ToLower(email) }

// Save stores code for email, replacing any pending one
func (s *CodeStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, codeKey(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}
	return nil
}

// Consume returns and deletes the pending code for email
func (s *CodeStore) Consume(ctx context.Context, email string) (string, error) {
	code, err := s.client.GetDel(ctx, codeKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("failed to read code: %w", err)
	}
	return code, nil
}

// RevocationStore records revoked session token IDs until they would have expired anyway
type RevocationStore struct {
	client redis.Cmdable
}

// NewRevocationStore creates a new revocation store
func NewRevocationStore(client redis.Cmdable) *RevocationStore {
	return &RevocationStore{client: client}
}

func revokedKey(tokenID string) string { return "revoked:" + tokenID }

// Revoke marks tokenID revoked for ttl
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}
