package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"socialfeed/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const profilesKey = "profiles:all"

// ProfileLister is the source of truth for profiles
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
}

// ProfileCache is a read-through redis cache in front of a ProfileLister
type ProfileCache struct {
	client redis.Cmdable
	source ProfileLister
	ttl    time.Duration
}

// NewProfileCache creates a new profile cache
func NewProfileCache(client redis.Cmdable, source ProfileLister, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, source: source, ttl: ttl}
}

// ListProfiles returns the cached profile list, loading it from the source on a miss.
// Cache failures fall back to the source.
func (c *ProfileCache) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	data, err := c.client.Get(ctx, profilesKey).Bytes()
	if err == nil {
		var profiles []*models.Profile
		if err := json.Unmarshal(data, &profiles); err == nil {
			return profiles, nil
		}
		log.Warn().Str("key", profilesKey).Msg("Discarding undecodable profile cache entry")
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("key", profilesKey).Msg("Profile cache read failed")
	}

	profiles, err := c.source.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(profiles); err == nil {
		if err := c.client.Set(ctx, profilesKey, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", profilesKey).Msg("Profile cache write failed")
		}
	}
	return profiles, nil
}

// Invalidate drops the cached profile list
func (c *ProfileCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, profilesKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate profile cache: %w", err)
	}
	return nil
}
