package services

import (
	"context"
	"io"

	"socialfeed/internal/models"
)

// UserStore persists user rows
type UserStore interface {
	InsertIfAbsent(ctx context.Context, user *models.User) (bool, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProfileSource lists every known profile
type ProfileSource interface {
	ListProfiles(ctx context.Context) ([]*models.Profile, error)
}

// FollowStore persists follow records
type FollowStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.FollowRecord, error)
	List(ctx context.Context) ([]*models.FollowRecord, error)
	UpdateFollowing(ctx context.Context, userID string, following []string) error
	UpdateFollowers(ctx context.Context, userID string, followers []string) error
}

// PostStore persists posts
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	ListByAuthors(ctx context.Context, authors []string, limit, offset int) ([]*models.FeedPost, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Post, error)
}

// ObjectStore uploads media and resolves public URLs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PublicURL(key string) string
}
