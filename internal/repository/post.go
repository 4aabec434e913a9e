package repository

import (
	"context"
	"fmt"

	"socialfeed/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostRepository handles database operations for posts
type PostRepository struct {
	db *pgxpool.Pool
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *pgxpool.Pool) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a post and fills in its generated ID and creation time
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	imageURL := post.ImageURL
	if imageURL == nil {
		imageURL = []string{}
	}
	query := `
		INSERT INTO posts (user_id, content, image_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, post.UserID, post.Content, imageURL).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// ListByAuthors retrieves posts written by any of the given authors, newest first.
// Posts sharing a timestamp are ordered by descending id so pages never overlap.
func (r *PostRepository) ListByAuthors(ctx context.Context, authors []string, limit, offset int) ([]*models.FeedPost, error) {
	query := `
		SELECT p.id, p.user_id, p.content, p.image_url, p.created_at,
		       COALESCE(u.username, 'Unknown'), COALESCE(u.profile_picture, '')
		FROM posts p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.user_id = ANY($1)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, authors, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*models.FeedPost, 0, limit)
	for rows.Next() {
		var p models.FeedPost
		err := rows.Scan(
			&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.CreatedAt,
			&p.Username, &p.ProfilePicture,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// ListRecentByUser retrieves a user's most recent posts
func (r *PostRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.Post, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, content, image_url, created_at
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}
