package repository

import (
	"context"
	"errors"
	"fmt"

	"socialfeed/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FollowRepository handles database operations for follow records
type FollowRepository struct {
	db *pgxpool.Pool
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *pgxpool.Pool) *FollowRepository {
	return &FollowRepository{db: db}
}

// GetByUserID retrieves the follow record owned by a user
func (r *FollowRepository) GetByUserID(ctx context.Context, userID string) (*models.FollowRecord, error) {
	query := `
		SELECT id, user_id, followers, following, created_at
		FROM follows
		WHERE user_id = $1
	`
	var rec models.FollowRecord
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&rec.ID, &rec.UserID, &rec.Followers, &rec.Following, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("follow record for %q: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get follow record: %w", err)
	}
	return &rec, nil
}

// List retrieves every follow record
func (r *FollowRepository) List(ctx context.Context) ([]*models.FollowRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, followers, following, created_at
		FROM follows
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow records: %w", err)
	}
	defer rows.Close()

	var records []*models.FollowRecord
	for rows.Next() {
		var rec models.FollowRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Followers, &rec.Following, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow records: %w", err)
	}
	return records, nil
}

// UpdateFollowing replaces the following list of a user's record
func (r *FollowRepository) UpdateFollowing(ctx context.Context, userID string, following []string) error {
	return r.updateList(ctx, "following", userID, following)
}

// UpdateFollowers replaces the followers list of a user's record
func (r *FollowRepository) UpdateFollowers(ctx context.Context, userID string, followers []string) error {
	return r.updateList(ctx, "followers", userID, followers)
}

func (r *FollowRepository) updateList(ctx context.Context, column, userID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	// column is one of two constants above, never user input
	query := fmt.Sprintf(`UPDATE follows SET %s = $1 WHERE user_id = $2`, column)
	result, err := r.db.Exec(ctx, query, ids, userID)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("follow record for %q: %w", userID, ErrNotFound)
	}
	return nil
}
