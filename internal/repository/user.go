package repository

import (
	"context"
	"errors"
	"fmt"

	"socialfeed/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// InsertIfAbsent inserts the user together with an empty follow record.
// Existing rows are left untouched; the returned flag reports whether the user row was created.
// ErrConflict is returned when another user already owns the email.
func (r *UserRepository) InsertIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO users (id, username, email, profile_picture, bio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, user.ID, user.Username, user.Email, user.ProfilePicture, user.Bio, user.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return false, ErrConflict
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO follows (user_id, followers, following)
		VALUES ($1, '{}', '{}')
		ON CONFLICT (user_id) DO NOTHING
	`, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to insert follow record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit user insert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, email, profile_picture, bio, created_at
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, username, email, profile_picture, bio, created_at
		FROM users
		WHERE email = $1
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, query, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.ProfilePicture, &user.Bio, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListProfiles returns every user's public profile
func (r *UserRepository) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, username, profile_picture, bio
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Username, &p.ProfilePicture, &p.Bio); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}
