package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles credential record operations. Every mutation is a
// single-statement atomic write; concurrent callers for the same user cannot
// interleave into a partial record.
type UserRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves a credential record by user ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, refresh_token, access_token, access_expiry,
		       display_name, email, country, followers, product, avatar_url,
		       created_at, last_profile_sync
		FROM users
		WHERE id = $1
	`
	var user User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.RefreshToken,
		&user.AccessToken,
		&user.AccessExpiry,
		&user.DisplayName,
		&user.Email,
		&user.Country,
		&user.Followers,
		&user.Product,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.LastProfileSync,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

// RefreshToken returns the stored refresh token for a user.
func (r *UserRepository) RefreshToken(ctx context.Context, id string) (string, error) {
	query := `SELECT refresh_token FROM users WHERE id = $1`
	var token string
	err := r.pool.QueryRow(ctx, query, id).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying refresh token: %w", err)
	}
	return token, nil
}

// UpsertRefreshToken creates the credential record if absent, or replaces the
// stored refresh token when the authorization server issued a different one.
// An unchanged token is a no-op, leaving the rest of the record alone.
func (r *UserRepository) UpsertRefreshToken(ctx context.Context, id, refreshToken string) error {
	query := `
		INSERT INTO users (id, refresh_token, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET refresh_token = EXCLUDED.refresh_token
		WHERE users.refresh_token IS DISTINCT FROM EXCLUDED.refresh_token
	`
	if _, err := r.pool.Exec(ctx, query, id, refreshToken); err != nil {
		return fmt.Errorf("upserting refresh token: %w", err)
	}
	return nil
}

// UpdateAccessToken unconditionally overwrites the derived access token and
// its expiry. The record must already exist; credentials are never created
// without a refresh token.
func (r *UserRepository) UpdateAccessToken(ctx context.Context, id, accessToken string, expiry time.Time) error {
	query := `
		UPDATE users
		SET access_token = $2, access_expiry = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, accessToken, expiry)
	if err != nil {
		return fmt.Errorf("updating access token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileSnapshot holds the denormalized display fields kept on a user.
type ProfileSnapshot struct {
	DisplayName string
	Email       string
	Country     string
	Followers   int
	Product     string
	AvatarURL   *string
}

// UpdateProfile overwrites the profile snapshot and stamps last_profile_sync.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p ProfileSnapshot) error {
	query := `
		UPDATE users
		SET display_name = $2, email = $3, country = $4,
		    followers = $5, product = $6, avatar_url = $7,
		    last_profile_sync = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id,
		p.DisplayName, p.Email, p.Country, p.Followers, p.Product, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns every known user ID, for batch syncing.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
