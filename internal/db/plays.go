package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayRepository handles the append-only playback history table.
type PlayRepository struct {
	pool *pgxpool.Pool
}

// Insert conditionally inserts a playback event. The (user_id, played_at)
// pair is the identity; if a row with that key already exists the insert is
// a no-op and the stored payload is left untouched (first-writer-wins).
// Reports whether a new row was written.
func (r *PlayRepository) Insert(ctx context.Context, play Play) (bool, error) {
	query := `
		INSERT INTO plays (user_id, played_at, track, artist, album, album_art, uri, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, played_at) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		play.UserID,
		play.PlayedAt,
		play.Track,
		play.Artist,
		play.Album,
		play.AlbumArt,
		play.URI,
		play.DurationMs,
	)
	if err != nil {
		return false, fmt.Errorf("inserting play: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Recent returns the most recent stored plays for a user, newest first.
func (r *PlayRepository) Recent(ctx context.Context, userID string, limit int) ([]Play, error) {
	query := `
		SELECT user_id, played_at, track, artist, album, album_art, uri, duration_ms
		FROM plays
		WHERE user_id = $1
		ORDER BY played_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		if err := rows.Scan(
			&p.UserID,
			&p.PlayedAt,
			&p.Track,
			&p.Artist,
			&p.Album,
			&p.AlbumArt,
			&p.URI,
			&p.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scanning play: %w", err)
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// TotalDuration returns the summed playback duration in milliseconds across
// a user's stored history. Zero if the user has no events.
func (r *PlayRepository) TotalDuration(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(duration_ms), 0) FROM plays WHERE user_id = $1`
	var total int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing play durations: %w", err)
	}
	return total, nil
}

// Count returns the number of stored plays for a user.
func (r *PlayRepository) Count(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM plays WHERE user_id = $1`
	var n int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting plays: %w", err)
	}
	return n, nil
}
