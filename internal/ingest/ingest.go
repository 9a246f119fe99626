// Package ingest appends newly observed playback events to the durable
// history store. Merges are idempotent: repeated or overlapping polls never
// duplicate or alter stored events.
//
// Only the 50 most recent plays are fetchable per poll. A user who plays
// more than that between polls permanently loses the middle events; that is
// an upstream window limit, not something ingest tries to backfill.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/soundlog/soundlog/internal/config"
	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/spotify"
)

// Common errors.
var (
	// ErrFetchFailed is a transient upstream failure during polling. Safe to
	// retry on the next scheduled tick; nothing was committed.
	ErrFetchFailed = errors.New("fetching playback history failed")

	// ErrRateLimited is the API signalling throttling. It matches
	// ErrFetchFailed too, so retry handling treats both alike.
	ErrRateLimited = fmt.Errorf("%w: upstream rate limited", ErrFetchFailed)
)

// TokenSource produces a valid access token for a user.
// *token.Manager satisfies it.
type TokenSource interface {
	Access(ctx context.Context, userID string) (string, error)
}

// RecentFetcher fetches the most recent playback events.
// *spotify.Client satisfies it.
type RecentFetcher interface {
	RecentPlays(ctx context.Context, accessToken string, limit int) ([]spotify.Play, error)
}

// HistoryStore is the conditional-insert surface of the history table.
// *db.PlayRepository satisfies it.
type HistoryStore interface {
	Insert(ctx context.Context, play db.Play) (bool, error)
}

// Service is the ingestion engine.
type Service struct {
	tokens  TokenSource
	api     RecentFetcher
	history HistoryStore
	limit   int
	logger  *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLimit sets the recently-played page size (capped upstream at 50).
func WithLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates an ingestion service.
func New(tokens TokenSource, api RecentFetcher, history HistoryStore, opts ...Option) *Service {
	s := &Service{
		tokens:  tokens,
		api:     api,
		history: history,
		limit:   config.DefaultRecentLimit,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncHistory fetches the user's most recent playback events and merges them
// into the history store. Returns the number of events considered, which
// counts silently absorbed duplicates as well as fresh inserts.
//
// Token failures propagate unmodified. A fetch failure aborts the sync
// before any merge. Merge failures are per-event: one bad event never stops
// the rest of the batch.
func (s *Service) SyncHistory(ctx context.Context, userID string) (int, error) {
	access, err := s.tokens.Access(ctx, userID)
	if err != nil {
		return 0, err
	}

	plays, err := s.api.RecentPlays(ctx, access, s.limit)
	if err != nil {
		if spotify.IsRateLimited(err) {
			return 0, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	var inserted, failed int
	for _, p := range plays {
		ok, err := s.history.Insert(ctx, db.Play{
			UserID:     userID,
			PlayedAt:   p.PlayedAt,
			Track:      p.Track,
			Artist:     p.Artist,
			Album:      p.Album,
			AlbumArt:   p.AlbumArt,
			URI:        p.URI,
			DurationMs: p.DurationMs,
		})
		if err != nil {
			failed++
			s.logger.Warn("play not merged", "user", userID, "played_at", p.PlayedAt, "err", err)
			continue
		}
		if ok {
			inserted++
		}
	}

	s.logger.Info("history synced",
		"user", userID,
		"considered", len(plays),
		"inserted", inserted,
		"failed", failed,
	)
	return len(plays), nil
}
