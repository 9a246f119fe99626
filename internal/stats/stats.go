// Package stats derives aggregate views: play time from the local history
// store, and top-N rankings passed through from the upstream API.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/spotify"
)

const (
	topGenreLimit    = 10
	rankingPageLimit = 50
)

// TokenSource produces a valid access token for a user.
type TokenSource interface {
	Access(ctx context.Context, userID string) (string, error)
}

// HistoryReader is the read surface of the history store.
// *db.PlayRepository satisfies it.
type HistoryReader interface {
	TotalDuration(ctx context.Context, userID string) (int64, error)
	Recent(ctx context.Context, userID string, limit int) ([]db.Play, error)
}

// RankingAPI is the upstream ranking and playlist surface.
// *spotify.Client satisfies it.
type RankingAPI interface {
	TopTracks(ctx context.Context, accessToken string, window spotify.Window, limit int) ([]spotify.RankedTrack, error)
	TopArtists(ctx context.Context, accessToken string, window spotify.Window, limit int) ([]spotify.RankedArtist, error)
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*spotify.Playlist, error)
	AddTracksToPlaylist(ctx context.Context, accessToken, playlistID string, trackURIs []string) error
}

// Service computes aggregates for a user.
type Service struct {
	tokens  TokenSource
	api     RankingAPI
	history HistoryReader
}

// New creates a stats service.
func New(tokens TokenSource, api RankingAPI, history HistoryReader) *Service {
	return &Service{tokens: tokens, api: api, history: history}
}

// TotalPlayTime returns the user's total stored playback time in minutes,
// rounded. Zero when no history exists.
func (s *Service) TotalPlayTime(ctx context.Context, userID string) (int, error) {
	ms, err := s.history.TotalDuration(ctx, userID)
	if err != nil {
		return 0, err
	}
	return int(math.Round(float64(ms) / 60000.0)), nil
}

// RecentPlays returns the newest stored plays for a user.
func (s *Service) RecentPlays(ctx context.Context, userID string, limit int) ([]db.Play, error) {
	return s.history.Recent(ctx, userID, limit)
}

// TopTracks returns the user's top tracks for a ranking window.
func (s *Service) TopTracks(ctx context.Context, userID string, window spotify.Window, limit int) ([]spotify.RankedTrack, error) {
	access, err := s.tokens.Access(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.api.TopTracks(ctx, access, window, limit)
}

// TopArtists returns the user's top artists for a ranking window.
func (s *Service) TopArtists(ctx context.Context, userID string, window spotify.Window, limit int) ([]spotify.RankedArtist, error) {
	access, err := s.tokens.Access(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.api.TopArtists(ctx, access, window, limit)
}

// Genre is a genre ranked by how many of the user's top artists carry it.
type Genre struct {
	Name    string
	Count   int
	Artists []string
}

// TopGenres aggregates genres across the user's top 50 artists for a window
// and returns the ten most common, most-represented first.
func (s *Service) TopGenres(ctx context.Context, userID string, window spotify.Window) ([]Genre, error) {
	artists, err := s.TopArtists(ctx, userID, window, rankingPageLimit)
	if err != nil {
		return nil, err
	}
	return rankGenres(artists, topGenreLimit), nil
}

// rankGenres counts artists per genre. Ties order alphabetically so output
// is stable.
func rankGenres(artists []spotify.RankedArtist, limit int) []Genre {
	byGenre := make(map[string][]string)
	for _, a := range artists {
		for _, g := range a.Genres {
			byGenre[g] = append(byGenre[g], a.Name)
		}
	}

	genres := make([]Genre, 0, len(byGenre))
	for name, names := range byGenre {
		genres = append(genres, Genre{Name: name, Count: len(names), Artists: names})
	}

	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Name < genres[j].Name
	})

	if len(genres) > limit {
		genres = genres[:limit]
	}
	return genres
}

// PlaylistFromTop creates a private playlist from the user's top 50 tracks
// for a ranking window.
func (s *Service) PlaylistFromTop(ctx context.Context, userID string, window spotify.Window) (*spotify.Playlist, error) {
	access, err := s.tokens.Access(ctx, userID)
	if err != nil {
		return nil, err
	}

	tracks, err := s.api.TopTracks(ctx, access, window, rankingPageLimit)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no top tracks for window %s", window)
	}

	name := fmt.Sprintf("Top %d Songs - %s", len(tracks), window.Label())
	description := fmt.Sprintf("Automatically generated playlist of your top songs from %s.", window.Label())

	playlist, err := s.api.CreatePlaylist(ctx, access, userID, name, description, false)
	if err != nil {
		return nil, err
	}

	uris := make([]string, len(tracks))
	for i, t := range tracks {
		uris[i] = t.URI
	}
	if err := s.api.AddTracksToPlaylist(ctx, access, playlist.ID, uris); err != nil {
		return nil, err
	}

	return playlist, nil
}
