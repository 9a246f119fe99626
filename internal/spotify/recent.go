package spotify

import (
	"context"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"
)

// MaxRecentPlays is the API-imposed window for a single recently-played
// call. Plays older than the 50th most recent are invisible to one fetch.
const MaxRecentPlays = 50

// RecentPlays fetches the user's most recent playback events, newest first.
// The limit is clamped to MaxRecentPlays.
func (c *Client) RecentPlays(ctx context.Context, accessToken string, limit int) ([]Play, error) {
	if limit < 1 || limit > MaxRecentPlays {
		limit = MaxRecentPlays
	}

	api, ctx := c.api(ctx, accessToken)

	items, err := api.PlayerRecentlyPlayedOpt(ctx, &spotifyapi.RecentlyPlayedOptions{Limit: spotifyapi.Numeric(limit)})
	if err != nil {
		return nil, fmt.Errorf("fetching recently played: %w", err)
	}

	plays := make([]Play, len(items))
	for i, item := range items {
		plays[i] = convertPlay(item)
	}
	return plays, nil
}

// convertPlay maps a recently-played item to the fields the history store
// keeps. Missing artwork stays nil rather than an empty URL.
func convertPlay(item spotifyapi.RecentlyPlayedItem) Play {
	var artist string
	if len(item.Track.Artists) > 0 {
		artist = item.Track.Artists[0].Name
	}

	return Play{
		Track:      item.Track.Name,
		Artist:     artist,
		Album:      item.Track.Album.Name,
		AlbumArt:   imageURL(item.Track.Album.Images, 0),
		URI:        string(item.Track.URI),
		DurationMs: int(item.Track.Duration),
		PlayedAt:   item.PlayedAt,
	}
}
