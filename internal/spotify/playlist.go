package spotify

import (
	"context"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"
)

const maxTracksPerRequest = 100

// CreatePlaylist creates a playlist for the given user and returns its ID,
// name, and web URL.
func (c *Client) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (*Playlist, error) {
	api, ctx := c.api(ctx, accessToken)

	playlist, err := api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return nil, fmt.Errorf("creating playlist: %w", err)
	}

	return &Playlist{
		ID:   playlist.ID.String(),
		Name: playlist.Name,
		URL:  playlist.ExternalURLs["spotify"],
	}, nil
}

// AddTracksToPlaylist adds track URIs to a playlist, batching per the API's
// 100-track request limit.
func (c *Client) AddTracksToPlaylist(ctx context.Context, accessToken, playlistID string, trackURIs []string) error {
	if len(trackURIs) == 0 {
		return nil
	}

	api, ctx := c.api(ctx, accessToken)

	ids := make([]spotifyapi.ID, len(trackURIs))
	for i, uri := range trackURIs {
		ids[i] = trackID(uri)
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		batch := ids[i:end]

		if _, err := api.AddTracksToPlaylist(ctx, spotifyapi.ID(playlistID), batch...); err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
	}

	return nil
}

// trackID strips the "spotify:track:" prefix from a URI. Bare IDs pass
// through unchanged.
func trackID(uri string) spotifyapi.ID {
	const prefix = "spotify:track:"
	if len(uri) > len(prefix) && uri[:len(prefix)] == prefix {
		return spotifyapi.ID(uri[len(prefix):])
	}
	return spotifyapi.ID(uri)
}
