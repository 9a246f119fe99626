package spotify

import (
	"context"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"
)

// TopTracks fetches the user's top tracks for a ranking window.
func (c *Client) TopTracks(ctx context.Context, accessToken string, window Window, limit int) ([]RankedTrack, error) {
	api, ctx := c.api(ctx, accessToken)

	page, err := api.CurrentUsersTopTracks(ctx,
		spotifyapi.Limit(limit),
		spotifyapi.Timerange(window.timerange()),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching top tracks: %w", err)
	}

	tracks := make([]RankedTrack, len(page.Tracks))
	for i, t := range page.Tracks {
		var artist string
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		tracks[i] = RankedTrack{
			Name:     t.Name,
			Artist:   artist,
			ImageURL: imageURL(t.Album.Images, 1),
			URI:      string(t.URI),
		}
	}
	return tracks, nil
}

// TopArtists fetches the user's top artists for a ranking window.
func (c *Client) TopArtists(ctx context.Context, accessToken string, window Window, limit int) ([]RankedArtist, error) {
	api, ctx := c.api(ctx, accessToken)

	page, err := api.CurrentUsersTopArtists(ctx,
		spotifyapi.Limit(limit),
		spotifyapi.Timerange(window.timerange()),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching top artists: %w", err)
	}

	artists := make([]RankedArtist, len(page.Artists))
	for i, a := range page.Artists {
		artists[i] = RankedArtist{
			Name:     a.Name,
			ImageURL: imageURL(a.Images, 1),
			Genres:   a.Genres,
		}
	}
	return artists, nil
}
