// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Client wraps the Spotify API with convenience methods. It holds no
// credentials; every call takes the bearer token to act under, so one Client
// serves all users.
type Client struct {
	base *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport used for API calls. Intended for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.base = h
	}
}

// New creates a new Spotify client wrapper.
func New(opts ...Option) *Client {
	c := &Client{base: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// api builds an authenticated zmb3 client for a single call.
func (c *Client) api(ctx context.Context, accessToken string) (*spotifyapi.Client, context.Context) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return spotifyapi.New(oauth2.NewClient(ctx, src)), ctx
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	api, ctx := c.api(ctx, accessToken)

	user, err := api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}

	return &Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Followers:   int(user.Followers.Count),
		Product:     user.Product,
		AvatarURL:   imageURL(user.Images, 0),
	}, nil
}

// IsRateLimited reports whether err is the API signalling throttling.
func IsRateLimited(err error) bool {
	var apiErr spotifyapi.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

// imageURL picks an image URL from an image set, preferring the given index
// and falling back to the first entry. Nil when the set is empty.
func imageURL(images []spotifyapi.Image, preferred int) *string {
	if len(images) == 0 {
		return nil
	}
	idx := preferred
	if idx >= len(images) {
		idx = 0
	}
	url := images[idx].URL
	return &url
}
