package spotify

import (
	"errors"
	"fmt"
	"testing"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
)

func TestConvertPlay(t *testing.T) {
	playedAt := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)

	item := spotifyapi.RecentlyPlayedItem{
		Track: spotifyapi.SimpleTrack{
			Name: "Only Shallow",
			Artists: []spotifyapi.SimpleArtist{
				{Name: "My Bloody Valentine"},
				{Name: "Featured Artist"},
			},
			Album: spotifyapi.SimpleAlbum{
				Name:   "Loveless",
				Images: []spotifyapi.Image{{URL: "https://img.example/loveless.jpg"}},
			},
			URI:      "spotify:track:abc123",
			Duration: 257000,
		},
		PlayedAt: playedAt,
	}

	got := convertPlay(item)

	if got.Track != "Only Shallow" {
		t.Errorf("Track = %q", got.Track)
	}
	if got.Artist != "My Bloody Valentine" {
		t.Errorf("Artist = %q, want primary artist only", got.Artist)
	}
	if got.Album != "Loveless" {
		t.Errorf("Album = %q", got.Album)
	}
	if got.AlbumArt == nil || *got.AlbumArt != "https://img.example/loveless.jpg" {
		t.Errorf("AlbumArt = %v", got.AlbumArt)
	}
	if got.URI != "spotify:track:abc123" {
		t.Errorf("URI = %q", got.URI)
	}
	if got.DurationMs != 257000 {
		t.Errorf("DurationMs = %d", got.DurationMs)
	}
	if !got.PlayedAt.Equal(playedAt) {
		t.Errorf("PlayedAt = %v", got.PlayedAt)
	}
}

func TestConvertPlay_MissingFields(t *testing.T) {
	item := spotifyapi.RecentlyPlayedItem{
		Track: spotifyapi.SimpleTrack{Name: "Untitled"},
	}

	got := convertPlay(item)

	if got.Artist != "" {
		t.Errorf("Artist = %q, want empty for no artists", got.Artist)
	}
	if got.AlbumArt != nil {
		t.Errorf("AlbumArt = %v, want nil for no artwork", got.AlbumArt)
	}
}

func TestTrackID(t *testing.T) {
	tests := []struct {
		uri  string
		want spotifyapi.ID
	}{
		{"spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := trackID(tt.uri); got != tt.want {
			t.Errorf("trackID(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    Window
		wantErr bool
	}{
		{"", ShortTerm, false},
		{"short_term", ShortTerm, false},
		{"medium_term", MediumTerm, false},
		{"long_term", LongTerm, false},
		{"all_time", "", true},
	}

	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWindowLabel(t *testing.T) {
	tests := []struct {
		window Window
		want   string
	}{
		{ShortTerm, "Last 4 Weeks"},
		{MediumTerm, "Last 6 Months"},
		{LongTerm, "Last 12 Months"},
	}

	for _, tt := range tests {
		if got := tt.window.Label(); got != tt.want {
			t.Errorf("%s.Label() = %q, want %q", tt.window, got, tt.want)
		}
	}
}

func TestImageURL(t *testing.T) {
	images := []spotifyapi.Image{
		{URL: "https://img.example/large.jpg"},
		{URL: "https://img.example/medium.jpg"},
	}

	tests := []struct {
		name      string
		images    []spotifyapi.Image
		preferred int
		want      string
	}{
		{"preferred index", images, 1, "https://img.example/medium.jpg"},
		{"out of range falls back to first", images, 5, "https://img.example/large.jpg"},
		{"empty set", nil, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := imageURL(tt.images, tt.preferred)
			if tt.want == "" {
				if got != nil {
					t.Errorf("imageURL() = %v, want nil", got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("imageURL() = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"throttled", spotifyapi.Error{Message: "rate limit", Status: 429}, true},
		{"wrapped throttled", fmt.Errorf("fetching: %w", spotifyapi.Error{Status: 429}), true},
		{"other api error", spotifyapi.Error{Message: "forbidden", Status: 403}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}
