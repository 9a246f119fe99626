package spotify

import (
	"fmt"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
)

// Profile contains the account fields kept in the profile snapshot.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
	Followers   int
	Product     string // premium, free, etc.
	AvatarURL   *string
}

// Play is one playback event as reported by the recently-played endpoint.
type Play struct {
	Track      string
	Artist     string // primary artist only
	Album      string
	AlbumArt   *string // nil when the album has no artwork
	URI        string
	DurationMs int
	PlayedAt   time.Time
}

// RankedTrack is an entry from the top-tracks ranking endpoint.
type RankedTrack struct {
	Name     string
	Artist   string
	ImageURL *string
	URI      string
}

// RankedArtist is an entry from the top-artists ranking endpoint.
type RankedArtist struct {
	Name     string
	ImageURL *string
	Genres   []string
}

// Playlist identifies a created playlist.
type Playlist struct {
	ID   string
	Name string
	URL  string
}

// Window is a ranking window accepted by the top endpoints.
type Window string

// Ranking windows.
const (
	ShortTerm  Window = "short_term"
	MediumTerm Window = "medium_term"
	LongTerm   Window = "long_term"
)

// ParseWindow validates a ranking window string, defaulting empty input to
// ShortTerm.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case "":
		return ShortTerm, nil
	case ShortTerm, MediumTerm, LongTerm:
		return Window(s), nil
	default:
		return "", fmt.Errorf("invalid ranking window %q", s)
	}
}

// Label returns the human-readable period for a window.
func (w Window) Label() string {
	switch w {
	case MediumTerm:
		return "Last 6 Months"
	case LongTerm:
		return "Last 12 Months"
	default:
		return "Last 4 Weeks"
	}
}

func (w Window) timerange() spotifyapi.Range {
	switch w {
	case MediumTerm:
		return spotifyapi.MediumTermRange
	case LongTerm:
		return spotifyapi.LongTermRange
	default:
		return spotifyapi.ShortTermRange
	}
}
