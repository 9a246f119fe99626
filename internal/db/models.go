package db

import "time"

// User is the durable credential record for a Spotify account. The refresh
// token is the authoritative credential; the access token and its expiry are
// derived and freely overwritten.
type User struct {
	ID           string
	RefreshToken string
	AccessToken  *string // nullable, may be stale
	AccessExpiry *time.Time

	// Denormalized profile snapshot, refreshed opportunistically.
	DisplayName string
	Email       string
	Country     string
	Followers   int
	Product     string
	AvatarURL   *string // nullable

	CreatedAt       time.Time
	LastProfileSync *time.Time
}

// Play is one playback event. Identity is (UserID, PlayedAt); rows are
// append-only and never mutated after insert.
type Play struct {
	UserID     string
	PlayedAt   time.Time
	Track      string
	Artist     string
	Album      string
	AlbumArt   *string // nullable - missing artwork stays null
	URI        string
	DurationMs int
}

// Session represents an authenticated web session. Tokens are not stored
// here; the users table is the single owner of credentials.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
