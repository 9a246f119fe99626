// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ProfileSyncPolicy controls when a user's profile snapshot is refreshed.
type ProfileSyncPolicy string

const (
	// ProfileSyncLogin refreshes the snapshot only when the user completes
	// the authorization flow.
	ProfileSyncLogin ProfileSyncPolicy = "login"

	// ProfileSyncRefresh additionally refreshes the snapshot on every
	// successful token renewal.
	ProfileSyncRefresh ProfileSyncPolicy = "refresh"
)

// Defaults.
const (
	DefaultAddr          = "127.0.0.1:8080"
	DefaultRedirectURL   = "http://127.0.0.1:8080/callback"
	DefaultRefreshMargin = 60 * time.Second
	DefaultRecentLimit   = 50
)

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// ErrMissingDatabaseURL is returned when DATABASE_URL is not set.
var ErrMissingDatabaseURL = errors.New("missing DATABASE_URL environment variable")

// Config holds all runtime settings.
type Config struct {
	// Spotify application credentials.
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Postgres connection string.
	DatabaseURL string

	// Address the web server binds to.
	Addr string

	// How far in the future a stored access credential must still be valid
	// to be reused without a renewal round-trip.
	RefreshMargin time.Duration

	// When the profile snapshot is refreshed.
	ProfileSync ProfileSyncPolicy

	// Page size for recently-played fetches (the API caps this at 50).
	RecentLimit int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ClientID:      os.Getenv("SPOTIFY_ID"),
		ClientSecret:  os.Getenv("SPOTIFY_SECRET"),
		RedirectURL:   envOr("SPOTIFY_REDIRECT_URL", DefaultRedirectURL),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Addr:          envOr("SOUNDLOG_ADDR", DefaultAddr),
		RefreshMargin: DefaultRefreshMargin,
		ProfileSync:   ProfileSyncLogin,
		RecentLimit:   DefaultRecentLimit,
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}

	if v := os.Getenv("SOUNDLOG_REFRESH_MARGIN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing SOUNDLOG_REFRESH_MARGIN: %w", err)
		}
		cfg.RefreshMargin = d
	}

	if v := os.Getenv("SOUNDLOG_PROFILE_SYNC"); v != "" {
		switch ProfileSyncPolicy(v) {
		case ProfileSyncLogin, ProfileSyncRefresh:
			cfg.ProfileSync = ProfileSyncPolicy(v)
		default:
			return nil, fmt.Errorf("invalid SOUNDLOG_PROFILE_SYNC %q (want %q or %q)", v, ProfileSyncLogin, ProfileSyncRefresh)
		}
	}

	if v := os.Getenv("SOUNDLOG_RECENT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			return nil, fmt.Errorf("invalid SOUNDLOG_RECENT_LIMIT %q (want 1-50)", v)
		}
		cfg.RecentLimit = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
