package config

import (
	"errors"
	"testing"
	"time"
)

// setRequired sets the variables Load refuses to run without.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_ID", "client-id")
	t.Setenv("SPOTIFY_SECRET", "client-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/soundlog")
}

func clearOptional(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SPOTIFY_REDIRECT_URL",
		"SOUNDLOG_ADDR",
		"SOUNDLOG_REFRESH_MARGIN",
		"SOUNDLOG_PROFILE_SYNC",
		"SOUNDLOG_RECENT_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	clearOptional(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.RedirectURL != DefaultRedirectURL {
		t.Errorf("RedirectURL = %q, want %q", cfg.RedirectURL, DefaultRedirectURL)
	}
	if cfg.RefreshMargin != DefaultRefreshMargin {
		t.Errorf("RefreshMargin = %v, want %v", cfg.RefreshMargin, DefaultRefreshMargin)
	}
	if cfg.ProfileSync != ProfileSyncLogin {
		t.Errorf("ProfileSync = %q, want %q", cfg.ProfileSync, ProfileSyncLogin)
	}
	if cfg.RecentLimit != DefaultRecentLimit {
		t.Errorf("RecentLimit = %d, want %d", cfg.RecentLimit, DefaultRecentLimit)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantErr error
	}{
		{"no client id", "SPOTIFY_ID", ErrMissingCredentials},
		{"no client secret", "SPOTIFY_SECRET", ErrMissingCredentials},
		{"no database url", "DATABASE_URL", ErrMissingDatabaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			clearOptional(t)
			t.Setenv(tt.unset, "")

			if _, err := Load(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	clearOptional(t)
	t.Setenv("SOUNDLOG_ADDR", "0.0.0.0:9000")
	t.Setenv("SOUNDLOG_REFRESH_MARGIN", "5m")
	t.Setenv("SOUNDLOG_PROFILE_SYNC", "refresh")
	t.Setenv("SOUNDLOG_RECENT_LIMIT", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.RefreshMargin != 5*time.Minute {
		t.Errorf("RefreshMargin = %v, want 5m", cfg.RefreshMargin)
	}
	if cfg.ProfileSync != ProfileSyncRefresh {
		t.Errorf("ProfileSync = %q, want refresh", cfg.ProfileSync)
	}
	if cfg.RecentLimit != 25 {
		t.Errorf("RecentLimit = %d, want 25", cfg.RecentLimit)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad margin", "SOUNDLOG_REFRESH_MARGIN", "soon"},
		{"bad policy", "SOUNDLOG_PROFILE_SYNC", "hourly"},
		{"limit not a number", "SOUNDLOG_RECENT_LIMIT", "many"},
		{"limit too small", "SOUNDLOG_RECENT_LIMIT", "0"},
		{"limit over cap", "SOUNDLOG_RECENT_LIMIT", "51"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			clearOptional(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
