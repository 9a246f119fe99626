// Package token manages the OAuth2 credential lifecycle: it keeps the
// long-lived refresh token valid and exchanges it for short-lived access
// tokens on demand, persisting every renewal.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/soundlog/soundlog/internal/config"
	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/spotify"
)

// Common errors.
var (
	// ErrUnknownUser is returned when no credential record exists for a user.
	// Recovered by sending the user through the authorization flow.
	ErrUnknownUser = errors.New("unknown user")

	// ErrCredentialRevoked is returned when the authorization server rejects
	// the stored refresh token. Not retryable; the user must re-authorize.
	ErrCredentialRevoked = errors.New("refresh credential revoked")
)

// DefaultAccessLifetime is assumed when the token response omits expires_in.
const DefaultAccessLifetime = 3600 * time.Second

// CredentialStore is the persistence the Manager needs. *db.UserRepository
// satisfies it.
type CredentialStore interface {
	Get(ctx context.Context, id string) (*db.User, error)
	UpsertRefreshToken(ctx context.Context, id, refreshToken string) error
	UpdateAccessToken(ctx context.Context, id, accessToken string, expiry time.Time) error
	UpdateProfile(ctx context.Context, id string, p db.ProfileSnapshot) error
}

// ProfileFetcher fetches the profile behind an access token.
// *spotify.Client satisfies it.
type ProfileFetcher interface {
	Profile(ctx context.Context, accessToken string) (*spotify.Profile, error)
}

// Manager produces currently-valid access tokens for known users.
type Manager struct {
	store      CredentialStore
	profiles   ProfileFetcher
	oauth      *oauth2.Config
	httpClient *http.Client
	margin     time.Duration
	policy     config.ProfileSyncPolicy
	logger     *log.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshMargin sets how far in the future a stored token must still be
// valid to be reused without renewal.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) { m.margin = d }
}

// WithProfileSync sets the profile snapshot refresh policy.
func WithProfileSync(p config.ProfileSyncPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithHTTPClient sets the transport used for token endpoint calls.
func WithHTTPClient(h *http.Client) Option {
	return func(m *Manager) { m.httpClient = h }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(oauthCfg *oauth2.Config, store CredentialStore, profiles ProfileFetcher, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		profiles:   profiles,
		oauth:      oauthCfg,
		httpClient: http.DefaultClient,
		margin:     config.DefaultRefreshMargin,
		policy:     config.ProfileSyncLogin,
		logger:     log.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OAuthConfig builds the oauth2 configuration for the Spotify accounts
// service with the scopes soundlog needs.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopeUserReadRecentlyPlayed,
			spotifyauth.ScopeUserTopRead,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// AuthURL returns the authorization-code redirect URL for the login flow.
func (m *Manager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Access returns a currently-valid access token for the user.
//
// A stored token still valid beyond the refresh margin is returned without a
// network round-trip. Otherwise the refresh grant is run and both the new
// token and its expiry are persisted before returning. The stored refresh
// token is only replaced when the server re-issued a different one.
func (m *Manager) Access(ctx context.Context, userID string) (string, error) {
	user, err := m.store.Get(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	if user.AccessToken != nil && user.AccessExpiry != nil &&
		user.AccessExpiry.After(m.now().Add(m.margin)) {
		return *user.AccessToken, nil
	}

	tok, err := m.refreshGrant(ctx, user.RefreshToken)
	if err != nil {
		return "", err
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(DefaultAccessLifetime)
	}

	// Persist before returning so the renewal survives the caller.
	if err := m.store.UpdateAccessToken(ctx, userID, tok.AccessToken, expiry); err != nil {
		return "", fmt.Errorf("persisting access token: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != user.RefreshToken {
		if err := m.store.UpsertRefreshToken(ctx, userID, tok.RefreshToken); err != nil {
			return "", fmt.Errorf("persisting re-issued refresh token: %w", err)
		}
		m.logger.Info("refresh token rotated", "user", userID)
	}

	if m.policy == config.ProfileSyncRefresh {
		m.syncProfile(ctx, userID, tok.AccessToken)
	}

	return tok.AccessToken, nil
}

// CompleteAuth finishes the authorization-code flow: exchanges the code,
// fetches the profile, and creates or updates the credential record.
func (m *Manager) CompleteAuth(ctx context.Context, code string) (*spotify.Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("authorization response missing refresh token")
	}

	profile, err := m.profiles.Profile(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	if err := m.store.UpsertRefreshToken(ctx, profile.ID, tok.RefreshToken); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(DefaultAccessLifetime)
	}
	if err := m.store.UpdateAccessToken(ctx, profile.ID, tok.AccessToken, expiry); err != nil {
		return nil, fmt.Errorf("storing access token: %w", err)
	}

	if err := m.store.UpdateProfile(ctx, profile.ID, snapshot(profile)); err != nil {
		return nil, fmt.Errorf("storing profile snapshot: %w", err)
	}

	m.logger.Info("authorization completed", "user", profile.ID)
	return profile, nil
}

// refreshGrant runs the refresh-token grant against the token endpoint.
func (m *Manager) refreshGrant(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		if revoked(err) {
			return nil, fmt.Errorf("%w: %v", ErrCredentialRevoked, err)
		}
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	return tok, nil
}

// revoked reports whether a token endpoint error means the refresh token is
// no longer accepted, as opposed to a transient failure. Throttling (429) is
// transient even though it is a client error.
func revoked(err error) bool {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return false
	}
	if rErr.ErrorCode == "invalid_grant" {
		return true
	}
	if rErr.Response == nil {
		return false
	}
	code := rErr.Response.StatusCode
	return code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden
}

// syncProfile opportunistically refreshes the profile snapshot. Failures are
// logged, never surfaced; the token call already succeeded.
func (m *Manager) syncProfile(ctx context.Context, userID, accessToken string) {
	profile, err := m.profiles.Profile(ctx, accessToken)
	if err != nil {
		m.logger.Warn("profile sync failed", "user", userID, "err", err)
		return
	}
	if err := m.store.UpdateProfile(ctx, userID, snapshot(profile)); err != nil {
		m.logger.Warn("profile snapshot write failed", "user", userID, "err", err)
	}
}

func snapshot(p *spotify.Profile) db.ProfileSnapshot {
	return db.ProfileSnapshot{
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Country:     p.Country,
		Followers:   p.Followers,
		Product:     p.Product,
		AvatarURL:   p.AvatarURL,
	}
}
