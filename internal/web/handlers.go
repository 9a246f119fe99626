package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/ingest"
	"github.com/soundlog/soundlog/internal/spotify"
	"github.com/soundlog/soundlog/internal/stats"
	"github.com/soundlog/soundlog/internal/token"
)

// AuthService is the authorization flow surface the handlers need.
// *token.Manager satisfies it.
type AuthService interface {
	AuthURL(state string) string
	CompleteAuth(ctx context.Context, code string) (*spotify.Profile, error)
}

// Ingestor syncs a user's playback history. *ingest.Service satisfies it.
type Ingestor interface {
	SyncHistory(ctx context.Context, userID string) (int, error)
}

// StatsService is the aggregate-query surface. *stats.Service satisfies it.
type StatsService interface {
	TotalPlayTime(ctx context.Context, userID string) (int, error)
	RecentPlays(ctx context.Context, userID string, limit int) ([]db.Play, error)
	TopTracks(ctx context.Context, userID string, window spotify.Window, limit int) ([]spotify.RankedTrack, error)
	TopArtists(ctx context.Context, userID string, window spotify.Window, limit int) ([]spotify.RankedArtist, error)
	TopGenres(ctx context.Context, userID string, window spotify.Window) ([]stats.Genre, error)
	PlaylistFromTop(ctx context.Context, userID string, window spotify.Window) (*spotify.Playlist, error)
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth      AuthService
	ingest    Ingestor
	stats     StatsService
	sessions  SessionManager
	templates *Templates
	logger    *log.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(auth AuthService, ingestor Ingestor, statsSvc StatsService, sessions SessionManager, templates *Templates, logger *log.Logger) *Handlers {
	return &Handlers{
		auth:      auth,
		ingest:    ingestor,
		stats:     statsSvc,
		sessions:  sessions,
		templates: templates,
		logger:    logger,
	}
}

// PageData holds fields shared by every page.
type PageData struct {
	Title       string
	CurrentPath string
	User        *UserData
	Window      spotify.Window
}

// UserData identifies the signed-in user for templates.
type UserData struct {
	ID   string
	Name string
}

// Home handles the landing page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session != nil {
		http.Redirect(w, r, "/top-tracks", http.StatusTemporaryRedirect)
		return
	}

	h.render(w, "home", PageData{Title: "soundlog", CurrentPath: r.URL.Path})
}

// Login initiates the OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// Store state in cookie for validation on callback
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, fmt.Sprintf("Spotify auth error: %s", errMsg), http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	profile, err := h.auth.CompleteAuth(r.Context(), code)
	if err != nil {
		h.logger.Error("authorization failed", "err", err)
		http.Error(w, "Failed to complete authorization", http.StatusInternalServerError)
		return
	}

	session, err := h.sessions.Create(r.Context(), profile.ID, profile.DisplayName)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, session)

	// Seed the history right away so the first page load has data.
	if _, err := h.ingest.SyncHistory(r.Context(), profile.ID); err != nil {
		h.logger.Warn("initial history sync failed", "user", profile.ID, "err", err)
	}

	http.Redirect(w, r, "/top-tracks", http.StatusTemporaryRedirect)
}

// Logout clears the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Stats renders overall listening stats (GET /stats).
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	minutes, err := h.stats.TotalPlayTime(r.Context(), session.UserID)
	if err != nil {
		h.coreError(w, r, session, err)
		return
	}

	data := struct {
		PageData
		TotalMinutes   int
		FavoriteTrack  *spotify.RankedTrack
		FavoriteArtist *spotify.RankedArtist
	}{
		PageData:     h.pageData("Your Stats", r, session),
		TotalMinutes: minutes,
	}

	if tracks, err := h.stats.TopTracks(r.Context(), session.UserID, spotify.ShortTerm, 1); err == nil && len(tracks) > 0 {
		data.FavoriteTrack = &tracks[0]
	}
	if artists, err := h.stats.TopArtists(r.Context(), session.UserID, spotify.ShortTerm, 1); err == nil && len(artists) > 0 {
		data.FavoriteArtist = &artists[0]
	}

	h.render(w, "stats", data)
}

// TopTracks renders the top tracks page (GET /top-tracks).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	window, err := spotify.ParseWindow(r.URL.Query().Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tracks, err := h.stats.TopTracks(r.Context(), session.UserID, window, 50)
	if err != nil {
		h.coreError(w, r, session, err)
		return
	}

	data := struct {
		PageData
		Tracks []spotify.RankedTrack
	}{h.pageDataWindow("Top Tracks", r, session, window), tracks}
	h.render(w, "top_tracks", data)
}

// TopArtists renders the top artists page (GET /top-artists).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	window, err := spotify.ParseWindow(r.URL.Query().Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	artists, err := h.stats.TopArtists(r.Context(), session.UserID, window, 10)
	if err != nil {
		h.coreError(w, r, session, err)
		return
	}

	data := struct {
		PageData
		Artists []spotify.RankedArtist
	}{h.pageDataWindow("Top Artists", r, session, window), artists}
	h.render(w, "top_artists", data)
}

// TopGenres renders the top genres page (GET /top-genres).
func (h *Handlers) TopGenres(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	window, err := spotify.ParseWindow(r.URL.Query().Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	genres, err := h.stats.TopGenres(r.Context(), session.UserID, window)
	if err != nil {
		h.coreError(w, r, session, err)
		return
	}

	data := struct {
		PageData
		Genres []stats.Genre
	}{h.pageDataWindow("Top Genres", r, session, window), genres}
	h.render(w, "top_genres", data)
}

// RecentlyPlayed syncs the user's history and renders the stored plays
// (GET /recently-played).
func (h *Handlers) RecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	session, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if _, err := h.ingest.SyncHistory(r.Context(), session.UserID); err != nil {
		// A transient fetch failure still leaves stored history to show.
		if errors.Is(err, token.ErrUnknownUser) || errors.Is(err, token.ErrCredentialRevoked) {
			h.coreError(w, r, session, err)
			return
		}
		h.logger.Warn("history sync failed", "user", session.UserID, "err", err)
	}

	plays, err := h.stats.RecentPlays(r.Context(), session.UserID, 50)
	if err != nil {
		h.coreError(w, r, session, err)
		return
	}

	data := struct {
		PageData
		Plays []db.Play
	}{h.pageData("Recently Played", r, session), plays}
	h.render(w, "recently_played", data)
}

// APITopTracks returns top tracks as JSON (GET /api/top-tracks/{range}).
func (h *Handlers) APITopTracks(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Not authenticated"})
		return
	}

	window, err := spotify.ParseWindow(chi.URLParam(r, "range"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	tracks, err := h.stats.TopTracks(r.Context(), session.UserID, window, 50)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// CreatePlaylist creates a playlist from the user's top tracks
// (POST /api/playlist/{range}).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Not authenticated"})
		return
	}

	window, err := spotify.ParseWindow(chi.URLParam(r, "range"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	playlist, err := h.stats.PlaylistFromTop(r.Context(), session.UserID, window)
	if err != nil {
		h.logger.Error("playlist creation failed", "user", session.UserID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"playlist_url":  playlist.URL,
		"playlist_name": playlist.Name,
	})
}

// requireSession redirects to the landing page when no session exists.
func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session := h.sessions.GetFromRequest(r)
	if session == nil {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return nil, false
	}
	return session, true
}

// coreError translates core failures into responses. Revoked or missing
// credentials invalidate the session and send the user back through login.
func (h *Handlers) coreError(w http.ResponseWriter, r *http.Request, session *Session, err error) {
	switch {
	case errors.Is(err, token.ErrUnknownUser), errors.Is(err, token.ErrCredentialRevoked):
		h.logger.Info("session invalidated", "user", session.UserID, "err", err)
		h.sessions.DeleteForUser(r.Context(), session.UserID)
		h.sessions.ClearCookie(w)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	case errors.Is(err, ingest.ErrRateLimited):
		http.Error(w, "Upstream rate limited, try again shortly", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		http.Error(w, "Something went wrong", http.StatusBadGateway)
	}
}

func (h *Handlers) pageData(title string, r *http.Request, session *Session) PageData {
	return PageData{
		Title:       title,
		CurrentPath: r.URL.Path,
		User:        &UserData{ID: session.UserID, Name: session.UserName},
	}
}

func (h *Handlers) pageDataWindow(title string, r *http.Request, session *Session, window spotify.Window) PageData {
	data := h.pageData(title, r, session)
	data.Window = window
	return data
}

func (h *Handlers) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, page, data); err != nil {
		h.logger.Error("template render failed", "page", page, "err", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
