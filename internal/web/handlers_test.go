package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/charmbracelet/log"

	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/ingest"
	"github.com/soundlog/soundlog/internal/spotify"
	"github.com/soundlog/soundlog/internal/stats"
	"github.com/soundlog/soundlog/internal/token"
)

type fakeAuth struct {
	profile *spotify.Profile
	err     error
}

func (f *fakeAuth) AuthURL(state string) string {
	return "https://accounts.example/authorize?state=" + state
}

func (f *fakeAuth) CompleteAuth(context.Context, string) (*spotify.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeIngest struct {
	err   error
	calls int
}

func (f *fakeIngest) SyncHistory(context.Context, string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 5, nil
}

type fakeStats struct {
	minutes int
	plays   []db.Play
	tracks  []spotify.RankedTrack
	err     error
}

func (f *fakeStats) TotalPlayTime(context.Context, string) (int, error) {
	return f.minutes, f.err
}

func (f *fakeStats) RecentPlays(context.Context, string, int) ([]db.Play, error) {
	return f.plays, nil
}

func (f *fakeStats) TopTracks(context.Context, string, spotify.Window, int) ([]spotify.RankedTrack, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks, nil
}

func (f *fakeStats) TopArtists(context.Context, string, spotify.Window, int) ([]spotify.RankedArtist, error) {
	return nil, f.err
}

func (f *fakeStats) TopGenres(context.Context, string, spotify.Window) ([]stats.Genre, error) {
	return nil, f.err
}

func (f *fakeStats) PlaylistFromTop(context.Context, string, spotify.Window) (*spotify.Playlist, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &spotify.Playlist{ID: "pl1", Name: "Top Songs", URL: "https://open.spotify.com/playlist/pl1"}, nil
}

func testTemplates(t *testing.T) *Templates {
	t.Helper()
	fsys := fstest.MapFS{
		"layouts/base.html": &fstest.MapFile{
			Data: []byte(`{{define "base"}}<html>{{block "content" .}}{{end}}</html>{{end}}`),
		},
		"pages/home.html": &fstest.MapFile{
			Data: []byte(`{{define "content"}}home{{end}}`),
		},
		"pages/top_tracks.html": &fstest.MapFile{
			Data: []byte(`{{define "content"}}{{range .Tracks}}{{.Name}};{{end}}{{end}}`),
		},
		"pages/recently_played.html": &fstest.MapFile{
			Data: []byte(`{{define "content"}}{{range .Plays}}{{.Track}};{{end}}{{end}}`),
		},
	}
	templates, err := NewTemplates(fsys)
	if err != nil {
		t.Fatalf("NewTemplates() error = %v", err)
	}
	return templates
}

func newTestHandlers(t *testing.T, auth *fakeAuth, ingestor *fakeIngest, statsSvc *fakeStats) (*Handlers, *SessionStore) {
	t.Helper()
	sessions := NewSessionStore()
	logger := log.New(io.Discard)
	return NewHandlers(auth, ingestor, statsSvc, sessions, testTemplates(t), logger), sessions
}

func withSession(t *testing.T, sessions *SessionStore, r *http.Request, userID string) *Session {
	t.Helper()
	session, err := sessions.Create(r.Context(), userID, "User")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.ID})
	return session
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session, err := store.Create(ctx, "user1", "User One")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := store.Get(ctx, session.ID); got == nil || got.UserID != "user1" {
		t.Fatalf("Get() = %v, want user1 session", got)
	}

	if got := store.Get(ctx, "no-such-session"); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}

	store.Delete(ctx, session.ID)
	if got := store.Get(ctx, session.ID); got != nil {
		t.Errorf("Get() after Delete = %v, want nil", got)
	}
}

func TestSessionStore_DeleteForUser(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	s1, _ := store.Create(ctx, "user1", "User One")
	s2, _ := store.Create(ctx, "user1", "User One")
	other, _ := store.Create(ctx, "user2", "User Two")

	store.DeleteForUser(ctx, "user1")

	if store.Get(ctx, s1.ID) != nil || store.Get(ctx, s2.ID) != nil {
		t.Error("user1 sessions survived DeleteForUser")
	}
	if store.Get(ctx, other.ID) == nil {
		t.Error("user2 session was deleted")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	session, _ := store.Create(ctx, "user1", "User One")
	store.sessions[session.ID].CreatedAt = time.Now().Add(-sessionTTL - time.Minute)

	if got := store.Get(ctx, session.ID); got != nil {
		t.Errorf("Get() = %v, want nil for expired session", got)
	}
}

func TestHome(t *testing.T) {
	h, sessions := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, &fakeStats{})

	t.Run("anonymous renders landing page", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		h.Home(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if !strings.Contains(w.Body.String(), "home") {
			t.Errorf("body = %q, want landing page", w.Body.String())
		}
	})

	t.Run("signed-in redirects to rankings", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		withSession(t, sessions, r, "user1")
		w := httptest.NewRecorder()
		h.Home(w, r)

		if w.Code != http.StatusTemporaryRedirect {
			t.Fatalf("status = %d, want 307", w.Code)
		}
		if got := w.Header().Get("Location"); got != "/top-tracks" {
			t.Errorf("Location = %q, want /top-tracks", got)
		}
	})
}

func TestTopTracks(t *testing.T) {
	statsSvc := &fakeStats{tracks: []spotify.RankedTrack{{Name: "One"}, {Name: "Two"}}}
	h, sessions := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, statsSvc)

	r := httptest.NewRequest(http.MethodGet, "/top-tracks?range=medium_term", nil)
	withSession(t, sessions, r, "user1")
	w := httptest.NewRecorder()
	h.TopTracks(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "One;Two;") {
		t.Errorf("body = %q, want ranked tracks", body)
	}
}

func TestTopTracks_InvalidWindow(t *testing.T) {
	h, sessions := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, &fakeStats{})

	r := httptest.NewRequest(http.MethodGet, "/top-tracks?range=all_time", nil)
	withSession(t, sessions, r, "user1")
	w := httptest.NewRecorder()
	h.TopTracks(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTopTracks_NoSessionRedirects(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, &fakeStats{})

	r := httptest.NewRequest(http.MethodGet, "/top-tracks", nil)
	w := httptest.NewRecorder()
	h.TopTracks(w, r)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/" {
		t.Errorf("Location = %q, want /", got)
	}
}

func TestCoreError_RevokedCredentialInvalidatesSession(t *testing.T) {
	statsSvc := &fakeStats{err: token.ErrCredentialRevoked}
	h, sessions := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, statsSvc)

	r := httptest.NewRequest(http.MethodGet, "/top-tracks", nil)
	session := withSession(t, sessions, r, "user1")
	w := httptest.NewRecorder()
	h.TopTracks(w, r)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want redirect back to login", w.Code)
	}
	if sessions.Get(r.Context(), session.ID) != nil {
		t.Error("session survived credential revocation")
	}

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie was not cleared")
	}
}

func TestCoreError_RateLimited(t *testing.T) {
	statsSvc := &fakeStats{err: ingest.ErrRateLimited}
	h, sessions := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, statsSvc)

	r := httptest.NewRequest(http.MethodGet, "/top-tracks", nil)
	withSession(t, sessions, r, "user1")
	w := httptest.NewRecorder()
	h.TopTracks(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRecentlyPlayed_TransientSyncFailureStillRenders(t *testing.T) {
	ingestor := &fakeIngest{err: ingest.ErrFetchFailed}
	statsSvc := &fakeStats{plays: []db.Play{{Track: "Stored Song"}}}
	h, sessions := newTestHandlers(t, &fakeAuth{}, ingestor, statsSvc)

	r := httptest.NewRequest(http.MethodGet, "/recently-played", nil)
	withSession(t, sessions, r, "user1")
	w := httptest.NewRecorder()
	h.RecentlyPlayed(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want stored history despite sync failure", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "Stored Song") {
		t.Errorf("body = %q, want stored plays", body)
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeAuth{}, &fakeIngest{}, &fakeStats{})

	r := httptest.NewRequest(http.MethodGet, "/callback?state=evil&code=abc", nil)
	r.AddCookie(&http.Cookie{Name: "oauth_state", Value: "good"})
	w := httptest.NewRecorder()
	h.Callback(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for state mismatch", w.Code)
	}
}

func TestCallback_Success(t *testing.T) {
	auth := &fakeAuth{profile: &spotify.Profile{ID: "user1", DisplayName: "User One"}}
	ingestor := &fakeIngest{}
	h, sessions := newTestHandlers(t, auth, ingestor, &fakeStats{})

	r := httptest.NewRequest(http.MethodGet, "/callback?state=good&code=abc", nil)
	r.AddCookie(&http.Cookie{Name: "oauth_state", Value: "good"})
	w := httptest.NewRecorder()
	h.Callback(w, r)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/top-tracks" {
		t.Errorf("Location = %q, want /top-tracks", got)
	}
	if ingestor.calls != 1 {
		t.Errorf("initial sync ran %d times, want 1", ingestor.calls)
	}

	var sessionID string
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			sessionID = c.Value
		}
	}
	if sessionID == "" {
		t.Fatal("session cookie was not set")
	}
	if got := sessions.Get(context.Background(), sessionID); got == nil || got.UserID != "user1" {
		t.Errorf("session = %v, want user1", got)
	}
}
