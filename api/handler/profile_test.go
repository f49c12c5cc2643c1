package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/profilr/cache"
	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/models"
	"github.com/use-agent/profilr/store"
	"github.com/use-agent/profilr/webhook"
)

const adaURL = "https://www.linkedin.com/in/ada-lovelace/"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScraper struct {
	mu    sync.Mutex
	err   error
	calls int
	stats models.SessionStats
}

func (f *fakeScraper) ScrapeProfile(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := models.NewProfileRecord()
	name := "Ada Lovelace"
	rec.Name = &name
	rec.ProfileURL = &profileURL
	rec.Skills = []string{"Mathematics"}
	rec.ScrapedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return rec, nil
}

func (f *fakeScraper) Stats() models.SessionStats { return f.stats }

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeFallback struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeFallback) FetchProfileAPI(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec := models.NewProfileRecord()
	rec.Name = models.Str("Ada Lovelace")
	rec.Headline = models.Str("Mathematician")
	return rec, nil
}

type brokenStore struct{}

func (brokenStore) Save(string, *models.ProfileRecord) (string, error) {
	return "", errors.New("disk full")
}

func (brokenStore) Load(string) (*models.ProfileRecord, error) {
	return nil, errors.New("permission denied")
}

func newEngine(sc ProfileScraper, st ProfileStore, cc *cache.Cache) *gin.Engine {
	r := gin.New()
	r.POST("/profile", ScrapeProfile(sc, nil, st, cc, nil, "live"))
	r.GET("/profile/:handle", GetProfile(st))
	return r
}

func postProfile(t *testing.T, r http.Handler, body any) (*httptest.ResponseRecorder, models.ProfileResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/profile", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp models.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func newStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestScrapeProfile_Success(t *testing.T) {
	sc := &fakeScraper{}
	w, resp := postProfile(t, newEngine(sc, newStore(t), nil), models.ProfileRequest{URL: adaURL})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ScrapeID)
	assert.Equal(t, "scraper", resp.Source)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "Ada Lovelace", *resp.Data.Name)
	assert.Empty(t, resp.SavedTo)
	assert.Empty(t, resp.CacheStatus)
	assert.Nil(t, resp.Error)
}

func TestScrapeProfile_SaveThenGet(t *testing.T) {
	st := newStore(t)
	r := newEngine(&fakeScraper{}, st, nil)

	_, resp := postProfile(t, r, models.ProfileRequest{URL: adaURL, Save: true})
	require.True(t, resp.Success)
	assert.FileExists(t, resp.SavedTo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile/ada-lovelace", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got models.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "store", got.Source)
	require.NotNil(t, got.Data)
	assert.Equal(t, []string{"Mathematics"}, got.Data.Skills)
	assert.Empty(t, got.Data.Experiences)
}

func TestScrapeProfile_ResaveReportsChange(t *testing.T) {
	r := newEngine(&fakeScraper{}, newStore(t), nil)

	_, first := postProfile(t, r, models.ProfileRequest{URL: adaURL, Save: true})
	assert.Nil(t, first.Changed, "nothing saved before")

	_, second := postProfile(t, r, models.ProfileRequest{URL: adaURL, Save: true})
	require.NotNil(t, second.Changed)
	assert.False(t, *second.Changed)
}

func TestScrapeProfile_Webhook(t *testing.T) {
	events := make(chan webhook.Event, 2)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev)) {
			events <- ev
		}
	}))
	defer hook.Close()

	wh := webhook.New(config.WebhookConfig{Timeout: time.Second})
	defer wh.Close()

	tests := []struct {
		name  string
		sc    *fakeScraper
		event string
	}{
		{name: "success", sc: &fakeScraper{}, event: webhook.EventScraped},
		{name: "failure", sc: &fakeScraper{err: models.NewScrapeError(models.ErrCodeChallenge, "challenge", nil)}, event: webhook.EventFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/profile", ScrapeProfile(tt.sc, nil, newStore(t), nil, wh, "live"))
			_, resp := postProfile(t, r, models.ProfileRequest{URL: adaURL, WebhookURL: hook.URL})

			select {
			case ev := <-events:
				assert.Equal(t, tt.event, ev.Type)
				assert.Equal(t, resp.ScrapeID, ev.ScrapeID)
			case <-time.After(5 * time.Second):
				t.Fatal("no webhook delivered")
			}
		})
	}
}

func TestScrapeProfile_SaveFailureKeepsRecord(t *testing.T) {
	w, resp := postProfile(t, newEngine(&fakeScraper{}, brokenStore{}, nil), models.ProfileRequest{URL: adaURL, Save: true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.SavedTo)
}

func TestScrapeProfile_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body any
		code string
	}{
		{name: "missing url", body: map[string]any{"save": true}, code: models.ErrCodeInvalidInput},
		{name: "negative max age", body: map[string]any{"url": adaURL, "max_age": -1}, code: models.ErrCodeInvalidInput},
		{name: "bad webhook url", body: map[string]any{"url": adaURL, "webhook_url": "not a url"}, code: models.ErrCodeInvalidInput},
		{name: "company page", body: models.ProfileRequest{URL: "https://www.linkedin.com/company/babbage"}, code: models.ErrCodeInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScraper{}
			w, resp := postProfile(t, newEngine(sc, newStore(t), nil), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Zero(t, sc.callCount())
		})
	}
}

func TestScrapeProfile_ErrorStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{models.ErrCodeAuth, http.StatusUnauthorized},
		{models.ErrCodeChallenge, http.StatusForbidden},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeExtraction, http.StatusInternalServerError},
		{models.ErrCodeSessionClosed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			se := models.NewScrapeError(tt.code, "boom", nil)
			se.Snapshot = "debug/error-state-1.png"
			w, resp := postProfile(t, newEngine(&fakeScraper{err: se}, newStore(t), nil), models.ProfileRequest{URL: adaURL})

			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "debug/error-state-1.png", resp.Error.Snapshot)
		})
	}

	t.Run("uncoded error", func(t *testing.T) {
		w, resp := postProfile(t, newEngine(&fakeScraper{err: errors.New("plain")}, newStore(t), nil), models.ProfileRequest{URL: adaURL})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, models.ErrCodeInternal, resp.Error.Code)
	})
}

func TestScrapeProfile_Fallback(t *testing.T) {
	navErr := models.NewScrapeError(models.ErrCodeNavigation, "page did not load", nil)

	t.Run("used when the scrape fails", func(t *testing.T) {
		fb := &fakeFallback{}
		st := newStore(t)
		r := gin.New()
		r.POST("/profile", ScrapeProfile(&fakeScraper{err: navErr}, fb, st, nil, nil, "live"))

		w, resp := postProfile(t, r, models.ProfileRequest{URL: adaURL, Save: true})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)
		assert.Equal(t, "api-parser", resp.Source)
		assert.Equal(t, "Mathematician", *resp.Data.Headline)
		assert.FileExists(t, resp.SavedTo)
		assert.Equal(t, 1, fb.calls)
	})

	t.Run("scrape error kept when it fails too", func(t *testing.T) {
		fb := &fakeFallback{err: errors.New("api refused")}
		r := gin.New()
		r.POST("/profile", ScrapeProfile(&fakeScraper{err: navErr}, fb, newStore(t), nil, nil, "live"))

		w, resp := postProfile(t, r, models.ProfileRequest{URL: adaURL})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, models.ErrCodeNavigation, resp.Error.Code)
		assert.Equal(t, 1, fb.calls)
	})

	t.Run("not used for a closed session", func(t *testing.T) {
		fb := &fakeFallback{}
		r := gin.New()
		closed := models.NewScrapeError(models.ErrCodeSessionClosed, "session is not open", nil)
		r.POST("/profile", ScrapeProfile(&fakeScraper{err: closed}, fb, newStore(t), nil, nil, "live"))

		_, resp := postProfile(t, r, models.ProfileRequest{URL: adaURL})
		assert.Equal(t, models.ErrCodeSessionClosed, resp.Error.Code)
		assert.Zero(t, fb.calls)
	})

	t.Run("not used when the scrape succeeds", func(t *testing.T) {
		fb := &fakeFallback{}
		r := gin.New()
		r.POST("/profile", ScrapeProfile(&fakeScraper{}, fb, newStore(t), nil, nil, "live"))

		_, resp := postProfile(t, r, models.ProfileRequest{URL: adaURL})
		assert.Equal(t, "scraper", resp.Source)
		assert.Zero(t, fb.calls)
	})
}

func TestScrapeProfile_Cache(t *testing.T) {
	sc := &fakeScraper{}
	cc := cache.New(10)
	defer cc.Close()
	r := newEngine(sc, newStore(t), cc)

	_, first := postProfile(t, r, models.ProfileRequest{URL: adaURL, MaxAge: 60_000})
	assert.Equal(t, "miss", first.CacheStatus)

	_, second := postProfile(t, r, models.ProfileRequest{URL: "https://linkedin.com/in/ada-lovelace", MaxAge: 60_000})
	assert.Equal(t, "hit", second.CacheStatus)
	assert.NotEqual(t, first.ScrapeID, second.ScrapeID)
	assert.Equal(t, 1, sc.callCount())

	_, third := postProfile(t, r, models.ProfileRequest{URL: adaURL})
	assert.Empty(t, third.CacheStatus)
	assert.Equal(t, 2, sc.callCount(), "max_age 0 always scrapes")
}

func TestScrapeProfile_CacheHitStillSaves(t *testing.T) {
	sc := &fakeScraper{}
	cc := cache.New(10)
	defer cc.Close()
	st := newStore(t)
	r := newEngine(sc, st, cc)

	_, first := postProfile(t, r, models.ProfileRequest{URL: adaURL, MaxAge: 60_000})
	require.Equal(t, "miss", first.CacheStatus)
	assert.Empty(t, first.SavedTo)

	_, second := postProfile(t, r, models.ProfileRequest{URL: adaURL, MaxAge: 60_000, Save: true})
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, 1, sc.callCount())
	assert.FileExists(t, second.SavedTo)
	assert.Nil(t, second.Changed, "nothing saved before")

	saved, err := st.Load("ada-lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", *saved.Name)

	_, third := postProfile(t, r, models.ProfileRequest{URL: adaURL, MaxAge: 60_000})
	assert.Equal(t, "hit", third.CacheStatus)
	assert.Empty(t, third.SavedTo, "save outcome is not replayed")
	assert.Nil(t, third.Changed)
}

func TestScrapeProfile_CachedSaveNotReplayed(t *testing.T) {
	cc := cache.New(10)
	defer cc.Close()
	r := newEngine(&fakeScraper{}, newStore(t), cc)

	_, first := postProfile(t, r, models.ProfileRequest{URL: adaURL, MaxAge: 60_000, Save: true})
	require.Equal(t, "miss", first.CacheStatus)
	require.NotEmpty(t, first.SavedTo)

	_, second := postProfile(t, r, models.ProfileRequest{URL: adaURL, MaxAge: 60_000})
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Empty(t, second.SavedTo)
	assert.Nil(t, second.Changed)
}

func TestGetProfile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		st     ProfileStore
		handle string
		status int
		code   string
	}{
		{name: "missing", st: newStore(t), handle: "nobody", status: http.StatusNotFound, code: models.ErrCodeNotFound},
		{name: "invalid handle", st: newStore(t), handle: "a%5Cb", status: http.StatusBadRequest, code: models.ErrCodeInvalidInput},
		{name: "read failure", st: brokenStore{}, handle: "ada", status: http.StatusInternalServerError, code: models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(&fakeScraper{}, tt.st, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile/"+tt.handle, nil))

			assert.Equal(t, tt.status, w.Code)
			var resp models.ProfileResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

type sessionState bool

func (s sessionState) IsOpen() bool { return bool(s) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		open   bool
		authed bool
		status string
	}{
		{name: "healthy", open: true, authed: true, status: "healthy"},
		{name: "not logged in", open: true, authed: false, status: "degraded"},
		{name: "closed", open: false, authed: true, status: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScraper{stats: models.SessionStats{Authenticated: tt.authed, TotalScrapes: 3}}
			r := gin.New()
			r.GET("/health", Health(sc, sessionState(tt.open), time.Now()))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var resp models.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.open, resp.SessionStats.Open)
			assert.Equal(t, int64(3), resp.SessionStats.TotalScrapes)
			assert.Equal(t, Version, resp.Version)
		})
	}
}
