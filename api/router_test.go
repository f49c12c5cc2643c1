package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/models"
	"github.com/use-agent/profilr/store"
)

type stubScraper struct{}

func (stubScraper) ScrapeProfile(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	rec := models.NewProfileRecord()
	rec.ProfileURL = &profileURL
	return rec, nil
}

func (stubScraper) Stats() models.SessionStats { return models.SessionStats{Authenticated: true} }

// failingScraper fails every page scrape but can read the profile API.
type failingScraper struct{ stubScraper }

func (failingScraper) ScrapeProfile(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	return nil, models.NewScrapeError(models.ErrCodeNavigation, "page did not load", nil)
}

func (failingScraper) FetchProfileAPI(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	rec := models.NewProfileRecord()
	rec.Name = models.Str("Ada Lovelace")
	return rec, nil
}

type openSession struct{}

func (openSession) IsOpen() bool { return true }

func newTestRouter(t *testing.T, auth config.AuthConfig, rl config.RateLimitConfig) *gin.Engine {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      auth,
		RateLimit: rl,
		Scraper:   config.ScraperConfig{ExtractMode: "live"},
	}
	return NewRouter(stubScraper{}, openSession{}, st, cfg, nil, nil, time.Now())
}

func scrapeRequest(header, value string) *http.Request {
	body := []byte(`{"url":"https://www.linkedin.com/in/ada/"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profile", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set(header, value)
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) models.ProfileResponse {
	t.Helper()
	var resp models.ProfileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestRouter_Auth(t *testing.T) {
	r := newTestRouter(t,
		config.AuthConfig{Enabled: true, APIKeys: []string{"k1", "k2"}},
		config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	)

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{name: "missing key", status: http.StatusUnauthorized},
		{name: "wrong key", header: "X-API-Key", value: "nope", status: http.StatusUnauthorized},
		{name: "x-api-key", header: "X-API-Key", value: "k2", status: http.StatusOK},
		{name: "bearer", header: "Authorization", value: "Bearer k1", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, scrapeRequest(tt.header, tt.value))
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, models.ErrCodeUnauthorized, decode(t, w).Error.Code)
			}
		})
	}

	t.Run("saved profiles need a key too", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/profile/ada", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRouter_HealthSkipsAuth(t *testing.T) {
	r := newTestRouter(t,
		config.AuthConfig{Enabled: true, APIKeys: []string{"k1"}},
		config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestRouter_RateLimit(t *testing.T) {
	r := newTestRouter(t,
		config.AuthConfig{Enabled: false},
		config.RateLimitConfig{RequestsPerSecond: 0.2, Burst: 2},
	)

	for i := range 2 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, scrapeRequest("", ""))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, scrapeRequest("", ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decode(t, w).Error.Code)

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 5, retry, 1)

	t.Run("saved profiles are not rate limited", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/profile/ada", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouter_APIFallback(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		t.Run(strconv.FormatBool(enabled), func(t *testing.T) {
			st, err := store.NewFileStore(t.TempDir())
			require.NoError(t, err)
			cfg := &config.Config{
				Server:    config.ServerConfig{Mode: gin.TestMode},
				RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
				Scraper:   config.ScraperConfig{ExtractMode: "live", APIFallback: enabled},
			}
			r := NewRouter(failingScraper{}, openSession{}, st, cfg, nil, nil, time.Now())

			w := httptest.NewRecorder()
			r.ServeHTTP(w, scrapeRequest("", ""))
			resp := decode(t, w)

			if !enabled {
				assert.Equal(t, http.StatusBadGateway, w.Code)
				assert.Equal(t, models.ErrCodeNavigation, resp.Error.Code)
				return
			}
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "api-parser", resp.Source)
			require.NotNil(t, resp.Data)
			assert.Equal(t, "Ada Lovelace", *resp.Data.Name)
		})
	}
}
