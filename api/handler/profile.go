package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/profilr/cache"
	"github.com/use-agent/profilr/models"
	"github.com/use-agent/profilr/scraper"
	"github.com/use-agent/profilr/simhash"
	"github.com/use-agent/profilr/store"
	"github.com/use-agent/profilr/webhook"
)

// ProfileScraper is the part of *scraper.Scraper the handlers use.
type ProfileScraper interface {
	ScrapeProfile(ctx context.Context, profileURL string) (*models.ProfileRecord, error)
	Stats() models.SessionStats
}

// ProfileStore is the part of *store.FileStore the handlers use.
type ProfileStore interface {
	Save(handle string, rec *models.ProfileRecord) (string, error)
	Load(handle string) (*models.ProfileRecord, error)
}

// ProfileFallback reads a profile without the rendered page. It is tried
// when the page scrape fails.
type ProfileFallback interface {
	FetchProfileAPI(ctx context.Context, profileURL string) (*models.ProfileRecord, error)
}

var (
	_ ProfileScraper  = (*scraper.Scraper)(nil)
	_ ProfileFallback = (*scraper.Scraper)(nil)
)

// ScrapeProfile returns a handler for POST /api/v1/profile.
//
// The server owns a single browser session, so scrapes are serialized here;
// a request waits for the one in front of it. Flow:
//  1. Parse & validate request.
//  2. Cache lookup when max_age > 0; a hit is still saved when asked.
//  3. Scraper.ScrapeProfile under the session lock  (records scrape_ms),
//     then the fallback when one is configured and the scrape failed.
//  4. Optional save, cache store, respond.
//  5. Webhook notification when requested.
func ScrapeProfile(sc ProfileScraper, fb ProfileFallback, st ProfileStore, cc *cache.Cache, wh *webhook.Notifier, extractMode string) gin.HandlerFunc {
	var session sync.Mutex

	return func(c *gin.Context) {
		totalStart := time.Now()
		scrapeID := uuid.NewString()
		log := slog.With("scrape_id", scrapeID)

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, scrapeID, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}
		if _, err := scraper.ValidateProfileURL(req.URL); err != nil {
			respondError(c, scrapeID, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}
		handle := store.HandleFromURL(req.URL)
		cacheKey := cache.Key(handle, extractMode)

		// ── 2. Cache lookup ────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				resp := *cached
				resp.ScrapeID = scrapeID
				resp.CacheStatus = "hit"
				log.Info("profile served from cache", "handle", handle)
				if req.Save {
					persist(st, log, handle, &resp)
				}
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				wh.Notify(req.WebhookURL, webhook.EventScraped, scrapeID, resp)
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		session.Lock()
		scrapeStart := time.Now()
		source := "scraper"
		rec, err := sc.ScrapeProfile(c.Request.Context(), req.URL)
		if err != nil && fb != nil && fallbackAllowed(c.Request.Context(), err) {
			log.Warn("profile scrape failed, trying profile API", "url", req.URL, "code", models.CodeOf(err))
			if apiRec, apiErr := fb.FetchProfileAPI(c.Request.Context(), req.URL); apiErr != nil {
				log.Warn("profile API fallback failed", "code", models.CodeOf(apiErr), "error", apiErr)
			} else {
				rec, err, source = apiRec, nil, "api-parser"
			}
		}
		scrapeMs := time.Since(scrapeStart).Milliseconds()
		session.Unlock()

		if err != nil {
			log.Warn("profile scrape failed", "url", req.URL, "code", models.CodeOf(err))
			errResp := respondError(c, scrapeID, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				ScrapeMs: scrapeMs,
			})
			wh.Notify(req.WebhookURL, webhook.EventFailed, scrapeID, errResp)
			return
		}

		resp := &models.ProfileResponse{
			Success:  true,
			ScrapeID: scrapeID,
			Source:   source,
			Data:     rec,
		}

		// ── 4. Save ────────────────────────────────────────────────
		if req.Save {
			persist(st, log, handle, resp)
		}

		// ── 5. Cache store ──────────────────────────────────────────
		// Save outcomes belong to this request, not to later hits.
		if cc != nil && req.MaxAge > 0 {
			cached := *resp
			cached.SavedTo = ""
			cached.Changed = nil
			cc.Set(cacheKey, &cached)
			resp.CacheStatus = "miss"
		}

		resp.Timing = models.TimingInfo{
			TotalMs:  time.Since(totalStart).Milliseconds(),
			ScrapeMs: scrapeMs,
		}
		wh.Notify(req.WebhookURL, webhook.EventScraped, scrapeID, resp)
		c.JSON(http.StatusOK, resp)
	}
}

// fallbackAllowed reports whether a failed scrape may be retried through the
// fallback. A dead session or a gone client cannot be helped by it; the
// scrape error is what the client sees when the fallback fails too.
func fallbackAllowed(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch models.CodeOf(err) {
	case models.ErrCodeInvalidURL, models.ErrCodeSessionClosed:
		return false
	}
	return true
}

// persist saves resp.Data under handle and records the path and change flag
// on resp. A failed save keeps the record in the response.
func persist(st ProfileStore, log *slog.Logger, handle string, resp *models.ProfileResponse) {
	resp.SavedTo = ""
	resp.Changed = nil
	if prev, err := st.Load(handle); err == nil {
		changed := simhash.Changed(prev, resp.Data)
		resp.Changed = &changed
	}
	path, err := st.Save(handle, resp.Data)
	if err != nil {
		log.Error("failed to save profile", "handle", handle, "error", err)
		return
	}
	resp.SavedTo = path
	log.Info("profile saved", "handle", handle, "path", path)
}

// GetProfile returns a handler for GET /api/v1/profile/:handle, serving a
// previously saved record.
func GetProfile(st ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		handle := c.Param("handle")

		rec, err := st.Load(handle)
		if err != nil {
			var se *models.ScrapeError
			switch {
			case errors.Is(err, store.ErrNotFound):
				se = models.NewScrapeError(models.ErrCodeNotFound, "no saved profile for handle "+handle, err)
			case errors.Is(err, store.ErrInvalidHandle):
				se = models.NewScrapeError(models.ErrCodeInvalidInput, "invalid profile handle", err)
			default:
				se = models.NewScrapeError(models.ErrCodeInternal, "failed to read saved profile", err)
			}
			respondError(c, "", se, models.TimingInfo{TotalMs: time.Since(start).Milliseconds()})
			return
		}

		c.JSON(http.StatusOK, models.ProfileResponse{
			Success: true,
			Source:  "store",
			Data:    rec,
			Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		})
	}
}

// respondError maps a ScrapeError to the correct HTTP status code, writes
// a structured JSON error response and returns it.
func respondError(c *gin.Context, scrapeID string, err error, timing models.TimingInfo) models.ProfileResponse {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	resp := models.ProfileResponse{
		Success:  false,
		ScrapeID: scrapeID,
		Error:    scrapeErr.ToDetail(),
		Timing:   timing,
	}
	c.JSON(mapErrorToStatus(scrapeErr), resp)
	return resp
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidURL:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized, models.ErrCodeAuth:
		return http.StatusUnauthorized // 401
	case models.ErrCodeChallenge:
		return http.StatusForbidden // 403
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
