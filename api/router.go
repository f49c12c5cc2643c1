package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/profilr/api/handler"
	"github.com/use-agent/profilr/api/middleware"
	"github.com/use-agent/profilr/cache"
	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/webhook"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestLogger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc handler.ProfileScraper, sess handler.SessionState, st handler.ProfileStore, cfg *config.Config, cc *cache.Cache, wh *webhook.Notifier, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	v1 := r.Group("/api/v1")

	// Health needs no auth.
	v1.GET("/health", handler.Health(sc, sess, startTime))

	// Profile routes require a key when auth is enabled.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}

	// Saved records are cheap to serve and stay outside the scrape budget.
	protected.GET("/profile/:handle", handler.GetProfile(st))

	var fb handler.ProfileFallback
	if cfg.Scraper.APIFallback {
		fb, _ = sc.(handler.ProfileFallback)
	}

	scrapes := protected.Group("")
	scrapes.Use(middleware.RateLimit(cfg.RateLimit))
	scrapes.POST("/profile", handler.ScrapeProfile(sc, fb, st, cc, wh, cfg.Scraper.ExtractMode))

	return r
}
