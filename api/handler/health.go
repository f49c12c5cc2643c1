package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/profilr/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionState reports whether the browser session can still open tabs.
type SessionState interface {
	IsOpen() bool
}

// Health returns a handler for GET /api/v1/health.
//
// Reports "degraded" when the session is closed or the login check did not
// pass; scrapes would then fail or hit the auth wall.
func Health(sc ProfileScraper, sess SessionState, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()
		stats.Open = sess.IsOpen()

		status := "healthy"
		if !stats.Open || !stats.Authenticated {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
