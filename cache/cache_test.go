package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/use-agent/profilr/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestCache(t *testing.T, maxEntries int) (*Cache, *time.Time) {
	t.Helper()
	c := New(maxEntries)
	t.Cleanup(c.Close)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_GetRespectsMaxAge(t *testing.T) {
	c, now := newTestCache(t, 10)
	resp := &models.ProfileResponse{Success: true, Source: "scraper"}
	key := Key("ada", "live")
	c.Set(key, resp)

	_, hit := c.Get(key, 0)
	assert.False(t, hit, "max_age 0 never reads the cache")

	got, hit := c.Get(key, 1000)
	assert.True(t, hit)
	assert.Same(t, resp, got)

	*now = now.Add(2 * time.Second)
	_, hit = c.Get(key, 1000)
	assert.False(t, hit)
}

func TestCache_KeyDependsOnMode(t *testing.T) {
	assert.Equal(t, Key("ada", "live"), Key("ada", "live"))
	assert.NotEqual(t, Key("ada", "live"), Key("ada", "snapshot"))
	assert.NotEqual(t, Key("ada", "live"), Key("grace", "live"))
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set("a", &models.ProfileResponse{})
	c.Set("b", &models.ProfileResponse{})
	c.Set("b", &models.ProfileResponse{})
	assert.Equal(t, 2, c.Len(), "overwriting does not evict")

	c.Set("c", &models.ProfileResponse{})
	assert.Equal(t, 2, c.Len())
	_, hit := c.Get("c", 1000)
	assert.True(t, hit)
}

func TestCache_EvictBefore(t *testing.T) {
	c, now := newTestCache(t, 10)
	c.Set("old", &models.ProfileResponse{})
	*now = now.Add(2 * time.Hour)
	c.Set("new", &models.ProfileResponse{})

	c.evictBefore(now.Add(-maxRetention))
	assert.Equal(t, 1, c.Len())
	_, hit := c.Get("new", 1000)
	assert.True(t, hit)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(1)
	c.Close()
	c.Close()
}
