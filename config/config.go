package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Browser     BrowserConfig
	Scraper     ScraperConfig
	Humanize    HumanizeConfig
	Session     SessionConfig
	Diagnostics DiagnosticsConfig
	Storage     StorageConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Webhook     WebhookConfig
	Log         LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance and the fingerprint
// every tab presents.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox layers (needed in containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// SlowMotion delays every input action by this amount.
	SlowMotion time.Duration // default: 100ms

	UserAgent      string
	AcceptLanguage string // default: "en-US,en;q=0.9"
	ViewportWidth  int    // default: 1280
	ViewportHeight int    // default: 800
	Locale         string // default: "en-US"
	Timezone       string // default: "America/New_York"

	// BlockedResources lists resource types every tab refuses to load
	// ("Image", "Stylesheet", "Font", "Media"). Image blocking keeps photo
	// URLs intact since they are read from attributes.
	BlockedResources []string // default: ["Media", "Font"]

	// BlockTrackers drops requests to known ad and analytics hosts.
	BlockTrackers bool // default: true
}

// ScraperConfig controls navigation and extraction behaviour.
type ScraperConfig struct {
	// NavigationTimeout bounds each page navigation, including the login check.
	NavigationTimeout time.Duration // default: 30s

	// ProbeTimeout is how long a field lookup waits for its element before
	// treating the field as absent.
	ProbeTimeout time.Duration // default: 1500ms

	// ExpandSections toggles the "show more" click pass.
	ExpandSections bool // default: true

	// ExtractMode is "live" (query the tab) or "snapshot" (parse rendered HTML once).
	ExtractMode string // default: "live"

	// APIFallback lets the HTTP handler read a profile through the site's
	// internal JSON API when the page scrape fails.
	APIFallback bool // default: false
}

// HumanizeConfig holds the ranges randomized delays are drawn from.
type HumanizeConfig struct {
	PreNavMin      time.Duration // default: 500ms
	PreNavMax      time.Duration // default: 1500ms
	Settle         time.Duration // default: 2s
	ScrollStepMin  int           // default: 250 (px)
	ScrollStepMax  int           // default: 350 (px)
	ScrollDelayMin time.Duration // default: 300ms
	ScrollDelayMax time.Duration // default: 500ms
	MaxScrolls     int           // default: 10
	LazyLoadPause  time.Duration // default: 1s
	ExpandPause    time.Duration // default: 500ms
}

// SessionConfig carries the authenticated session token and the site
// endpoints the login check relies on.
type SessionConfig struct {
	// Cookie is the li_at session cookie value. Empty means unauthenticated.
	Cookie       string
	CookieName   string // default: "li_at"
	CookieDomain string // default: ".linkedin.com"

	// LandingURL is a page only reachable while logged in.
	LandingURL string // default: "https://www.linkedin.com/feed/"
}

// DiagnosticsConfig controls the operator-facing snapshot side channel.
type DiagnosticsConfig struct {
	Enabled bool   // default: false
	Dir     string // default: "debug"

	// DumpPages additionally writes a markdown rendering of the page on errors.
	DumpPages bool // default: false
}

// StorageConfig controls where scraped profiles are persisted.
type StorageConfig struct {
	ProfilesDir string // default: "profiles"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 0.2

	// Burst is the maximum burst size per API key.
	Burst int // default: 2
}

// CacheConfig controls the handler-side profile response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500
}

// WebhookConfig controls delivery of scrape outcomes to request-supplied URLs.
type WebhookConfig struct {
	// Secret signs every body with HMAC-SHA256 when set.
	Secret string

	// Timeout bounds each delivery attempt.
	Timeout time.Duration // default: 10s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"

	// File, when set, receives a rotated copy of every log line.
	File       string
	MaxSizeMB  int // default: 50
	MaxBackups int // default: 3
	MaxAgeDays int // default: 14
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PROFILR_HOST", "0.0.0.0"),
			Port: envIntOr("PROFILR_PORT", 8080),
			Mode: envOr("PROFILR_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("PROFILR_HEADLESS", true),
			NoSandbox:      envBoolOr("PROFILR_NO_SANDBOX", true),
			BrowserBin:     os.Getenv("PROFILR_BROWSER_BIN"),
			SlowMotion:     envDurationOr("PROFILR_SLOW_MO", 100*time.Millisecond),
			UserAgent:      envOr("PROFILR_USER_AGENT", defaultUserAgent),
			AcceptLanguage: envOr("PROFILR_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			ViewportWidth:  envIntOr("PROFILR_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("PROFILR_VIEWPORT_HEIGHT", 800),
			Locale:         envOr("PROFILR_LOCALE", "en-US"),
			Timezone:       envOr("PROFILR_TIMEZONE", "America/New_York"),

			BlockedResources: envSliceOr("PROFILR_BLOCK_RESOURCES", []string{"Media", "Font"}),
			BlockTrackers:    envBoolOr("PROFILR_BLOCK_TRACKERS", true),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("PROFILR_NAV_TIMEOUT", 30*time.Second),
			ProbeTimeout:      envDurationOr("PROFILR_PROBE_TIMEOUT", 1500*time.Millisecond),
			ExpandSections:    envBoolOr("PROFILR_EXPAND_SECTIONS", true),
			ExtractMode:       envOr("PROFILR_EXTRACT_MODE", "live"),
			APIFallback:       envBoolOr("PROFILR_API_FALLBACK", false),
		},
		Humanize: DefaultHumanize(),
		Session: SessionConfig{
			Cookie:       os.Getenv("LINKEDIN_SESSION_COOKIE"),
			CookieName:   envOr("PROFILR_COOKIE_NAME", "li_at"),
			CookieDomain: envOr("PROFILR_COOKIE_DOMAIN", ".linkedin.com"),
			LandingURL:   envOr("PROFILR_LANDING_URL", "https://www.linkedin.com/feed/"),
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:   envBoolOr("PROFILR_DEBUG", false),
			Dir:       envOr("PROFILR_DEBUG_DIR", "debug"),
			DumpPages: envBoolOr("PROFILR_DEBUG_DUMP_PAGES", false),
		},
		Storage: StorageConfig{
			ProfilesDir: envOr("PROFILR_PROFILES_DIR", "profiles"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PROFILR_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PROFILR_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PROFILR_RATE_RPS", 0.2),
			Burst:             envIntOr("PROFILR_RATE_BURST", 2),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PROFILR_CACHE_MAX_ENTRIES", 500),
		},
		Webhook: WebhookConfig{
			Secret:  os.Getenv("PROFILR_WEBHOOK_SECRET"),
			Timeout: envDurationOr("PROFILR_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:      envOr("PROFILR_LOG_LEVEL", "info"),
			Format:     envOr("PROFILR_LOG_FORMAT", "json"),
			File:       os.Getenv("PROFILR_LOG_FILE"),
			MaxSizeMB:  envIntOr("PROFILR_LOG_MAX_SIZE_MB", 50),
			MaxBackups: envIntOr("PROFILR_LOG_MAX_BACKUPS", 3),
			MaxAgeDays: envIntOr("PROFILR_LOG_MAX_AGE_DAYS", 14),
		},
	}
}

// DefaultHumanize returns the delay ranges, overridable per field from the
// environment.
func DefaultHumanize() HumanizeConfig {
	return HumanizeConfig{
		PreNavMin:      envDurationOr("PROFILR_PRENAV_MIN", 500*time.Millisecond),
		PreNavMax:      envDurationOr("PROFILR_PRENAV_MAX", 1500*time.Millisecond),
		Settle:         envDurationOr("PROFILR_SETTLE", 2*time.Second),
		ScrollStepMin:  envIntOr("PROFILR_SCROLL_STEP_MIN", 250),
		ScrollStepMax:  envIntOr("PROFILR_SCROLL_STEP_MAX", 350),
		ScrollDelayMin: envDurationOr("PROFILR_SCROLL_DELAY_MIN", 300*time.Millisecond),
		ScrollDelayMax: envDurationOr("PROFILR_SCROLL_DELAY_MAX", 500*time.Millisecond),
		MaxScrolls:     envIntOr("PROFILR_MAX_SCROLLS", 10),
		LazyLoadPause:  envDurationOr("PROFILR_LAZY_LOAD_PAUSE", time.Second),
		ExpandPause:    envDurationOr("PROFILR_EXPAND_PAUSE", 500*time.Millisecond),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
