package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/models"
)

// Session is one browser process with one isolated browsing context. Tabs
// opened from it share its cookies and fingerprint. A Session is reused
// across scrapes but must not be driven by two callers at once.
type Session struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	root     *rod.Browser // the process connection
	browser  *rod.Browser // incognito context every tab lives in
	cfg      config.BrowserConfig
	blocker  *blocker
	probe    time.Duration
	hasToken bool
	closed   bool
}

// Open launches the browser, creates the browsing context and installs the
// session cookie. It fails with SESSION_LAUNCH_FAILED.
func Open(browserCfg config.BrowserConfig, sessionCfg config.SessionConfig, scraperCfg config.ScraperConfig) (*Session, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}

	// Anti-detection posture.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-accelerated-2d-canvas"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-zygote"))
	l.Set(flags.Flag("hide-scrollbars"))
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", browserCfg.ViewportWidth, browserCfg.ViewportHeight))
	l.Set(flags.Flag("lang"), browserCfg.Locale)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionLaunch, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	root := rod.New().ControlURL(controlURL).SlowMotion(browserCfg.SlowMotion)
	if err := root.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeSessionLaunch, "failed to connect to browser", err)
	}

	browser, err := root.Incognito()
	if err != nil {
		_ = root.Close()
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeSessionLaunch, "failed to create browsing context", err)
	}

	s := &Session{
		launcher: l,
		root:     root,
		browser:  browser,
		cfg:      browserCfg,
		blocker:  newBlocker(browserCfg),
		probe:    scraperCfg.ProbeTimeout,
	}

	if sessionCfg.Cookie == "" {
		slog.Warn("no session cookie configured, browsing unauthenticated")
		return s, nil
	}
	err = browser.SetCookies([]*proto.NetworkCookieParam{{
		Name:     sessionCfg.CookieName,
		Value:    sessionCfg.Cookie,
		Domain:   sessionCfg.CookieDomain,
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
	}})
	if err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionLaunch, "failed to install session cookie", err)
	}
	s.hasToken = true
	slog.Info("session cookie installed", "name", sessionCfg.CookieName, "domain", sessionCfg.CookieDomain)
	return s, nil
}

// HasToken reports whether a session cookie was installed.
func (s *Session) HasToken() bool { return s != nil && s.hasToken }

// IsOpen reports whether tabs can still be opened.
func (s *Session) IsOpen() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.browser != nil
}

// NewTab opens a stealth-patched tab with the session fingerprint applied.
// A closed or zero Session returns SESSION_CLOSED.
func (s *Session) NewTab(ctx context.Context) (Tab, error) {
	if !s.IsOpen() {
		return nil, models.NewScrapeError(models.ErrCodeSessionClosed, "session is not open", nil)
	}

	page, err := stealth.Page(s.browser.Context(ctx))
	if err != nil {
		return nil, categorizeError(err, "failed to open tab")
	}
	// Detach the tab from ctx so it can still be closed after ctx ends.
	tab := newRodTab(page.Context(context.WithoutCancel(ctx)), s.probe)

	if err := s.dress(page); err != nil {
		_ = tab.Close()
		return nil, categorizeError(err, "failed to apply tab fingerprint")
	}
	tab.block(s.blocker)
	return tab, nil
}

// dress applies user agent, viewport, locale, timezone and extra headers.
func (s *Session) dress(page *rod.Page) error {
	err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.cfg.UserAgent,
		AcceptLanguage: s.cfg.AcceptLanguage,
	})
	if err != nil {
		return fmt.Errorf("user agent: %w", err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: s.cfg.Locale}).Call(page); err != nil {
		return fmt.Errorf("locale: %w", err)
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: s.cfg.Timezone}).Call(page); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(s.headers())}).Call(page); err != nil {
		return fmt.Errorf("headers: %w", err)
	}
	return nil
}

func (s *Session) headers() map[string]string {
	return map[string]string{
		"Accept-Language":           s.cfg.AcceptLanguage,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Priority":                  "u=1, i",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "same-origin",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
	}
}

// Close tears down the browsing context and kills the browser process.
// Calling it again, or on a zero Session, is a no-op.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.browser != nil {
		slog.Info("session shutting down: closing browsing context")
		err = s.browser.Close()
	}
	if s.root != nil {
		slog.Info("session shutting down: closing browser")
		if cerr := s.root.Close(); err == nil {
			err = cerr
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	slog.Info("session shutdown complete")
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
