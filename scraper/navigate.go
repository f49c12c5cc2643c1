package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/diag"
	"github.com/use-agent/profilr/extract"
	"github.com/use-agent/profilr/models"
)

// Challenge indicators, checked right after the page settles.
var challengeIndicators = []extract.Query{
	{Selector: "body", Text: "suspicious activity"},
	{Selector: "body", Text: "verify your identity"},
	{Selector: `[id*="captcha"]`},
}

// Controls that reveal collapsed content, tried in order.
var expandControls = []extract.Query{
	{Selector: "button", Text: "see more"},
	{Selector: "button", Text: "Show more"},
	{Selector: `[data-control-name="see_more_experiences"]`},
	{Selector: "button", Text: "Show all"},
}

// Navigator drives a tab from a bare URL to a fully revealed profile page.
type Navigator struct {
	cfg    config.ScraperConfig
	delays DelayPolicy
	sink   *diag.Sink
}

// NewNavigator returns a Navigator. A nil sink disables snapshots.
func NewNavigator(cfg config.ScraperConfig, delays DelayPolicy, sink *diag.Sink) *Navigator {
	if delays == nil {
		delays = NoDelays()
	}
	return &Navigator{cfg: cfg, delays: delays, sink: sink}
}

// VerifyLogin loads landingURL in a throwaway tab and fails with AUTH_FAILED
// when the site redirects to a sign-in page.
func (n *Navigator) VerifyLogin(ctx context.Context, b Browser, landingURL string) error {
	slog.Info("checking login status", "url", landingURL)

	tab, err := b.NewTab(ctx)
	if err != nil {
		return err
	}
	defer closeTab(tab)

	navCtx, cancel := context.WithTimeout(ctx, n.cfg.NavigationTimeout)
	defer cancel()

	if err := tab.Navigate(navCtx, landingURL, WaitNetworkIdle); err != nil {
		if !errors.Is(err, ErrLoadWait) {
			return categorizeError(err, "navigation to landing page failed")
		}
		// Feeds keep long-polling; a page that never idles is still usable.
		slog.Debug("network idle wait did not finish", "error", err)
	}
	n.sink.Snapshot(ctx, tab, "login-check")

	if current := tab.URL(); IsLoginURL(current) {
		slog.Error("session is not logged in", "url", current)
		return models.NewScrapeError(models.ErrCodeAuth, "session is not logged in; provide a valid session cookie", nil)
	}
	slog.Info("session is logged in")
	return nil
}

// LoadProfile opens profileURL in a new tab and reveals its content. On
// success the caller owns the tab. On failure the tab is already closed and
// the error carries the error-state snapshot path.
func (n *Navigator) LoadProfile(ctx context.Context, b Browser, profileURL string) (Tab, error) {
	if _, err := ValidateProfileURL(profileURL); err != nil {
		return nil, err
	}
	slog.Info("loading profile", "url", profileURL)

	if err := n.pause(ctx, DelayPreNav); err != nil {
		return nil, categorizeError(err, "canceled before navigation")
	}

	tab, err := b.NewTab(ctx)
	if err != nil {
		return nil, err
	}

	if err := n.load(ctx, tab, profileURL); err != nil {
		se := asScrapeError(err, models.ErrCodeNavigation, "profile load failed")
		se.Snapshot = n.sink.Failure(ctx, tab)
		closeTab(tab)
		return nil, se
	}
	return tab, nil
}

func (n *Navigator) load(ctx context.Context, tab Tab, profileURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, n.cfg.NavigationTimeout)
	defer cancel()

	if err := tab.Navigate(navCtx, profileURL, WaitDOMContentLoaded); err != nil {
		return categorizeError(err, "navigation to profile failed")
	}
	if err := n.pause(ctx, DelaySettle); err != nil {
		return categorizeError(err, "canceled while the page settled")
	}
	n.sink.Snapshot(ctx, tab, "profile-initial")

	if n.challenged(ctx, tab) {
		return models.NewScrapeError(models.ErrCodeChallenge, "the site is challenging this session; slow down or use another account", nil)
	}

	if err := n.scroll(ctx, tab); err != nil {
		return err
	}
	n.sink.Snapshot(ctx, tab, "after-scroll")

	if n.cfg.ExpandSections {
		if err := n.expand(ctx, tab); err != nil {
			return categorizeError(err, "canceled while expanding sections")
		}
	}
	return nil
}

func (n *Navigator) challenged(ctx context.Context, tab Tab) bool {
	if u := tab.URL(); isChallengeURL(u) {
		slog.Warn("challenge page detected", "url", u)
		return true
	}
	for _, q := range challengeIndicators {
		if tab.Visible(ctx, q) {
			slog.Warn("challenge indicator visible", "indicator", q.String())
			return true
		}
	}
	return false
}

// scroll steps down the page until the bottom or the step limit, then waits
// for lazy-loaded sections.
func (n *Navigator) scroll(ctx context.Context, tab Tab) error {
	steps := 0
	for steps < n.delays.MaxScrolls() {
		atBottom, err := tab.ScrollBy(ctx, n.delays.ScrollStep())
		if err != nil {
			return categorizeError(err, "scrolling failed")
		}
		steps++
		if atBottom {
			break
		}
		if err := n.pause(ctx, DelayScroll); err != nil {
			return categorizeError(err, "canceled while scrolling")
		}
	}
	slog.Debug("page scrolled", "steps", steps)

	if err := n.pause(ctx, DelayLazyLoad); err != nil {
		return categorizeError(err, "canceled while waiting for lazy content")
	}
	return nil
}

// expand clicks every visible expansion control. Misses and click failures
// are skipped; only a finished context stops it.
func (n *Navigator) expand(ctx context.Context, tab Tab) error {
	for _, q := range expandControls {
		if !tab.Visible(ctx, q) {
			slog.Debug("expansion control not visible", "control", q.String())
			continue
		}
		if err := tab.Click(ctx, q); err != nil {
			slog.Debug("expansion click failed", "control", q.String(), "error", err)
			continue
		}
		slog.Debug("expansion control clicked", "control", q.String())
		if err := n.pause(ctx, DelayExpand); err != nil {
			return err
		}
	}
	return nil
}

func (n *Navigator) pause(ctx context.Context, kind DelayKind) error {
	return sleep(ctx, n.delays.Delay(kind))
}

func closeTab(tab Tab) {
	if err := tab.Close(); err != nil {
		slog.Warn("failed to close tab", "error", err)
	}
}
