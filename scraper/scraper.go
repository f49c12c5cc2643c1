package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/diag"
	"github.com/use-agent/profilr/extract"
	"github.com/use-agent/profilr/models"
)

// Extraction modes.
const (
	ModeLive     = "live"     // extractors query the tab
	ModeSnapshot = "snapshot" // extractors read a parsed copy of the rendered HTML
)

// Scraper composes navigation and assembly over one Browser. It does not
// serialize calls; callers sharing a Session must.
type Scraper struct {
	browser   Browser
	nav       *Navigator
	assembler *Assembler
	sink      *diag.Sink
	mode      string
	landing   string

	verified atomic.Bool
	active   atomic.Int32
	total    atomic.Int64
	failed   atomic.Int64
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithDelays replaces the delay policy (RandomDelays by default).
func WithDelays(d DelayPolicy) Option {
	return func(s *Scraper) { s.nav.delays = d }
}

// WithSink attaches a diagnostics sink.
func WithSink(sink *diag.Sink) Option {
	return func(s *Scraper) {
		s.sink = sink
		s.nav.sink = sink
	}
}

// New builds a Scraper over b.
func New(b Browser, cfg *config.Config, opts ...Option) *Scraper {
	s := &Scraper{
		browser:   b,
		nav:       NewNavigator(cfg.Scraper, RandomDelays(cfg.Humanize), nil),
		assembler: NewAssembler(),
		mode:      cfg.Scraper.ExtractMode,
		landing:   cfg.Session.LandingURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyLogin checks the session against the configured landing page and
// records the outcome for Stats.
func (s *Scraper) VerifyLogin(ctx context.Context) error {
	err := s.nav.VerifyLogin(ctx, s.browser, s.landing)
	s.verified.Store(err == nil)
	return err
}

// ScrapeProfile loads profileURL and extracts its record. The tab is closed
// on every path before it returns.
func (s *Scraper) ScrapeProfile(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	s.active.Add(1)
	defer s.active.Add(-1)
	s.total.Add(1)

	rec, err := s.scrape(ctx, profileURL)
	if err != nil {
		s.failed.Add(1)
		slog.Error("profile scrape failed", "url", profileURL, "code", models.CodeOf(err), "error", err)
		return nil, err
	}
	return rec, nil
}

func (s *Scraper) scrape(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	tab, err := s.nav.LoadProfile(ctx, s.browser, profileURL)
	if err != nil {
		return nil, err
	}
	defer closeTab(tab)

	page, err := s.page(ctx, tab)
	if err != nil {
		se := asScrapeError(err, models.ErrCodeExtraction, "failed to capture page")
		se.Snapshot = s.sink.Failure(ctx, tab)
		return nil, se
	}

	rec, err := s.assembler.Assemble(ctx, page)
	if err != nil {
		se := asScrapeError(err, models.ErrCodeExtraction, "extraction failed")
		se.Snapshot = s.sink.Failure(ctx, tab)
		return nil, se
	}
	s.sink.Snapshot(ctx, tab, "after-extraction")
	return rec, nil
}

// page returns what the extractors read in the configured mode.
func (s *Scraper) page(ctx context.Context, tab Tab) (extract.Page, error) {
	if s.mode != ModeSnapshot {
		return tab, nil
	}
	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to read rendered HTML", err)
	}
	snap, err := extract.NewSnapshot(html, tab.URL())
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse rendered HTML", err)
	}
	return snap, nil
}

// Stats returns the scrape counters.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		Authenticated: s.verified.Load(),
		ActiveScrapes: int(s.active.Load()),
		TotalScrapes:  s.total.Load(),
		FailedScrapes: s.failed.Load(),
	}
}
