package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/diag"
	"github.com/use-agent/profilr/models"
)

const adaURL = "https://www.linkedin.com/in/ada-lovelace/"

func newTestScraper(b Browser, cfg *config.Config, opts ...Option) *Scraper {
	return New(b, cfg, append([]Option{WithDelays(NoDelays())}, opts...)...)
}

func TestScrapeProfile_Fixture(t *testing.T) {
	for _, mode := range []string{ModeLive, ModeSnapshot} {
		t.Run(mode, func(t *testing.T) {
			b := &fakeBrowser{html: fixtureHTML(t), bottomAfter: 3}
			cfg := testConfig()
			cfg.Scraper.ExtractMode = mode

			rec, err := newTestScraper(b, cfg).ScrapeProfile(context.Background(), adaURL)
			require.NoError(t, err)

			require.NotNil(t, rec.Name)
			assert.Equal(t, "Ada Lovelace", *rec.Name)
			require.NotNil(t, rec.ProfileURL)
			assert.Equal(t, adaURL, *rec.ProfileURL)
			require.NotNil(t, rec.About)
			assert.Len(t, rec.Experiences, 5)
			assert.Len(t, rec.Education, 3)
			assert.Equal(t, []string{"Mathematics", "Programming"}, rec.Skills)
			assert.False(t, rec.ScrapedAt.IsZero())

			tabs := b.opened()
			require.Len(t, tabs, 1)
			assert.Equal(t, 1, tabs[0].closeCount())
			assert.Equal(t, 3, tabs[0].scrolls)
		})
	}
}

func TestScrapeProfile_InvalidURLOpensNoTab(t *testing.T) {
	b := &fakeBrowser{html: fixtureHTML(t)}

	_, err := newTestScraper(b, testConfig()).ScrapeProfile(context.Background(), "https://www.linkedin.com/company/babbage")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidURL, models.CodeOf(err))
	assert.Empty(t, b.opened())
}

func TestScrapeProfile_ChallengeSkipsExtraction(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		redirect string
	}{
		{
			name: "identity prompt",
			html: `<html><body><main><h1>Let's do a quick security check</h1><p>Please verify your identity to continue.</p></main></body></html>`,
		},
		{
			name: "suspicious activity",
			html: `<html><body><p>We noticed some Suspicious Activity on your account.</p></body></html>`,
		},
		{
			name: "captcha widget",
			html: `<html><body><div id="captcha-internal"><iframe></iframe></div></body></html>`,
		},
		{
			name:     "checkpoint redirect",
			html:     `<html><body><p>One moment.</p></body></html>`,
			redirect: "https://www.linkedin.com/checkpoint/challenge/abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBrowser{html: tt.html, redirect: tt.redirect}

			rec, err := newTestScraper(b, testConfig()).ScrapeProfile(context.Background(), adaURL)
			assert.Nil(t, rec)
			assert.Equal(t, models.ErrCodeChallenge, models.CodeOf(err))

			tabs := b.opened()
			require.Len(t, tabs, 1)
			assert.Equal(t, 1, tabs[0].closeCount())
			assert.Zero(t, tabs[0].lookupCount(), "no extractor may run on a challenged page")
			assert.Zero(t, tabs[0].scrolls)
		})
	}
}

func TestScrapeProfile_HiddenChallengeTextIsIgnored(t *testing.T) {
	html := `<html><body><h1>Ada Lovelace</h1><div hidden>verify your identity</div></body></html>`
	b := &fakeBrowser{html: html, bottomAfter: 1}

	rec, err := newTestScraper(b, testConfig()).ScrapeProfile(context.Background(), adaURL)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", rec.DisplayName(""))
}

func TestScrapeProfile_NavigationFailure(t *testing.T) {
	tests := []struct {
		name   string
		navErr error
		code   string
	}{
		{name: "network error", navErr: errors.New("net::ERR_NAME_NOT_RESOLVED"), code: models.ErrCodeNavigation},
		{name: "deadline", navErr: fmt.Errorf("navigate: %w", context.DeadlineExceeded), code: models.ErrCodeTimeout},
		{name: "load wait deadline", navErr: fmt.Errorf("%w: %w", ErrLoadWait, context.DeadlineExceeded), code: models.ErrCodeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBrowser{html: fixtureHTML(t), navErr: tt.navErr}

			_, err := newTestScraper(b, testConfig()).ScrapeProfile(context.Background(), adaURL)
			assert.Equal(t, tt.code, models.CodeOf(err))
			assert.ErrorIs(t, err, tt.navErr)

			tabs := b.opened()
			require.Len(t, tabs, 1)
			assert.Equal(t, 1, tabs[0].closeCount())
		})
	}
}

func TestScrapeProfile_ExtractionFailureClosesTabOnce(t *testing.T) {
	b := &fakeBrowser{html: fixtureHTML(t), readyErr: errors.New("target closed"), bottomAfter: 1}

	_, err := newTestScraper(b, testConfig()).ScrapeProfile(context.Background(), adaURL)
	assert.Equal(t, models.ErrCodeExtraction, models.CodeOf(err))

	tabs := b.opened()
	require.Len(t, tabs, 1)
	assert.Equal(t, 1, tabs[0].closeCount())
	assert.Zero(t, tabs[0].lookupCount())
}

func TestScrapeProfile_SessionClosed(t *testing.T) {
	var s Session
	_, err := newTestScraper(&s, testConfig()).ScrapeProfile(context.Background(), adaURL)
	assert.Equal(t, models.ErrCodeSessionClosed, models.CodeOf(err))
}

func TestScrapeProfile_ErrorSnapshotAttached(t *testing.T) {
	sink, err := diag.New(config.DiagnosticsConfig{Enabled: true, Dir: t.TempDir()})
	require.NoError(t, err)
	b := &fakeBrowser{html: `<html><body><p>verify your identity</p></body></html>`}

	_, err = newTestScraper(b, testConfig(), WithSink(sink)).ScrapeProfile(context.Background(), adaURL)

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeChallenge, se.Code)
	require.NotEmpty(t, se.Snapshot)
	assert.FileExists(t, se.Snapshot)
	assert.Contains(t, se.ToDetail().Snapshot, "error-state-")
}

func TestScrapeProfile_SuccessSnapshots(t *testing.T) {
	dir := t.TempDir()
	sink, err := diag.New(config.DiagnosticsConfig{Enabled: true, Dir: dir})
	require.NoError(t, err)
	b := &fakeBrowser{html: fixtureHTML(t), bottomAfter: 1}

	_, err = newTestScraper(b, testConfig(), WithSink(sink)).ScrapeProfile(context.Background(), adaURL)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	for _, prefix := range []string{"profile-initial-", "after-scroll-", "after-extraction-"} {
		assert.Condition(t, func() bool {
			for _, n := range names {
				if strings.HasPrefix(n, prefix) {
					return true
				}
			}
			return false
		}, "missing %s snapshot in %v", prefix, names)
	}
}

func TestScrapeProfile_Stats(t *testing.T) {
	b := &fakeBrowser{html: fixtureHTML(t), bottomAfter: 1}
	s := newTestScraper(b, testConfig())

	_, err := s.ScrapeProfile(context.Background(), adaURL)
	require.NoError(t, err)
	_, err = s.ScrapeProfile(context.Background(), "not a url")
	require.Error(t, err)

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.TotalScrapes)
	assert.Equal(t, int64(1), stats.FailedScrapes)
	assert.Zero(t, stats.ActiveScrapes)
}

func TestScrapeProfile_CanceledBeforeNavigation(t *testing.T) {
	b := &fakeBrowser{html: fixtureHTML(t)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(b, testConfig(), WithDelays(RandomDelays(config.HumanizeConfig{
		PreNavMin: time.Second,
		PreNavMax: 2 * time.Second,
	})))
	_, err := s.ScrapeProfile(ctx, adaURL)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.Empty(t, b.opened())
}

func TestScrapeProfile_DeadlineDuringExtraction(t *testing.T) {
	b := &fakeBrowser{html: fixtureHTML(t), bottomAfter: 1, stall: true}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestScraper(b, testConfig()).ScrapeProfile(ctx, adaURL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	tabs := b.opened()
	require.Len(t, tabs, 1)
	assert.Equal(t, 1, tabs[0].closeCount())
}

func TestAssemble_DeadlineIsTimeout(t *testing.T) {
	b := &fakeBrowser{html: fixtureHTML(t), stall: true}
	tab, err := b.NewTab(context.Background())
	require.NoError(t, err)
	require.NoError(t, tab.Navigate(context.Background(), adaURL, WaitDOMContentLoaded))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = NewAssembler().Assemble(ctx, tab)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
}

func TestScraper_VerifyLoginRecordsOutcome(t *testing.T) {
	b := &fakeBrowser{html: `<html><body><h1>Feed</h1></body></html>`}
	s := newTestScraper(b, testConfig())

	require.NoError(t, s.VerifyLogin(context.Background()))
	assert.True(t, s.Stats().Authenticated)

	b.redirect = "https://www.linkedin.com/authwall"
	err := s.VerifyLogin(context.Background())
	assert.Equal(t, models.ErrCodeAuth, models.CodeOf(err))
	assert.False(t, s.Stats().Authenticated)
}
