package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/use-agent/profilr/extract"
	"github.com/use-agent/profilr/models"
)

const (
	topCardURL      = "https://www.linkedin.com/voyager/api/identity/dash/profiles?q=memberIdentity&memberIdentity=%s&decorationId=com.linkedin.voyager.dash.deco.identity.profile.TopCardSupplementary-128"
	profileCardsURL = "https://www.linkedin.com/voyager/api/graphql?includeWebMetadata=true&variables=(profileUrn:urn%%3Ali%%3Afsd_profile%%3A%s)&queryId=voyagerIdentityDashProfileCards.2d68c43b54ee24f8de25bc423c3cf7e4"
)

// FetchProfileAPI reads a profile through the site's internal JSON API
// instead of the rendered page. The calls run from a tab on the landing page
// so the session cookie authenticates them. Skills and photo are not part of
// these responses.
func (s *Scraper) FetchProfileAPI(ctx context.Context, profileURL string) (*models.ProfileRecord, error) {
	handle, err := ValidateProfileURL(profileURL)
	if err != nil {
		return nil, err
	}
	if h, err := url.PathUnescape(handle); err == nil {
		handle = h
	}
	log := slog.With("handle", handle)

	tab, err := s.browser.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	defer closeTab(tab)

	ctx, cancel := context.WithTimeout(ctx, s.nav.cfg.NavigationTimeout)
	defer cancel()

	if err := tab.Navigate(ctx, s.landing, WaitDOMContentLoaded); err != nil && !errors.Is(err, ErrLoadWait) {
		return nil, categorizeError(err, "navigation to landing page failed")
	}
	if current := tab.URL(); IsLoginURL(current) {
		return nil, models.NewScrapeError(models.ErrCodeAuth, "session is not logged in; the profile API needs a session cookie", nil)
	}

	raw, err := tab.FetchJSON(ctx, fmt.Sprintf(topCardURL, url.QueryEscape(handle)))
	if err != nil {
		return nil, categorizeError(err, "profile API request failed")
	}
	card, err := extract.ParseTopCard(raw, handle)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "unreadable profile API response", err)
	}

	var cards *extract.ProfileCards
	if card.ProfileID == "" {
		log.Warn("profile API gave no profile id; sections skipped")
	} else if raw, err := tab.FetchJSON(ctx, fmt.Sprintf(profileCardsURL, url.QueryEscape(card.ProfileID))); err != nil {
		log.Warn("profile cards request failed; sections skipped", "error", err)
	} else if cards, err = extract.ParseProfileCards(raw); err != nil {
		log.Warn("unreadable profile cards response; sections skipped", "error", err)
	}

	rec := card.Record(cards)
	rec.ScrapedAt = s.assembler.now().UTC()
	log.Info("profile read from API",
		"experiences", len(rec.Experiences),
		"education", len(rec.Education),
	)
	return rec, nil
}
