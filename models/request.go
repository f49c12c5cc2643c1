package models

// ProfileRequest is the payload for POST /api/v1/profile.
type ProfileRequest struct {
	// URL is the profile page to scrape (".../in/<handle>"). Required.
	URL string `json:"url" binding:"required"`

	// Save persists the record under the profiles directory.
	// Default: false.
	Save bool `json:"save,omitempty"`

	// MaxAge allows serving a cached record younger than this many
	// milliseconds. 0 (default) always scrapes.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives a profile.scraped or profile.failed event once
	// the request finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}
