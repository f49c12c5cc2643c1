package models

// ProfileResponse is the response for the /api/v1/profile endpoints.
type ProfileResponse struct {
	// Success indicates whether a record is attached.
	Success bool `json:"success"`

	// ScrapeID correlates the response with server logs.
	ScrapeID string `json:"scrape_id,omitempty"`

	// Source records where the data came from: "scraper" or "store".
	Source string `json:"source,omitempty"`

	// Data is the profile record. Present only when Success is true.
	Data *ProfileRecord `json:"data,omitempty"`

	// SavedTo is the file the record was persisted to, if any.
	SavedTo string `json:"saved_to,omitempty"`

	// Changed reports, on save, whether the record differs materially from
	// the one it replaced. Absent when nothing was saved before.
	Changed *bool `json:"changed,omitempty"`

	// CacheStatus is "hit", "miss", or empty when caching was not requested.
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs is the time spent navigating and extracting.
	ScrapeMs int64 `json:"scrape_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports the state of the browser session.
type SessionStats struct {
	Open          bool  `json:"open"`
	Authenticated bool  `json:"authenticated"`
	ActiveScrapes int   `json:"active_scrapes"`
	TotalScrapes  int64 `json:"total_scrapes"`
	FailedScrapes int64 `json:"failed_scrapes"`
}
