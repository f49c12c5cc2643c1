package models

import "time"

// ProfileRecord is one scraped profile. Every key is always serialized:
// absent scalars become null and absent lists become [].
type ProfileRecord struct {
	Name       *string `json:"name"`
	Headline   *string `json:"headline"`
	Location   *string `json:"location"`
	PhotoURL   *string `json:"photoUrl"`
	ProfileURL *string `json:"profileUrl"`

	About *string `json:"about"`

	Experiences []Experience `json:"experiences"`
	Education   []Education  `json:"education"`
	Skills      []string     `json:"skills"`

	ScrapedAt time.Time `json:"scrapedAt"`
}

// Experience is one entry of the work-history section.
type Experience struct {
	Title       *string `json:"title"`
	Company     *string `json:"company"`
	Duration    *string `json:"duration"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

// Education is one entry of the education section.
type Education struct {
	School       *string `json:"school"`
	Degree       *string `json:"degree"`
	Years        *string `json:"years"`
	FieldOfStudy *string `json:"fieldOfStudy"`
}

// Identity is the top-card block of a profile.
type Identity struct {
	Name       *string
	Headline   *string
	Location   *string
	PhotoURL   *string
	ProfileURL *string
}

// NewProfileRecord returns a record with every list initialised, so a
// sparse scrape still serializes all keys.
func NewProfileRecord() *ProfileRecord {
	return &ProfileRecord{
		Experiences: []Experience{},
		Education:   []Education{},
		Skills:      []string{},
	}
}

// SetIdentity copies the identity block into the record.
func (r *ProfileRecord) SetIdentity(id Identity) {
	r.Name = id.Name
	r.Headline = id.Headline
	r.Location = id.Location
	r.PhotoURL = id.PhotoURL
	r.ProfileURL = id.ProfileURL
}

// Normalize replaces nil lists with empty ones. Records decoded from older
// files or built by hand go through it before they leave the process.
func (r *ProfileRecord) Normalize() {
	if r.Experiences == nil {
		r.Experiences = []Experience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Skills == nil {
		r.Skills = []string{}
	}
}

// DisplayName returns the name or the fallback when it was not extracted.
func (r *ProfileRecord) DisplayName(fallback string) string {
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return fallback
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
