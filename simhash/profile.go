package simhash

import (
	"strings"

	"github.com/use-agent/profilr/models"
)

// ChangeThreshold is the largest distance still treated as the same content.
const ChangeThreshold = 3

// Profile fingerprints the visible content of rec. ScrapedAt is ignored and
// every word is tagged with the field it came from, so text moving between
// fields counts as a change.
func Profile(rec *models.ProfileRecord) uint64 {
	if rec == nil {
		return 0
	}
	var tokens []string
	add := func(field string, s *string) {
		if s == nil {
			return
		}
		for _, w := range strings.Fields(strings.ToLower(*s)) {
			tokens = append(tokens, field+":"+w)
		}
	}

	add("name", rec.Name)
	add("headline", rec.Headline)
	add("location", rec.Location)
	add("about", rec.About)
	for _, e := range rec.Experiences {
		add("title", e.Title)
		add("company", e.Company)
		add("duration", e.Duration)
		add("exploc", e.Location)
		add("desc", e.Description)
	}
	for _, e := range rec.Education {
		add("school", e.School)
		add("degree", e.Degree)
		add("years", e.Years)
		add("field", e.FieldOfStudy)
	}
	for _, s := range rec.Skills {
		add("skill", &s)
	}

	if sh := shingles(tokens, 2); sh != nil {
		return FingerprintTokens(sh)
	}
	return FingerprintTokens(tokens)
}

// Changed reports whether next differs materially from prev. A missing
// prev always counts as changed.
func Changed(prev, next *models.ProfileRecord) bool {
	if prev == nil || next == nil {
		return true
	}
	return !Similar(Profile(prev), Profile(next), ChangeThreshold)
}
