package extract

import (
	"context"
	"log/slog"

	"github.com/use-agent/profilr/models"
)

// List caps bound how long a single profile takes to extract.
const (
	MaxExperiences = 5
	MaxEducation   = 3
	MaxSkills      = 10
)

// Identity extracts the top-card fields. Each field is looked up on its own,
// so a missing name does not hide the headline.
func Identity(ctx context.Context, p Page) (id models.Identity) {
	defer guard("identity")

	id.Name = NameCascade.First(ctx, p)
	id.Headline = HeadlineCascade.First(ctx, p)
	id.Location = LocationCascade.First(ctx, p)
	id.PhotoURL = PhotoCascade.First(ctx, p)
	id.ProfileURL = models.Str(p.URL())
	return id
}

// About extracts the summary text.
func About(ctx context.Context, p Page) (about *string) {
	defer guard("about")
	return AboutCascade.First(ctx, p)
}

// Experiences extracts the first MaxExperiences work-history items. A page
// without an Experience section yields an empty list.
func Experiences(ctx context.Context, p Page) (out []models.Experience) {
	out = []models.Experience{}
	defer guard("experiences")

	for _, lines := range sectionItems(ctx, p, "Experience", MaxExperiences) {
		out = append(out, ParseExperience(lines))
	}
	return out
}

// Education extracts the first MaxEducation education items.
func Education(ctx context.Context, p Page) (out []models.Education) {
	out = []models.Education{}
	defer guard("education")

	for _, lines := range sectionItems(ctx, p, "Education", MaxEducation) {
		out = append(out, ParseEducation(lines))
	}
	return out
}

// Skills extracts up to MaxSkills distinct skill names.
func Skills(ctx context.Context, p Page) (out []string) {
	out = []string{}
	defer guard("skills")

	text, err := p.Text(ctx, SectionQuery("Skills"))
	if err != nil {
		slog.Debug("skills section not found", "error", err)
		return out
	}
	return ParseSkills(SplitLines(text), MaxSkills)
}

// sectionItems returns the line lists of the section's items. An item
// without text keeps its slot and parses to an all-null entry.
func sectionItems(ctx context.Context, p Page, heading string, limit int) [][]string {
	texts, err := p.Texts(ctx, SectionQuery(heading), "li", limit)
	if err != nil {
		slog.Debug("section not found", "section", heading, "error", err)
		return nil
	}
	slog.Debug("section items", "section", heading, "count", len(texts))

	items := make([][]string, 0, len(texts))
	for i, t := range texts {
		lines := SplitLines(t)
		if len(lines) == 0 {
			slog.Debug("empty item", "section", heading, "index", i)
		}
		items = append(items, lines)
	}
	return items
}

// guard keeps a panicking lookup from escaping its extractor. The named
// result keeps whatever was filled in before the panic.
func guard(field string) {
	if r := recover(); r != nil {
		slog.Warn("extractor recovered from panic", "field", field, "panic", r)
	}
}
