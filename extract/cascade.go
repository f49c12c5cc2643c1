package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Strategy is one way of finding a field.
type Strategy struct {
	Name  string
	Query Query

	// Attr reads this attribute instead of the element text.
	Attr string
}

// Cascade is an ordered list of strategies for one field. The first strategy
// producing a non-empty value wins.
type Cascade []Strategy

// First runs the strategies in order and returns the first non-empty,
// trimmed value, or nil when none produced one.
func (c Cascade) First(ctx context.Context, p Page) *string {
	for _, s := range c {
		v, err := s.lookup(ctx, p)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Debug("lookup failed", "strategy", s.Name, "query", s.Query.String(), "error", err)
			}
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return &v
		}
	}
	return nil
}

func (s Strategy) lookup(ctx context.Context, p Page) (string, error) {
	if s.Attr != "" {
		return p.Attr(ctx, s.Query, s.Attr)
	}
	return p.Text(ctx, s.Query)
}

// Field cascades, most specific first.
var (
	NameCascade = Cascade{
		{Name: "primary-heading", Query: Query{Selector: "h1"}},
		{Name: "top-card-heading", Query: Query{Selector: ".text-heading-xlarge"}},
	}

	HeadlineCascade = Cascade{
		{Name: "heading-sibling", Query: Query{Selector: "h1 ~ div"}},
		{Name: "top-card-headline", Query: Query{Selector: "div.text-body-medium"}},
	}

	LocationCascade = Cascade{
		{Name: "location-marker", Query: Query{Selector: "span", Text: "Location"}},
		{Name: "top-card-location", Query: Query{Selector: "span.text-body-small.inline"}},
	}

	PhotoCascade = Cascade{
		{Name: "photo-alt", Query: Query{Selector: `img[alt*="profile"], img[alt*="photo"]`}, Attr: "src"},
		{Name: "top-card-photo", Query: Query{Selector: "img.pv-top-card-profile-picture__image"}, Attr: "src"},
	}

	AboutCascade = Cascade{
		{Name: "heading-adjacent", Query: Query{Selector: "section h2", Text: "About", Sibling: "~ div"}},
		{Name: "about-container", Query: Query{Selector: `div[id*="about"] div[class*="show-more"]`}},
		{Name: "about-sibling", Query: Query{Selector: "div", Text: "About", Sibling: "+ div"}},
	}
)
