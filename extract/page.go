// Package extract turns a rendered profile page into record fields.
//
// Extractors only see the Page interface, so the same code runs against a
// live browser tab and against a parsed HTML snapshot. Every extractor is
// best-effort: a lookup that fails yields a nil or empty value, never an
// error.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Page lookups when no visible element matches.
var ErrNotFound = errors.New("extract: element not found")

// Page is the read surface extractors query.
type Page interface {
	// URL is the page's current location.
	URL() string

	// Ready returns an error when the page can no longer be queried.
	Ready(ctx context.Context) error

	// Text returns the rendered text of the first visible element matching q.
	Text(ctx context.Context, q Query) (string, error)

	// Attr returns attribute name of the first element matching q.
	Attr(ctx context.Context, q Query, name string) (string, error)

	// Texts returns the rendered text of at most limit elements matching
	// the item selector inside the first visible element matching scope,
	// in document order.
	Texts(ctx context.Context, scope Query, item string, limit int) ([]string, error)
}

// Query locates one element.
//
// Selector is a CSS selector. Text, when set, keeps only elements whose
// rendered text contains it (case-insensitive). Has, when set, keeps only elements with a
// descendant matching it. A filtered query resolves to the innermost
// matching element, so a wrapper that merely contains the real match is
// skipped. Sibling, when set, moves from the match to a following sibling:
// "~ sel" is the first later sibling matching sel, "+ sel" the immediately
// next sibling if it matches sel.
type Query struct {
	Selector string `json:"selector"`
	Text     string `json:"text,omitempty"`
	Has      *Query `json:"has,omitempty"`
	Sibling  string `json:"sibling,omitempty"`
}

// Filtered reports whether the query narrows its selector matches.
func (q Query) Filtered() bool {
	return q.Text != "" || q.Has != nil
}

// SiblingHop splits Sibling into its combinator ("~" or "+") and selector.
func (q Query) SiblingHop() (adjacent bool, selector string, ok bool) {
	s := strings.TrimSpace(q.Sibling)
	switch {
	case strings.HasPrefix(s, "+"):
		return true, strings.TrimSpace(s[1:]), true
	case strings.HasPrefix(s, "~"):
		return false, strings.TrimSpace(s[1:]), true
	default:
		return false, "", false
	}
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString(q.Selector)
	if q.Text != "" {
		fmt.Fprintf(&b, ":has-text(%q)", q.Text)
	}
	if q.Has != nil {
		fmt.Fprintf(&b, ":has(%s)", q.Has.String())
	}
	if q.Sibling != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(q.Sibling))
	}
	return b.String()
}

// SectionQuery locates the profile section titled by heading.
func SectionQuery(heading string) Query {
	return Query{
		Selector: "section",
		Has:      &Query{Selector: "h2", Text: heading},
	}
}
