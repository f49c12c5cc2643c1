// Package pagetest holds the query behaviour every extract.Page must share,
// so the goquery snapshot and the browser tab are checked against one table.
package pagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/profilr/extract"
)

// Opener builds the Page under test from an HTML body fragment.
type Opener func(t *testing.T, body string) extract.Page

// Case is one lookup against a page built from Body. Want holds the result
// split into lines; NotFound expects extract.ErrNotFound instead.
type Case struct {
	Name     string
	Body     string
	Lookup   func(ctx context.Context, p extract.Page) ([]string, error)
	Want     []string
	NotFound bool
}

func text(q extract.Query) func(context.Context, extract.Page) ([]string, error) {
	return func(ctx context.Context, p extract.Page) ([]string, error) {
		s, err := p.Text(ctx, q)
		return extract.SplitLines(s), err
	}
}

func attr(q extract.Query, name string) func(context.Context, extract.Page) ([]string, error) {
	return func(ctx context.Context, p extract.Page) ([]string, error) {
		s, err := p.Attr(ctx, q, name)
		return []string{s}, err
	}
}

func texts(scope extract.Query, item string, limit int) func(context.Context, extract.Page) ([]string, error) {
	return func(ctx context.Context, p extract.Page) ([]string, error) {
		items, err := p.Texts(ctx, scope, item, limit)
		var lines []string
		for _, it := range items {
			lines = append(lines, extract.SplitLines(it)...)
		}
		return lines, err
	}
}

// Cases is the shared lookup table.
var Cases = []Case{
	{
		Name:   "text: first match in document order",
		Body:   `<h1>First</h1><h1>Second</h1>`,
		Lookup: text(extract.Query{Selector: "h1"}),
		Want:   []string{"First"},
	},
	{
		Name:     "text: hidden element is absent",
		Body:     `<div style="display: none"><h1>Ghost</h1></div>`,
		Lookup:   text(extract.Query{Selector: "h1"}),
		NotFound: true,
	},
	{
		Name:     "text: missing element",
		Body:     `<p>nothing here</p>`,
		Lookup:   text(extract.Query{Selector: "h1"}),
		NotFound: true,
	},
	{
		Name:   "text: filter is case-insensitive and picks the innermost",
		Body:   `<div><div><span>ABOUT me</span></div><div>Summary</div></div>`,
		Lookup: text(extract.Query{Selector: "div", Text: "about"}),
		Want:   []string{"ABOUT me"},
	},
	{
		Name:   "text: later sibling hop",
		Body:   `<section><h2>About</h2><span>x</span><div>The summary</div></section>`,
		Lookup: text(extract.Query{Selector: "section h2", Text: "About", Sibling: "~ div"}),
		Want:   []string{"The summary"},
	},
	{
		Name:     "text: adjacent sibling hop requires the next element",
		Body:     `<div><div>About</div><span>x</span><div>Too far</div></div>`,
		Lookup:   text(extract.Query{Selector: "div", Text: "About", Sibling: "+ div"}),
		NotFound: true,
	},
	{
		Name:   "text: has filter",
		Body:   `<section><h2>Education</h2>school</section><section><h2>Skills</h2>Go</section>`,
		Lookup: text(extract.SectionQuery("skills")),
		Want:   []string{"Skills", "Go"},
	},
	{
		Name:   "attr: present",
		Body:   `<img alt="x"><img alt="profile photo" src="/a.png">`,
		Lookup: attr(extract.Query{Selector: `img[alt*="profile"]`}, "src"),
		Want:   []string{"/a.png"},
	},
	{
		Name:     "attr: missing attribute",
		Body:     `<img alt="profile photo" src="/a.png">`,
		Lookup:   attr(extract.Query{Selector: `img[alt*="profile"]`}, "srcset"),
		NotFound: true,
	},
	{
		Name:   "texts: capped in document order",
		Body:   `<section><h2>Experience</h2><ul><li>a</li><li>b</li><li>c</li></ul></section>`,
		Lookup: texts(extract.SectionQuery("Experience"), "li", 2),
		Want:   []string{"a", "b"},
	},
	{
		Name:     "texts: missing scope",
		Body:     `<section><h2>Experience</h2><ul><li>a</li></ul></section>`,
		Lookup:   texts(extract.SectionQuery("Volunteering"), "li", 2),
		NotFound: true,
	},
}

// Run checks every case against pages built by open.
func Run(t *testing.T, open Opener) {
	t.Helper()
	for _, c := range Cases {
		t.Run(c.Name, func(t *testing.T) {
			got, err := c.Lookup(context.Background(), open(t, c.Body))
			if c.NotFound {
				assert.ErrorIs(t, err, extract.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.Want, got)
		})
	}
}
