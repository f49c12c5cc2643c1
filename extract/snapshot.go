package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Snapshot is a Page over a parsed copy of rendered HTML. It has no live
// layout, so visibility is approximated from markup (hidden attribute,
// inline display:none, non-rendered tags). It is safe for concurrent use.
type Snapshot struct {
	doc *goquery.Document
	url string
}

// NewSnapshot parses rawHTML captured from pageURL.
func NewSnapshot(rawHTML, pageURL string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Snapshot{doc: doc, url: pageURL}, nil
}

func (s *Snapshot) URL() string { return s.url }

func (s *Snapshot) Ready(ctx context.Context) error { return ctx.Err() }

func (s *Snapshot) Text(ctx context.Context, q Query) (string, error) {
	sel, err := s.find(q)
	if err != nil {
		return "", err
	}
	if sel.Length() == 0 || hidden(sel.Nodes[0]) {
		return "", ErrNotFound
	}
	return strings.TrimSpace(InnerText(sel.Nodes[0])), nil
}

func (s *Snapshot) Attr(ctx context.Context, q Query, name string) (string, error) {
	sel, err := s.find(q)
	if err != nil {
		return "", err
	}
	v, ok := sel.Attr(name)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *Snapshot) Texts(ctx context.Context, scope Query, item string, limit int) ([]string, error) {
	sel, err := s.find(scope)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 || hidden(sel.Nodes[0]) {
		return nil, ErrNotFound
	}
	m, err := cascadia.Compile(item)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", item, err)
	}

	texts := []string{}
	sel.FindMatcher(m).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if len(texts) >= limit {
			return false
		}
		texts = append(texts, InnerText(el.Nodes[0]))
		return true
	})
	return texts, nil
}

// Visible reports whether q resolves to an element not hidden by markup.
func (s *Snapshot) Visible(q Query) bool {
	sel, err := s.find(q)
	return err == nil && sel.Length() > 0 && !hidden(sel.Nodes[0])
}

// HTML renders the whole document back to markup.
func (s *Snapshot) HTML() (string, error) {
	return s.doc.Html()
}

func (s *Snapshot) find(q Query) (*goquery.Selection, error) {
	sel, err := resolve(s.doc.Selection, q)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return sel, ErrNotFound
	}
	return sel, nil
}

// resolve applies q below root and returns at most one element.
func resolve(root *goquery.Selection, q Query) (*goquery.Selection, error) {
	m, err := cascadia.Compile(q.Selector)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", q.Selector, err)
	}
	var (
		hop        cascadia.Selector
		adjacent   bool
		hopErr     error
		candidates = root.FindMatcher(m)
		found      = root.Slice(0, 0)
	)
	if adj, sibling, ok := q.SiblingHop(); ok {
		adjacent = adj
		hop, hopErr = cascadia.Compile(sibling)
		if hopErr != nil {
			return nil, fmt.Errorf("compile sibling %q: %w", sibling, hopErr)
		}
	}

	candidates.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if !satisfies(el, q) {
			return true
		}
		if q.Filtered() && innerMatch(el, m, q) {
			return true
		}
		target := el
		if hop != nil {
			if adjacent {
				target = el.Next().FilterMatcher(hop)
			} else {
				target = el.NextAllMatcher(hop).First()
			}
			if target.Length() == 0 {
				return true
			}
		}
		found = target
		return false
	})
	return found, nil
}

func satisfies(el *goquery.Selection, q Query) bool {
	if q.Text != "" && !containsFold(InnerText(el.Nodes[0]), q.Text) {
		return false
	}
	if q.Has != nil {
		inner, err := resolve(el, *q.Has)
		if err != nil || inner.Length() == 0 {
			return false
		}
	}
	return true
}

// innerMatch reports whether a descendant of el also satisfies q.
func innerMatch(el *goquery.Selection, m cascadia.Selector, q Query) bool {
	found := false
	el.FindMatcher(m).EachWithBreak(func(_ int, d *goquery.Selection) bool {
		found = satisfies(d, q)
		return !found
	})
	return found
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

var (
	// Tags whose content is never rendered.
	skipTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "template": true, "head": true,
	}

	// Tags that start a new line in rendered text.
	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true, "dd": true,
		"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
		"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
		"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
		"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
		"table": true, "tr": true, "ul": true,
	}

	whitespace = regexp.MustCompile(`\s+`)
)

// InnerText approximates the browser's innerText: hidden subtrees are
// dropped, block elements and <br> break lines, and runs of whitespace
// inside inline content collapse to one space.
func InnerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(whitespace.ReplaceAllString(n.Data, " "))
		case html.ElementNode:
			if skipTags[n.Data] || hiddenSelf(n) {
				return
			}
			if n.Data == "br" {
				b.WriteByte('\n')
				return
			}
			block := blockTags[n.Data]
			if block {
				b.WriteByte('\n')
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if block {
				b.WriteByte('\n')
			}
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

// hidden reports whether n or one of its ancestors is not rendered.
func hidden(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && (skipTags[n.Data] || hiddenSelf(n)) {
			return true
		}
	}
	return false
}

func hiddenSelf(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			if strings.Contains(strings.ReplaceAll(strings.ToLower(a.Val), " ", ""), "display:none") {
				return true
			}
		}
	}
	return false
}
