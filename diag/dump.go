package diag

import (
	"context"
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest readability text accepted as the main
// content. Shorter output means readability missed it and the whole page is
// rendered instead.
const minContentLength = 50

var markdown = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal)),
	),
)

// Dump writes a markdown rendering of src as <name>-<unixms>.md and returns
// its path. The line order in the dump is what the entry parsers see, which
// makes misattributed fields easy to spot.
func (s *Sink) Dump(ctx context.Context, src Source, name string) string {
	if s == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	raw, err := src.HTML(ctx)
	if err != nil {
		slog.Warn("page dump capture failed", "name", name, "error", err)
		return ""
	}
	md, err := Render(raw, src.URL())
	if err != nil {
		slog.Warn("page dump render failed", "name", name, "error", err)
		return ""
	}
	path, err := s.write(name, ".md", []byte(md))
	if err != nil {
		slog.Warn("page dump write failed", "name", name, "error", err)
		return ""
	}
	slog.Debug("page dump saved", "name", name, "path", path)
	return path
}

// Render converts rendered page HTML to markdown, keeping only the main
// content when readability can find it.
func Render(rawHTML, pageURL string) (string, error) {
	content, domain := mainContent(rawHTML, pageURL)
	return markdown.ConvertString(content, converter.WithDomain(domain))
}

func mainContent(rawHTML, pageURL string) (content, domain string) {
	u, err := nurl.Parse(pageURL)
	if err != nil || u.Host == "" {
		slog.Debug("page dump: invalid page URL, rendering whole page", "url", pageURL, "error", err)
		return rawHTML, ""
	}
	domain = u.Scheme + "://" + u.Host

	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		slog.Debug("page dump: readability failed, rendering whole page", "error", err)
		return rawHTML, domain
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Debug("page dump: main content too short, rendering whole page", "length", len(article.TextContent))
		return rawHTML, domain
	}
	return article.Content, domain
}
