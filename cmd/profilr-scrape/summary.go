package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/use-agent/profilr/models"
)

const missing = "-"

// renderSummary prints the record as two tables: identity fields, then one
// row per experience and education entry.
func renderSummary(w io.Writer, rec *models.ProfileRecord, savedTo string) {
	ident := newTable(w)
	ident.AppendRows([]table.Row{
		{"Name", rec.DisplayName("(name not found)")},
		{"Headline", val(rec.Headline)},
		{"Location", val(rec.Location)},
		{"Profile", val(rec.ProfileURL)},
		{"Photo", val(rec.PhotoURL)},
		{"About", truncate(val(rec.About), 80)},
		{"Skills", list(rec.Skills)},
		{"Scraped", rec.ScrapedAt.Format("2006-01-02 15:04:05 MST")},
	})
	if savedTo != "" {
		ident.AppendRow(table.Row{"Saved to", savedTo})
	}
	ident.Render()

	if len(rec.Experiences) == 0 && len(rec.Education) == 0 {
		return
	}
	fmt.Fprintln(w)

	hist := newTable(w)
	hist.AppendHeader(table.Row{"Section", "Title / School", "Company / Degree", "When", "Where / Field"})
	for _, e := range rec.Experiences {
		hist.AppendRow(table.Row{"Experience", val(e.Title), val(e.Company), val(e.Duration), val(e.Location)})
	}
	if len(rec.Experiences) > 0 && len(rec.Education) > 0 {
		hist.AppendSeparator()
	}
	for _, e := range rec.Education {
		hist.AppendRow(table.Row{"Education", val(e.School), val(e.Degree), val(e.Years), val(e.FieldOfStudy)})
	}
	hist.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: text.Colors{text.Bold}},
	})
	return t
}

func val(s *string) string {
	if s == nil || *s == "" {
		return missing
	}
	return *s
}

func list(items []string) string {
	if len(items) == 0 {
		return missing
	}
	return strings.Join(items, ", ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
