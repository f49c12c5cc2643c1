package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/profilr/models"
)

func init() {
	text.DisableColors()
}

func TestRenderSummary(t *testing.T) {
	rec := models.NewProfileRecord()
	rec.Name = models.Str("Ada Lovelace")
	rec.Headline = models.Str("Analyst")
	rec.About = models.Str(strings.Repeat("notes ", 40))
	rec.Experiences = []models.Experience{{Title: models.Str("Lead Analyst"), Company: models.Str("Analytical Engine Project")}}
	rec.Education = []models.Education{{School: models.Str("Home tutoring"), Years: models.Str("1822 - 1835")}}
	rec.Skills = []string{"Mathematics", "Programming"}
	rec.ScrapedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	renderSummary(&buf, rec, "profiles/ada-lovelace.json")
	out := buf.String()

	for _, want := range []string{
		"Ada Lovelace",
		"Analyst",
		"Mathematics, Programming",
		"profiles/ada-lovelace.json",
		"Lead Analyst",
		"Analytical Engine Project",
		"Home tutoring",
		"1822 - 1835",
		"2026-01-02 03:04:05 UTC",
		"…",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderSummary_SparseRecord(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, models.NewProfileRecord(), "")
	out := buf.String()

	assert.Contains(t, out, "(name not found)")
	assert.NotContains(t, out, "Saved to")
	assert.NotContains(t, out, "Experience", "no history table without entries")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b", truncate("a\n  b", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
