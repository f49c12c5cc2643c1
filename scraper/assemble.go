package scraper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/profilr/extract"
	"github.com/use-agent/profilr/models"
)

// Assembler runs the field extractors against a page and merges their
// results into one record.
type Assembler struct {
	now func() time.Time
}

// NewAssembler returns an Assembler stamping records with the wall clock.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// Assemble fails with EXTRACTION_FAILED only when the page cannot be read at
// all, and with SCRAPE_TIMEOUT when ctx ends mid-extraction. Missing fields
// never fail it.
func (a *Assembler) Assemble(ctx context.Context, p extract.Page) (*models.ProfileRecord, error) {
	if err := p.Ready(ctx); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "page is not readable", err)
	}

	var (
		id          models.Identity
		about       *string
		experiences []models.Experience
		education   []models.Education
		skills      []string
	)

	// Extractors swallow their own failures, so the group never errors; it
	// only bounds the fan-out to this call.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { id = extract.Identity(gctx, p); return nil })
	g.Go(func() error { about = extract.About(gctx, p); return nil })
	g.Go(func() error { experiences = extract.Experiences(gctx, p); return nil })
	g.Go(func() error { education = extract.Education(gctx, p); return nil })
	g.Go(func() error { skills = extract.Skills(gctx, p); return nil })
	_ = g.Wait()

	// A deadline that passes during element waits is a timeout, not a page
	// that cannot be read.
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(err, "extraction interrupted")
	}

	rec := models.NewProfileRecord()
	rec.SetIdentity(id)
	rec.About = about
	rec.Experiences = experiences
	rec.Education = education
	rec.Skills = skills
	rec.ScrapedAt = a.now().UTC()
	rec.Normalize()

	slog.Info("profile assembled",
		"name", rec.DisplayName("<unknown>"),
		"experiences", len(rec.Experiences),
		"education", len(rec.Education),
		"skills", len(rec.Skills),
	)
	return rec, nil
}
