// Package diag writes operator-facing page snapshots. It is a side channel:
// a failed write is logged and never changes the outcome of a scrape.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/use-agent/profilr/config"
)

// snapshotTimeout bounds a single capture, which may run after the scrape
// context has already expired.
const snapshotTimeout = 5 * time.Second

// ErrorState is the snapshot name used on failure paths.
const ErrorState = "error-state"

// Source is anything that can be captured.
type Source interface {
	URL() string
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Sink writes snapshots into one directory. A nil *Sink is valid and
// discards everything.
type Sink struct {
	dir       string
	dumpPages bool
	now       func() time.Time
}

// New returns a Sink for cfg, or nil when diagnostics are disabled.
func New(cfg config.DiagnosticsConfig) (*Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dir, err := homedir.Expand(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("expand debug dir %q: %w", cfg.Dir, err)
	}
	return &Sink{dir: dir, dumpPages: cfg.DumpPages, now: time.Now}, nil
}

// Dir is the directory snapshots are written to.
func (s *Sink) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Snapshot writes a PNG of src as <name>-<unixms>.png and returns its path,
// or "" when nothing was written.
func (s *Sink) Snapshot(ctx context.Context, src Source, name string) string {
	if s == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	img, err := src.Screenshot(ctx)
	if err != nil {
		slog.Warn("snapshot capture failed", "name", name, "error", err)
		return ""
	}
	path, err := s.write(name, ".png", img)
	if err != nil {
		slog.Warn("snapshot write failed", "name", name, "error", err)
		return ""
	}
	slog.Debug("snapshot saved", "name", name, "path", path)
	return path
}

// Failure takes the error-state snapshot and, when page dumps are enabled,
// a markdown rendering of the page next to it.
func (s *Sink) Failure(ctx context.Context, src Source) string {
	path := s.Snapshot(ctx, src, ErrorState)
	if s != nil && s.dumpPages {
		s.Dump(ctx, src, ErrorState)
	}
	return path
}

func (s *Sink) write(name, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", name, s.now().UnixMilli(), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
