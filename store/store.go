// Package store persists profile records as one JSON file per handle.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/use-agent/profilr/models"
)

var (
	// ErrNotFound is returned by Load when no record is saved under a handle.
	ErrNotFound = errors.New("store: profile not found")

	// ErrInvalidHandle is returned for handles that are empty or would
	// escape the store directory.
	ErrInvalidHandle = errors.New("store: invalid profile handle")
)

// FileStore writes records to <dir>/<handle>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. A leading ~ is expanded; the
// directory itself is created on first Save.
func NewFileStore(dir string) (*FileStore, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expand profiles dir %q: %w", dir, err)
	}
	return &FileStore{dir: expanded}, nil
}

// Dir is the directory records are written to.
func (s *FileStore) Dir() string { return s.dir }

// Save writes rec as indented JSON and returns the file path.
func (s *FileStore) Save(handle string, rec *models.ProfileRecord) (string, error) {
	path, err := s.path(handle)
	if err != nil {
		return "", err
	}
	rec.Normalize()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile %q: %w", handle, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create profiles dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write profile %q: %w", handle, err)
	}
	return path, nil
}

// Load reads the record saved under handle.
func (s *FileStore) Load(handle string) (*models.ProfileRecord, error) {
	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", handle, err)
	}

	rec := models.NewProfileRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", handle, err)
	}
	rec.Normalize()
	return rec, nil
}

// path rejects handles that would escape the store directory.
func (s *FileStore) path(handle string) (string, error) {
	if handle == "" || handle == "." || handle == ".." || strings.ContainsAny(handle, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return filepath.Join(s.dir, handle+".json"), nil
}

// HandleFromURL derives the file handle from a profile URL: the part after
// "/in/", without trailing slash, query or fragment.
func HandleFromURL(profileURL string) string {
	_, rest, ok := strings.Cut(profileURL, "/in/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSuffix(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
