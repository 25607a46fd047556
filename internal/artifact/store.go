// Package artifact writes diagnostic images: screenshots, CAPTCHA evidence
// and session recordings.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store saves artifacts under one directory. The zero value and a Store with
// an empty directory are disabled and save nothing.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir. The directory is created on first
// save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Enabled reports whether the store writes files.
func (s *Store) Enabled() bool {
	return s != nil && s.dir != ""
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Save writes data as <label>-<timestamp>-<id>.<ext> and returns the path. A
// disabled store returns an empty path and no error.
func (s *Store) Save(label, ext string, data []byte) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	name := fmt.Sprintf("%s-%s-%s.%s",
		sanitize(label),
		now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8],
		strings.TrimPrefix(ext, "."))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// SavePNG is Save with the png extension.
func (s *Store) SavePNG(label string, data []byte) (string, error) {
	return s.Save(label, "png", data)
}

func sanitize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "artifact"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, label)
}
