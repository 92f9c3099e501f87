// Package storage persists newsletters and publish history.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

var timeNow = time.Now

// FileArchiver writes each newsletter as a markdown and an HTML file.
type FileArchiver struct {
	dir string
}

var _ ports.Archiver = (*FileArchiver)(nil)

// NewFileArchiver archives into dir, created on first use.
func NewFileArchiver(dir string) *FileArchiver {
	return &FileArchiver{dir: dir}
}

// Store writes <date>_<run>.md and .html and returns the markdown path.
func (a *FileArchiver) Store(ctx context.Context, entry domain.ArchiveEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.dir) == "" {
		return "", fmt.Errorf("file archive: directory not configured")
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	created := entry.CreatedAt
	if created.IsZero() {
		created = timeNow()
	}
	base := fmt.Sprintf("newsletter_%s_%s", created.UTC().Format("2006-01-02"), safeName(entry.RunID))

	mdPath := filepath.Join(a.dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(entry.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	if entry.HTML != "" {
		if err := os.WriteFile(filepath.Join(a.dir, base+".html"), []byte(entry.HTML), 0o644); err != nil {
			return mdPath, fmt.Errorf("write html: %w", err)
		}
	}
	return mdPath, nil
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "run"
	}
	return s
}
