package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fieldreport/reporting-api/internal/core/ports"
)

// PublicPrefix is the URL segment uploaded photos are served under.
const PublicPrefix = "uploads"

const maxNameAttempts = 5

// PhotoStore writes uploaded photos into a local directory.
// Files are named <unix-millis>-<sanitized original name>.
type PhotoStore struct {
	dir string
	now func() time.Time
}

// NewPhotoStore creates dir if needed.
func NewPhotoStore(dir string) (*PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("photo store: %w", err)
	}
	return &PhotoStore{dir: dir, now: time.Now}, nil
}

// Dir is the filesystem directory served under PublicPrefix.
func (s *PhotoStore) Dir() string { return s.dir }

// Save copies the upload to disk and returns its path relative to the public
// root, e.g. "uploads/1700000000000-site.jpg".
func (s *PhotoStore) Save(ctx context.Context, up ports.PhotoUpload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := SanitizeFilename(up.Filename)
	stamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	var (
		f    *os.File
		name string
		err  error
	)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name = stamp + "-" + base
		if attempt > 0 {
			name = stamp + "-" + strconv.Itoa(attempt) + "-" + base
		}
		f, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("photo store: create: %w", err)
	}

	if _, err := io.Copy(f, up.Content); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("photo store: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("photo store: close: %w", err)
	}

	return path.Join(PublicPrefix, name), nil
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s *PhotoStore) Remove(_ context.Context, stored string) error {
	name := path.Base(strings.TrimPrefix(stored, "/"))
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("photo store: remove: %w", err)
	}
	return nil
}

// SanitizeFilename keeps the base name of an uploaded file and replaces
// anything outside [A-Za-z0-9._-] with an underscore.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "/" || name == "." {
		return "photo"
	}

	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)

	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "photo"
	}
	if len(clean) > 100 {
		clean = clean[len(clean)-100:]
	}
	return clean
}

var _ ports.PhotoStore = (*PhotoStore)(nil)
