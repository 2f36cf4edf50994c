// Package local implements the filesystem store that downloads are written to.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/miles-crawler/internal/crawler"
)

// tempPattern is kept short so any name the filesystem accepts as a target
// also leaves room for the temporary sibling.
const tempPattern = ".miles-*.part"

// chunkSize bounds how much is written between cancellation checks.
const chunkSize = 64 << 10

// Store writes downloads into a destination directory. Files are written to a
// temporary sibling and renamed into place, so a canceled or failed write never
// leaves a partial file behind and concurrent writers of the same name resolve
// to whichever rename happens last.
type Store struct{}

// New creates a new filesystem store.
func New() *Store {
	return &Store{}
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("destination directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("destination %s is not a directory", dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat destination %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create destination %s: %w", dir, err)
	}
	return nil
}

// Save writes body to dir/name, replacing any existing file, and returns the
// path together with the size reported by the filesystem.
func (s *Store) Save(ctx context.Context, dir, name string, body []byte) (string, int64, error) {
	if err := validateName(name); err != nil {
		return "", 0, err
	}
	target := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	discard := func(cause error) (string, int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", 0, cause
	}

	for off := 0; off < len(body); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return discard(fmt.Errorf("write canceled: %w", err))
		}
		end := min(off+chunkSize, len(body))
		if _, err := tmp.Write(body[off:end]); err != nil {
			return discard(fmt.Errorf("write %s: %w", tmpPath, err))
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write canceled: %w", err)
	}
	// #nosec G302 -- downloads are regular user files.
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("rename into %s: %w", target, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return "", 0, fmt.Errorf("stat %s: %w", target, err)
	}
	return target, info.Size(), nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return crawler.ErrEmptyName
	case name == "." || name == "..", strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", crawler.ErrInvalidName, name)
	}
	return nil
}
