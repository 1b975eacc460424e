package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdf-rag-chatbot/internal/logger"
)

// SweepStaleUploads removes staged uploads in dir whose modification time is
// older than maxAge. Ingest removes its own temp file; this catches the ones
// left behind by a crash. It returns how many files were removed.
func SweepStaleUploads(dir string, maxAge time.Duration, now time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, uploadPattern))
	if err != nil {
		return 0, fmt.Errorf("invalid upload pattern: %w", err)
	}

	removed := 0
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if info.IsDir() || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("Removed stale uploads", "dir", dir, "count", removed)
	}
	return removed, errors.Join(errs...)
}
