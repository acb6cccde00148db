package imagestore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mira/outfitadvisor/internal/domain"
	"github.com/mira/outfitadvisor/internal/logger"
	_ "golang.org/x/image/webp"
)

// Store persists uploaded images under a working directory for the lifetime
// of one request. Each save goes into its own generated subdirectory, so
// concurrent uploads with identical filenames cannot clobber each other.
type Store struct {
	baseDir string
	logger  *logger.Logger
}

// New creates a Store rooted at baseDir.
func New(baseDir string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Store{baseDir: baseDir, logger: log}
}

// Save validates that data decodes as an image and writes it to a fresh
// request-scoped subdirectory. Returns the written path. Invalid payloads
// fail with domain.ErrInvalidImage and leave nothing on disk.
func (s *Store) Save(data []byte, filename string) (string, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}

	dir := filepath.Join(s.baseDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	s.logger.WithField("path", path).Debug("Image saved")
	return path, nil
}

// Delete removes a previously saved image and its request subdirectory.
// Best effort: a missing file is a no-op and any other failure is logged,
// never returned.
func (s *Store) Delete(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithField("path", path).WithError(err).Warn("Failed to delete image")
		return
	}
	// The per-request subdirectory is empty now; remove it too.
	if dir := filepath.Dir(path); dir != s.baseDir {
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			s.logger.WithField("dir", dir).WithError(err).Warn("Failed to remove upload directory")
		}
	}
}
