// Package storage persists detection images to disk when saving is
// enabled.
package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vespai/vespai-go/internal/logger"
)

// Saver writes the raw and annotated frames of a detection into a
// timestamped pair of JPEGs under its base directory.
type Saver struct {
	mu       sync.Mutex
	frameDir string
	resDir   string
	saved    uint64
}

// NewSaver creates the frames/ and results/ subdirectories under
// baseDir and returns a ready Saver.
func NewSaver(baseDir string) (*Saver, error) {
	frameDir := filepath.Join(baseDir, "frames")
	resDir := filepath.Join(baseDir, "results")
	for _, dir := range []string{frameDir, resDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create save directory: %w", err)
		}
	}
	return &Saver{frameDir: frameDir, resDir: resDir}, nil
}

// Save writes both images. Failures are logged and absorbed; losing a
// saved image never stops the detection loop.
func (s *Saver) Save(raw, annotated *image.RGBA) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Now().Format("02.01.2006-15_04_05")
	if err := writeJPEG(filepath.Join(s.frameDir, stamp+".jpeg"), raw); err != nil {
		logger.Error("Saver", "Write frame image: %v", err)
		return false
	}
	if err := writeJPEG(filepath.Join(s.resDir, stamp+".jpeg"), annotated); err != nil {
		logger.Error("Saver", "Write result image: %v", err)
		return false
	}

	s.saved++
	logger.Info("Saver", "Saved detection images: %s", stamp)
	return true
}

// Count returns the number of detection image pairs written.
func (s *Saver) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

func writeJPEG(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
