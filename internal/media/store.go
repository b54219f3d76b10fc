// Package media stores uploaded audio files on local disk.
package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType is returned for files that are not a known audio format
	ErrUnsupportedType = errors.New("unsupported audio format")
	// ErrTooLarge is returned when an upload exceeds the size limit
	ErrTooLarge = errors.New("file too large")
	// ErrInvalidName is returned for names that are not plain file names
	ErrInvalidName = errors.New("invalid file name")
)

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
}

// Store saves audio under dir with generated names
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates the directory if needed
func NewStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// ContentType returns the MIME type for an audio file name
func ContentType(name string) (string, bool) {
	ct, ok := audioTypes[strings.ToLower(filepath.Ext(name))]
	return ct, ok
}

// Save writes r to a new file named after originalName's extension and
// returns the stored name
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := audioTypes[ext]; !ok {
		return "", ErrUnsupportedType
	}

	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(r, s.maxSize+1))
	closeErr := out.Close()
	if err == nil && written > s.maxSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	return name, nil
}

// Path resolves a stored name to its full path
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// Exists reports whether a stored file exists
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CleanupOrphans removes files that are not referenced and are older than
// minAge. It returns the number of files removed.
func (s *Store) CleanupOrphans(referenced []string, minAge time.Duration, now time.Time) (int, error) {
	keep := make(map[string]bool, len(referenced))
	for _, name := range referenced {
		keep[filepath.Base(name)] = true
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read media directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || keep[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < minAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			log.Printf("Failed to remove orphaned media %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}
