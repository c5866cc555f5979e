package cookies

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/common"
	"github.com/ternarybob/tubefetch/internal/models"
)

// MaxFileSize is the upload limit for a cookie file
const MaxFileSize = 2 * 1024 * 1024

const filePattern = "cookies-*.txt"

// Store keeps uploaded cookie files in a private directory, keyed by opaque handle.
// Entries are created by Upload and removed by Release or Sweep, whichever comes first.
type Store struct {
	mu        sync.Mutex
	artifacts map[string]*models.CookieArtifact
	dir       string
	maxSize   int64
	logger    arbor.ILogger
	now       func() time.Time
}

// NewStore creates a store rooted at dir (0700). An empty dir creates a private temp directory.
func NewStore(dir string, maxSize int64, logger arbor.ILogger) (*Store, error) {
	if maxSize <= 0 || maxSize > MaxFileSize {
		maxSize = MaxFileSize
	}

	if dir == "" {
		tmp, err := os.MkdirTemp("", "tubefetch-cookies-")
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie directory: %w", err)
		}
		dir = tmp
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create cookie directory %s: %w", dir, err)
		}
		if err := os.Chmod(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to restrict cookie directory %s: %w", dir, err)
		}
	}

	return &Store{
		artifacts: make(map[string]*models.CookieArtifact),
		dir:       dir,
		maxSize:   maxSize,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Dir returns the directory holding cookie files
func (s *Store) Dir() string {
	return s.dir
}

// Upload validates data as a Netscape cookie file and persists it.
// Oversize and malformed input is rejected with *models.ValidationError before anything is written.
func (s *Store) Upload(data []byte, declaredSize int64) (string, error) {
	if declaredSize > s.maxSize || int64(len(data)) > s.maxSize {
		return "", models.NewValidationError("cookies", "file too large (max %d bytes)", s.maxSize)
	}
	if len(data) == 0 {
		return "", models.NewValidationError("cookies", "file is empty")
	}

	parsed, err := ParseNetscape(data)
	if err != nil {
		return "", err
	}
	if err := parsed.Validate(); err != nil {
		return "", err
	}

	path, err := s.persist(data)
	if err != nil {
		return "", err
	}

	artifact := &models.CookieArtifact{
		ID:        common.NewCookieID(),
		Path:      path,
		Size:      int64(len(data)),
		Records:   len(parsed.Cookies),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.artifacts[artifact.ID] = artifact
	s.mu.Unlock()

	s.logger.Info().
		Str("cookie_id", artifact.ID).
		Int("records", artifact.Records).
		Int("size", len(data)).
		Msg("Cookie file stored")

	return artifact.ID, nil
}

// UploadReader reads at most one byte past the limit so oversize bodies are detected without buffering them
func (s *Store) UploadReader(r io.Reader, declaredSize int64) (string, error) {
	if declaredSize > s.maxSize {
		return "", models.NewValidationError("cookies", "file too large (max %d bytes)", s.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read cookie upload: %w", err)
	}

	return s.Upload(data, declaredSize)
}

// Seed stores inline cookie content supplied through configuration
func (s *Store) Seed(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}
	return s.Upload([]byte(content+"\n"), int64(len(content)+1))
}

func (s *Store) persist(data []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, filePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create cookie file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close cookie file: %w", err)
	}

	return f.Name(), nil
}

// Resolve returns the backing file path for id
func (s *Store) Resolve(id string) (string, bool) {
	if id == "" {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.artifacts[id]
	if !ok {
		return "", false
	}
	return artifact.Path, true
}

// Get returns a copy of the artifact metadata for id
func (s *Store) Get(id string) (models.CookieArtifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.artifacts[id]
	if !ok {
		return models.CookieArtifact{}, false
	}
	return *artifact, true
}

// Len returns the number of live artifacts
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// Release removes the entry and its file. The entry is taken under the lock,
// so concurrent Release and Sweep calls delete a given file at most once.
func (s *Store) Release(id string) {
	s.mu.Lock()
	artifact, ok := s.artifacts[id]
	if ok {
		delete(s.artifacts, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	s.removeFile(artifact.Path)

	s.logger.Debug().Str("cookie_id", id).Msg("Cookie file released")
}

// Sweep removes artifacts created more than maxAge ago, plus untracked files in the
// directory older than maxAge (left behind by a previous process). Failures are logged and skipped.
func (s *Store) Sweep(maxAge time.Duration) int {
	now := s.now()

	var expired []*models.CookieArtifact
	tracked := make(map[string]bool)

	s.mu.Lock()
	for id, artifact := range s.artifacts {
		if now.Sub(artifact.CreatedAt) > maxAge {
			expired = append(expired, artifact)
			delete(s.artifacts, id)
			continue
		}
		tracked[artifact.Path] = true
	}
	s.mu.Unlock()

	removed := 0
	for _, artifact := range expired {
		s.removeFile(artifact.Path)
		removed++
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", s.dir).Msg("Failed to list cookie directory")
		return removed
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if tracked[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if s.removeFile(path) {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Expired cookie files removed")
	}

	return removed
}

// removeFile deletes path, treating an already-missing file as success
func (s *Store) removeFile(path string) bool {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false
		}
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove cookie file")
		return false
	}
	return true
}
