package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkordes/wayfarer/internal/domain"
)

// FileTokenCache stores the session as JSON in a file readable only by the
// current user.
type FileTokenCache struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenCache returns a cache backed by path. The file and its parent
// directory are created on the first Save.
func NewFileTokenCache(path string) *FileTokenCache {
	return &FileTokenCache{path: path}
}

// DefaultCachePath returns <user config dir>/wayfarer/session.json.
func DefaultCachePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("session.DefaultCachePath: %w", err)
	}
	return filepath.Join(dir, "wayfarer", "session.json"), nil
}

func (c *FileTokenCache) Load() (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session.FileTokenCache.Load: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("session.FileTokenCache.Load: %w", err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

func (c *FileTokenCache) Save(s *domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session.FileTokenCache.Save: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("session.FileTokenCache.Save: %w", err)
	}
	if err := os.WriteFile(c.path, b, 0o600); err != nil {
		return fmt.Errorf("session.FileTokenCache.Save: %w", err)
	}
	return nil
}

// Clear removes the file. A missing file is not an error.
func (c *FileTokenCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session.FileTokenCache.Clear: %w", err)
	}
	return nil
}
