package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kangban/companion/domain/entities"
)

// Store keeps the settings document in memory and mirrors every save to a
// JSON file on disk. A missing or malformed file silently falls back to
// the hardcoded defaults; load never errors to the caller.
type Store struct {
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	current entities.Settings
}

// NewStore loads the settings file at path, or the defaults when the file
// is absent or unreadable.
func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:    path,
		logger:  logger,
		current: entities.DefaultSettings(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Settings file unreadable, using defaults",
				zap.String("path", path),
				zap.Error(err))
		}
		return s
	}

	var loaded entities.Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("Settings file malformed, using defaults",
			zap.String("path", path),
			zap.Error(err))
		return s
	}
	if loaded.Contacts == nil {
		loaded.Contacts = make(map[string]string)
	}

	s.current = loaded
	return s
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() entities.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Save replaces the document wholesale and rewrites the settings file.
// The write goes through a temp file and rename so a crash mid-save never
// leaves a truncated document behind.
func (s *Store) Save(settings entities.Settings) error {
	data, err := json.MarshalIndent(settings, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace settings file: %w", err)
	}

	s.current = settings.Clone()
	s.logger.Info("Settings saved", zap.String("path", s.path))
	return nil
}
