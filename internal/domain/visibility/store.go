// Package visibility persists the per-room "visible to players" flag for
// installed extensions. Rooms are keyed "<creator>/<room>"; values map an
// extension folder name to a boolean. The flag is evaluated server-side
// when listing extensions for a player and client-side for UI filtering.
package visibility

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
)

// Store is a JSON-file-backed visibility map. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *logging.Logger
}

// NewStore creates a store persisted at path.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Room returns the visibility settings for a room. A missing or corrupt
// file yields an empty map, never an error: visibility defaults closed.
func (s *Store) Room(roomKey string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	room, ok := data[roomKey]
	if !ok {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(room))
	for folder, visible := range room {
		out[folder] = visible
	}
	return out
}

// Set updates the visibility of one extension folder in one room.
func (s *Store) Set(roomKey, folder string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	room, ok := data[roomKey]
	if !ok {
		room = map[string]bool{}
		data[roomKey] = room
	}
	room[folder] = visible

	return s.save(data)
}

// Forget drops every room entry for a folder, used after uninstall so a
// later reinstall starts hidden again.
func (s *Store) Forget(folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	changed := false
	for _, room := range data {
		if _, ok := room[folder]; ok {
			delete(room, folder)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(data)
}

// load must be called with the lock held.
func (s *Store) load() map[string]map[string]bool {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read visibility store", zap.Error(err))
		}
		return map[string]map[string]bool{}
	}

	var data map[string]map[string]bool
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn("Corrupt visibility store, starting empty", zap.Error(err))
		return map[string]map[string]bool{}
	}
	return data
}

// save must be called with the lock held.
func (s *Store) save(data map[string]map[string]bool) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal visibility store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write visibility store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
