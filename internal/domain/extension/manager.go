package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/paths"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

// ManifestName is the descriptor file required at an extension's root.
const ManifestName = "extension.toml"

// DefaultEntry is the UI entry point used when the manifest omits one.
const DefaultEntry = "ui/index.html"

// VisibilityReader resolves per-room player visibility.
type VisibilityReader interface {
	Room(roomKey string) map[string]bool
}

// Manager is the host-side catalog of installed extensions. The
// filesystem is the source of truth: every List rescans the extensions
// directory; the in-memory copy is only a last-known-good fallback for
// scan failures.
type Manager struct {
	layout     paths.Layout
	visibility VisibilityReader
	sanitizer  *bluemonday.Policy
	logger     *logging.Logger

	mu    sync.RWMutex
	cache []types.ExtensionDescriptor // Protected by mu, last successful scan
}

// NewManager creates a registry manager over the given layout.
func NewManager(layout paths.Layout, visibility VisibilityReader, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		layout:     layout,
		visibility: visibility,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger,
	}
}

// List returns the installed extensions, freshly scanned and sorted
// case-insensitively by name. With a room context, visibility flags are
// resolved for that room and a player view is filtered to visible-only.
// On scan failure the last-known-good list is returned alongside the
// error.
func (m *Manager) List(ctx context.Context, room *types.RoomContext) ([]types.ExtensionDescriptor, error) {
	descriptors, err := m.scan(ctx)
	if err != nil {
		m.mu.RLock()
		cached := make([]types.ExtensionDescriptor, len(m.cache))
		copy(cached, m.cache)
		m.mu.RUnlock()
		return cached, err
	}

	m.mu.Lock()
	m.cache = descriptors
	m.mu.Unlock()

	out := make([]types.ExtensionDescriptor, len(descriptors))
	copy(out, descriptors)

	if room != nil && room.Valid() {
		visible := m.visibility.Room(room.Key())
		filtered := out[:0]
		for _, d := range out {
			d.VisibleToPlayers = visible[d.Folder]
			if room.PlayerView() && !d.VisibleToPlayers {
				continue
			}
			filtered = append(filtered, d)
		}
		out = filtered
	}

	return out, nil
}

// Refresh rescans the extensions directory into the cache. Called by the
// installer after every successful install or uninstall.
func (m *Manager) Refresh(ctx context.Context) error {
	descriptors, err := m.scan(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cache = descriptors
	m.mu.Unlock()
	return nil
}

// Get returns the descriptor for an install folder.
func (m *Manager) Get(ctx context.Context, folder string) (types.ExtensionDescriptor, bool) {
	desc, err := m.describe(folder)
	if err != nil {
		return types.ExtensionDescriptor{}, false
	}
	return desc, true
}

// Entry returns the relative UI entry path inside an install folder, or
// false when the extension has no UI.
func (m *Manager) Entry(folder string) (string, bool) {
	desc, err := m.describe(folder)
	if err != nil || !desc.HasUI() {
		return "", false
	}

	entry := DefaultEntry
	manifest, err := m.readManifest(m.layout.Extension(folder))
	if err == nil && manifest.Extension.Entry != "" {
		entry = manifest.Extension.Entry
	}
	return entry, true
}

// Filter narrows a descriptor list by a free-text query matched
// case-insensitively against name, description, and folder.
func Filter(list []types.ExtensionDescriptor, query string) []types.ExtensionDescriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list
	}

	out := make([]types.ExtensionDescriptor, 0, len(list))
	for _, d := range list {
		if strings.Contains(strings.ToLower(d.Name), query) ||
			strings.Contains(strings.ToLower(d.Description), query) ||
			strings.Contains(strings.ToLower(d.Folder), query) {
			out = append(out, d)
		}
	}
	return out
}

// Stats walks every install directory and reports counts and disk usage.
func (m *Manager) Stats(ctx context.Context) (types.RegistryStats, error) {
	descriptors, err := m.scan(ctx)
	if err != nil {
		return types.RegistryStats{}, err
	}

	stats := types.RegistryStats{
		TotalExtensions: len(descriptors),
		PerExtension:    make(map[string]int64, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.HasUI() {
			stats.WithUI++
		}

		var size atomic.Int64
		root := m.layout.Extension(d.Folder)
		walkErr := fastwalk.Walk(&fastwalk.Config{Follow: false}, root,
			func(path string, de os.DirEntry, err error) error {
				if err != nil {
					return nil // unreadable entries don't fail the stat
				}
				if de.Type().IsRegular() {
					if info, ierr := de.Info(); ierr == nil {
						size.Add(info.Size())
					}
				}
				return nil
			})
		if walkErr != nil {
			m.logger.Warn("Failed to walk extension dir",
				zap.String("folder", d.Folder), zap.Error(walkErr))
			continue
		}
		stats.PerExtension[d.Folder] = size.Load()
		stats.DiskUsageBytes += size.Load()
	}

	return stats, nil
}

// scan reads every install directory under the extensions dir.
func (m *Manager) scan(ctx context.Context) ([]types.ExtensionDescriptor, error) {
	entries, err := os.ReadDir(m.layout.ExtensionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ExtensionDescriptor{}, nil
		}
		return nil, fmt.Errorf("failed to read extensions dir: %w", err)
	}

	descriptors := make([]types.ExtensionDescriptor, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		desc, err := m.describe(entry.Name())
		if err != nil {
			m.logger.Warn("Skipping unreadable extension",
				zap.String("folder", entry.Name()), zap.Error(err))
			continue
		}
		descriptors = append(descriptors, desc)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return strings.ToLower(descriptors[i].Name) < strings.ToLower(descriptors[j].Name)
	})

	return descriptors, nil
}

// describe builds a descriptor for one install folder. A missing or
// malformed manifest falls back to folder-name defaults rather than
// hiding the installation.
func (m *Manager) describe(folder string) (types.ExtensionDescriptor, error) {
	dir := m.layout.Extension(folder)
	info, err := os.Stat(dir)
	if err != nil {
		return types.ExtensionDescriptor{}, err
	}
	if !info.IsDir() {
		return types.ExtensionDescriptor{}, fmt.Errorf("%s is not a directory", folder)
	}

	desc := types.ExtensionDescriptor{
		ID:      folder,
		Name:    folder,
		Version: "0.0.0",
		Folder:  folder,
	}
	entry := DefaultEntry

	manifest, err := m.readManifest(dir)
	if err == nil {
		e := manifest.Extension
		if e.ID != "" {
			desc.ID = e.ID
		}
		if e.Name != "" {
			desc.Name = m.sanitizer.Sanitize(e.Name)
		}
		if e.Version != "" {
			desc.Version = e.Version
		}
		desc.Description = m.sanitizer.Sanitize(e.Description)
		desc.Author = m.sanitizer.Sanitize(e.Author)
		desc.TitleBarColor = e.TitleBarColor
		desc.Icon = types.NormalizeIcon(e.Icon)
		if e.Entry != "" {
			entry = e.Entry
		}
	} else if !os.IsNotExist(err) {
		m.logger.Debug("Unreadable manifest, using folder defaults",
			zap.String("folder", folder), zap.Error(err))
	}

	// The entry path must resolve inside the install dir and exist for
	// the extension to expose a UI surface.
	entryPath := filepath.Join(dir, filepath.FromSlash(entry))
	if rel, rerr := filepath.Rel(dir, entryPath); rerr == nil && !strings.HasPrefix(rel, "..") {
		if fi, serr := os.Stat(entryPath); serr == nil && fi.Mode().IsRegular() {
			desc.UIUrl = fmt.Sprintf("/api/extensions/%s/ui/", folder)
		}
	}

	return desc, nil
}

func (m *Manager) readManifest(dir string) (*types.Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}

	var manifest types.Manifest
	if err := toml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}
