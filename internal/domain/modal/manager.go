// Package modal tracks which extension UI surfaces are open, their
// display order, and which one holds input focus. Lifecycle per id is
// closed -> open -> closed; the one extension designated as having a
// continuous background activity (ambient audio) may pass through a
// minimized state instead of closing while the activity is live.
package modal

import (
	"sync"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

// Singleton modal names: extensions with bespoke host rendering rather
// than a generic sandboxed frame. They participate in focus arbitration
// but never appear in the open set.
var defaultSingletons = map[types.FocusToken]bool{
	"dungeongen":    true,
	"compendium":    true,
	"documents-pdf": true,
}

// Manager orchestrates modal surface lifecycle.
type Manager struct {
	mu           sync.RWMutex
	open         map[string]*types.OpenModalEntry // Protected by mu
	order        []string                         // insertion order, protected by mu
	focus        types.FocusToken                 // Protected by mu
	singletons   map[types.FocusToken]bool
	backgroundID string
	audioActive  bool // Protected by mu
	metrics      *monitoring.Metrics
}

// NewManager creates a modal manager. backgroundID names the single
// extension allowed to minimize instead of close while audio is active.
func NewManager(backgroundID string) *Manager {
	singletons := make(map[types.FocusToken]bool, len(defaultSingletons))
	for k, v := range defaultSingletons {
		singletons[k] = v
	}
	return &Manager{
		open:         make(map[string]*types.OpenModalEntry),
		singletons:   singletons,
		backgroundID: backgroundID,
	}
}

// WithMetrics adds metrics tracking.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// publishGaugesLocked refreshes the open/minimized gauges; must hold mu.
func (m *Manager) publishGaugesLocked() {
	if m.metrics == nil {
		return
	}
	var open, minimized float64
	for _, entry := range m.open {
		if entry.State == types.ModalMinimized {
			minimized++
		} else {
			open++
		}
	}
	m.metrics.ModalsOpen.Set(open)
	m.metrics.ModalsMinimized.Set(minimized)
}

// Open inserts a modal for the descriptor and transfers focus to it. A
// second open for the same id is a focus-only operation; a minimized
// surface is restored to open. Returns a copy of the live entry.
func (m *Manager) Open(desc types.ExtensionDescriptor, openSheetID string) types.OpenModalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.open[desc.ID]; ok {
		existing.State = types.ModalOpen
		if openSheetID != "" {
			existing.OpenSheetID = openSheetID
		}
		m.focus = types.FocusToken(desc.ID)
		m.publishGaugesLocked()
		return *existing
	}

	entry := &types.OpenModalEntry{
		ID:            desc.ID,
		Name:          desc.Name,
		Folder:        desc.Folder,
		UIUrl:         desc.UIUrl,
		TitleBarColor: desc.TitleBarColor,
		Icon:          desc.Icon,
		OpenSheetID:   openSheetID,
		State:         types.ModalOpen,
	}
	m.open[desc.ID] = entry
	m.order = append(m.order, desc.ID)
	m.focus = types.FocusToken(desc.ID)
	m.publishGaugesLocked()

	return *entry
}

// Focus sets the single focus token. Valid tokens are an open modal id,
// a known singleton name, the stack token, or none. Returns false for an
// id that is not open.
func (m *Manager) Focus(token types.FocusToken) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token == types.FocusNone || token == types.FocusStack || m.singletons[token] {
		m.focus = token
		return true
	}

	if _, ok := m.open[string(token)]; !ok {
		return false
	}
	m.focus = token
	return true
}

// Close removes a modal unconditionally. Closing the background
// extension also clears the audio flag since its content stops running.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closeLocked(id, true)
}

// RequestClose applies the user-facing close gesture. For the background
// extension with active audio: an open surface minimizes (content keeps
// running off-screen); a minimized one truly closes and force-stops the
// audio flag. Everything else closes. Returns the resulting state and
// whether the id was open at all.
func (m *Manager) RequestClose(id string) (types.ModalState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.open[id]
	if !ok {
		return "", false
	}

	if id == m.backgroundID && m.audioActive && entry.State == types.ModalOpen {
		entry.State = types.ModalMinimized
		if m.focus == types.FocusToken(id) {
			m.focus = types.FocusNone
		}
		m.publishGaugesLocked()
		return types.ModalMinimized, true
	}

	m.closeLocked(id, true)
	return "", true
}

// ForceClose removes a modal bypassing minimize, used on uninstall. The
// audio flag is cleared when the background extension goes away since its
// content can no longer be running.
func (m *Manager) ForceClose(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closeLocked(id, true)
}

// closeLocked removes an entry and fixes up focus; must hold mu.
func (m *Manager) closeLocked(id string, clearAudio bool) bool {
	if _, ok := m.open[id]; !ok {
		return false
	}

	delete(m.open, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if clearAudio && id == m.backgroundID {
		m.audioActive = false
	}

	if m.focus == types.FocusToken(id) {
		m.focus = types.FocusNone
	}
	m.publishGaugesLocked()
	return true
}

// SetAudioActive records whether the background extension is currently
// playing. Driven by the bridge's ambient-audio-state event; duplicate
// deliveries are harmless.
func (m *Manager) SetAudioActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audioActive = active
}

// AudioActive reports the background activity flag.
func (m *Manager) AudioActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.audioActive
}

// Get retrieves a copy of an open modal by id.
func (m *Manager) Get(id string) (types.OpenModalEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.open[id]
	if !ok {
		return types.OpenModalEntry{}, false
	}
	return *entry, true
}

// List returns copies of all open modals in insertion order.
func (m *Manager) List() []types.OpenModalEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.OpenModalEntry, 0, len(m.order))
	for _, id := range m.order {
		if entry, ok := m.open[id]; ok {
			out = append(out, *entry)
		}
	}
	return out
}

// Focused returns the current focus token.
func (m *Manager) Focused() types.FocusToken {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.focus
}

// ConsumeOpenSheet returns and clears a modal's deep-link hint; the hint
// is consumed exactly once by the surface that renders it.
func (m *Manager) ConsumeOpenSheet(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.open[id]
	if !ok || entry.OpenSheetID == "" {
		return "", false
	}
	sheet := entry.OpenSheetID
	entry.OpenSheetID = ""
	return sheet, true
}

// Stats returns manager statistics.
func (m *Manager) Stats() types.ModalStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var open, minimized int
	for _, entry := range m.open {
		if entry.State == types.ModalMinimized {
			minimized++
		} else {
			open++
		}
	}
	return types.ModalStats{
		Open:        open,
		Minimized:   minimized,
		Focused:     m.focus,
		AudioActive: m.audioActive,
	}
}
