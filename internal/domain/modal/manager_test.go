package modal

import (
	"testing"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

const backgroundID = "ambient-music"

func desc(id string) types.ExtensionDescriptor {
	return types.ExtensionDescriptor{
		ID:     id,
		Name:   id,
		Folder: id + "-1.0.0",
		UIUrl:  "/api/extensions/" + id + "-1.0.0/ui/",
	}
}

func TestOpenFocusesAndIsIdempotent(t *testing.T) {
	m := NewManager(backgroundID)

	m.Open(desc("notes"), "")
	m.Open(desc("dice"), "")

	if m.Focused() != "dice" {
		t.Errorf("Expected focus on dice, got %q", m.Focused())
	}

	// Re-opening an open modal must not duplicate it.
	m.Open(desc("notes"), "")
	if len(m.List()) != 2 {
		t.Fatalf("Expected 2 open modals, got %d", len(m.List()))
	}
	if m.Focused() != "notes" {
		t.Errorf("Expected re-open to refocus notes, got %q", m.Focused())
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	m := NewManager(backgroundID)

	m.Open(desc("a"), "")
	m.Open(desc("b"), "")
	m.Open(desc("c"), "")
	m.Close("b")
	m.Open(desc("d"), "")

	list := m.List()
	want := []string{"a", "c", "d"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d modals, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestFocusTokens(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc("notes"), "")

	if !m.Focus(types.FocusStack) {
		t.Error("Stack token should always focus")
	}
	if !m.Focus("dungeongen") {
		t.Error("Singleton name should always focus")
	}
	if !m.Focus(types.FocusNone) {
		t.Error("Clearing focus should always succeed")
	}
	if m.Focus("not-open") {
		t.Error("Focusing a closed modal should fail")
	}
	if !m.Focus("notes") {
		t.Error("Focusing an open modal should succeed")
	}
}

func TestCloseClearsFocus(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc("notes"), "")

	if !m.Close("notes") {
		t.Fatal("Close failed")
	}
	if m.Focused() != types.FocusNone {
		t.Errorf("Expected focus cleared, got %q", m.Focused())
	}
	if m.Close("notes") {
		t.Error("Second close should report false")
	}
}

func TestRequestCloseMinimizesBackgroundWhileAudioPlays(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc(backgroundID), "")
	m.SetAudioActive(true)

	state, ok := m.RequestClose(backgroundID)
	if !ok {
		t.Fatal("RequestClose on open modal should report true")
	}
	if state != types.ModalMinimized {
		t.Fatalf("Expected minimized, got %q", state)
	}
	if m.Focused() != types.FocusNone {
		t.Error("Minimizing should release focus")
	}

	entry, ok := m.Get(backgroundID)
	if !ok || entry.State != types.ModalMinimized {
		t.Error("Entry should remain tracked in minimized state")
	}

	// Second gesture on the minimized surface truly closes it and
	// stops the audio flag.
	state, ok = m.RequestClose(backgroundID)
	if !ok || state == types.ModalMinimized {
		t.Fatalf("Expected true close, got state=%q ok=%v", state, ok)
	}
	if _, still := m.Get(backgroundID); still {
		t.Error("Modal should be gone after second gesture")
	}
	if m.AudioActive() {
		t.Error("Audio flag should clear on true close")
	}
}

func TestRequestCloseClosesWhenAudioIdle(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc(backgroundID), "")

	// No audio playing: the background extension closes like any other.
	if state, ok := m.RequestClose(backgroundID); !ok || state == types.ModalMinimized {
		t.Errorf("Expected close, got state=%q ok=%v", state, ok)
	}

	m.Open(desc("notes"), "")
	m.SetAudioActive(true)
	// Audio active but a different extension: still a plain close.
	if state, ok := m.RequestClose("notes"); !ok || state == types.ModalMinimized {
		t.Errorf("Expected close for non-background modal, got state=%q ok=%v", state, ok)
	}
}

func TestOpenRestoresMinimized(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc(backgroundID), "")
	m.SetAudioActive(true)
	m.RequestClose(backgroundID)

	entry := m.Open(desc(backgroundID), "")
	if entry.State != types.ModalOpen {
		t.Errorf("Expected restored to open, got %q", entry.State)
	}
	if m.Focused() != types.FocusToken(backgroundID) {
		t.Error("Restore should take focus")
	}
}

func TestForceCloseBypassesMinimize(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc(backgroundID), "")
	m.SetAudioActive(true)

	if !m.ForceClose(backgroundID) {
		t.Fatal("ForceClose failed")
	}
	if _, ok := m.Get(backgroundID); ok {
		t.Error("Modal should be gone")
	}
	if m.AudioActive() {
		t.Error("Audio flag should clear when the background extension is removed")
	}
}

func TestConsumeOpenSheetIsOneShot(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc("compendium-ext"), "sheet-42")

	sheet, ok := m.ConsumeOpenSheet("compendium-ext")
	if !ok || sheet != "sheet-42" {
		t.Fatalf("Expected sheet-42, got %q ok=%v", sheet, ok)
	}
	if _, ok := m.ConsumeOpenSheet("compendium-ext"); ok {
		t.Error("Sheet hint should be consumed exactly once")
	}

	// Re-open with a new hint replaces it.
	m.Open(desc("compendium-ext"), "sheet-43")
	if sheet, _ := m.ConsumeOpenSheet("compendium-ext"); sheet != "sheet-43" {
		t.Errorf("Expected sheet-43, got %q", sheet)
	}
}

func TestStats(t *testing.T) {
	m := NewManager(backgroundID)
	m.Open(desc("notes"), "")
	m.Open(desc(backgroundID), "")
	m.SetAudioActive(true)
	m.RequestClose(backgroundID)

	stats := m.Stats()
	if stats.Open != 1 || stats.Minimized != 1 {
		t.Errorf("Expected 1 open / 1 minimized, got %d / %d", stats.Open, stats.Minimized)
	}
	if !stats.AudioActive {
		t.Error("Expected audio flag in stats")
	}
}
