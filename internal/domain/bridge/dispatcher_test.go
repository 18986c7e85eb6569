package bridge

import (
	"strings"
	"testing"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

type fakeModals struct {
	closeRequests []string
	audio         bool
}

func (f *fakeModals) RequestClose(id string) (types.ModalState, bool) {
	f.closeRequests = append(f.closeRequests, id)
	return "", true
}

func (f *fakeModals) SetAudioActive(active bool) {
	f.audio = active
}

type fakeRelay struct {
	connected bool
	relayed   []types.Message
}

func (f *fakeRelay) Relay(msg types.Message) bool {
	if !f.connected {
		return false
	}
	f.relayed = append(f.relayed, msg)
	return true
}

type replyCapture struct {
	replies []types.Message
}

func (r *replyCapture) fn(msg types.Message) {
	r.replies = append(r.replies, msg)
}

func newTestDispatcher() (*Dispatcher, *fakeModals, *fakeRelay) {
	modals := &fakeModals{}
	relay := &fakeRelay{connected: true}
	return NewDispatcher(modals, relay, nil, nil), modals, relay
}

func TestConfirmRoundTrip(t *testing.T) {
	d, _, relay := newTestDispatcher()
	guest := &replyCapture{}

	d.HandleGuest("dice", "srf_1", types.Message{
		Type: types.MsgConfirm, ID: "dlg_1", Title: "Delete?", Message: "Really delete?",
	}, guest.fn)

	if len(relay.relayed) != 1 {
		t.Fatalf("Expected request relayed to host, got %d", len(relay.relayed))
	}
	if relay.relayed[0].Extension != "dice" {
		t.Error("Relay should tag the owning extension")
	}
	if !strings.HasPrefix(relay.relayed[0].ID, "dlg_") || relay.relayed[0].ID == "dlg_1" {
		t.Errorf("Relayed request must carry a fresh relay id, got %q", relay.relayed[0].ID)
	}
	if len(guest.replies) != 0 {
		t.Fatal("Guest must not be answered before the host responds")
	}

	d.HandleHost(types.Message{Type: types.MsgConfirmResponse, ID: relay.relayed[0].ID, Result: true})

	if len(guest.replies) != 1 {
		t.Fatalf("Expected one reply, got %d", len(guest.replies))
	}
	reply := guest.replies[0]
	if reply.Type != types.MsgConfirmResponse || reply.ID != "dlg_1" {
		t.Errorf("Bad reply envelope: %+v", reply)
	}
	if reply.Result != true {
		t.Errorf("Expected result true, got %v", reply.Result)
	}
	if d.Pending().Len() != 0 {
		t.Error("Resolved entry should leave the pending map")
	}
}

func TestPromptCancellationIsNil(t *testing.T) {
	d, _, relay := newTestDispatcher()
	relay.connected = false // no host UI attached
	guest := &replyCapture{}

	d.HandleGuest("dice", "srf_1", types.Message{
		Type: types.MsgPrompt, ID: "dlg_2", Question: "Name?",
	}, guest.fn)

	// Without a host the dialog resolves immediately with its
	// cancellation value.
	if len(guest.replies) != 1 {
		t.Fatalf("Expected immediate cancellation reply, got %d", len(guest.replies))
	}
	if guest.replies[0].Result != nil {
		t.Errorf("Prompt cancellation must be nil, got %v", guest.replies[0].Result)
	}

	// Confirm cancels to false.
	d.HandleGuest("dice", "srf_1", types.Message{
		Type: types.MsgConfirm, ID: "dlg_3",
	}, guest.fn)
	if guest.replies[1].Result != false {
		t.Errorf("Confirm cancellation must be false, got %v", guest.replies[1].Result)
	}
}

func TestStrayAndDuplicateResponses(t *testing.T) {
	d, _, relay := newTestDispatcher()
	guest := &replyCapture{}

	d.HandleGuest("dice", "srf_1", types.Message{Type: types.MsgConfirm, ID: "dlg_1"}, guest.fn)
	relayID := relay.relayed[0].ID

	// A response with an unknown id must not reach any guest.
	d.HandleHost(types.Message{Type: types.MsgConfirmResponse, ID: "dlg_other", Result: true})
	if len(guest.replies) != 0 {
		t.Fatal("Stray response leaked to a guest")
	}

	d.HandleHost(types.Message{Type: types.MsgConfirmResponse, ID: relayID, Result: true})
	d.HandleHost(types.Message{Type: types.MsgConfirmResponse, ID: relayID, Result: false})
	if len(guest.replies) != 1 {
		t.Fatalf("Duplicate response must be ignored, got %d replies", len(guest.replies))
	}
}

// Page-local correlation ids are free to collide across frames: each
// request gets its own relay id, so the host can answer one without
// stranding the other.
func TestReusedGuestIDsAcrossSurfaces(t *testing.T) {
	d, _, relay := newTestDispatcher()
	a := &replyCapture{}
	b := &replyCapture{}

	d.HandleGuest("dice", "srf_a", types.Message{Type: types.MsgConfirm, ID: "1"}, a.fn)
	d.HandleGuest("notes", "srf_b", types.Message{Type: types.MsgConfirm, ID: "1"}, b.fn)

	if len(relay.relayed) != 2 {
		t.Fatalf("Expected both requests relayed, got %d", len(relay.relayed))
	}
	if relay.relayed[0].ID == relay.relayed[1].ID {
		t.Fatal("Relay ids must be distinct per request")
	}
	if d.Pending().Len() != 2 {
		t.Fatalf("Expected two pending entries, got %d", d.Pending().Len())
	}

	// Answering the second request reaches guest B with its own id and
	// leaves guest A waiting.
	d.HandleHost(types.Message{Type: types.MsgConfirmResponse, ID: relay.relayed[1].ID, Result: true})
	if len(b.replies) != 1 || b.replies[0].ID != "1" || b.replies[0].Result != true {
		t.Errorf("Guest B should get its answer under its own id, got %+v", b.replies)
	}
	if len(a.replies) != 0 {
		t.Fatal("Guest A's dialog must stay pending")
	}

	// Host teardown cancels the remaining dialog; nobody hangs.
	d.HostsGone()
	if len(a.replies) != 1 || a.replies[0].Result != false {
		t.Errorf("Guest A's confirm should cancel to false, got %+v", a.replies)
	}
	if d.Pending().Len() != 0 {
		t.Errorf("Expected empty pending map, got %d", d.Pending().Len())
	}
}

func TestMissingCorrelationIDDropped(t *testing.T) {
	d, _, relay := newTestDispatcher()
	guest := &replyCapture{}

	d.HandleGuest("dice", "srf_1", types.Message{Type: types.MsgConfirm}, guest.fn)
	if len(relay.relayed) != 0 || d.Pending().Len() != 0 {
		t.Error("Request without an id must be dropped")
	}
}

func TestCloseExtensionGesture(t *testing.T) {
	d, modals, _ := newTestDispatcher()

	d.HandleGuest("ambient-music", "srf_1", types.Message{Type: types.MsgCloseExtension}, func(types.Message) {})

	if len(modals.closeRequests) != 1 || modals.closeRequests[0] != "ambient-music" {
		t.Errorf("Expected close request for ambient-music, got %v", modals.closeRequests)
	}
}

func TestAudioStateEvent(t *testing.T) {
	d, modals, _ := newTestDispatcher()
	playing := true

	d.HandleGuest("ambient-music", "srf_1", types.Message{Type: types.MsgAudioState, Playing: &playing}, func(types.Message) {})
	if !modals.audio {
		t.Error("Audio flag should be set")
	}

	playing = false
	d.HandleGuest("ambient-music", "srf_1", types.Message{Type: types.MsgAudioState, Playing: &playing}, func(types.Message) {})
	if modals.audio {
		t.Error("Audio flag should be cleared")
	}

	// Missing payload changes nothing.
	modals.audio = true
	d.HandleGuest("ambient-music", "srf_1", types.Message{Type: types.MsgAudioState}, func(types.Message) {})
	if !modals.audio {
		t.Error("Audio event without payload must be ignored")
	}
}

func TestOpenCompendiumRelayedWithExtension(t *testing.T) {
	d, _, relay := newTestDispatcher()

	d.HandleGuest("compendium-ext", "srf_1", types.Message{
		Type: types.MsgOpenCompendium, Entry: "goblin",
	}, func(types.Message) {})

	if len(relay.relayed) != 1 {
		t.Fatal("Event should relay to the host")
	}
	if relay.relayed[0].Extension != "compendium-ext" || relay.relayed[0].Entry != "goblin" {
		t.Errorf("Bad relayed event: %+v", relay.relayed[0])
	}
}

func TestUnknownGuestMessageDropped(t *testing.T) {
	d, modals, relay := newTestDispatcher()
	guest := &replyCapture{}

	d.HandleGuest("dice", "srf_1", types.Message{Type: "mystery-type", ID: "x"}, guest.fn)

	if len(relay.relayed) != 0 || len(guest.replies) != 0 || len(modals.closeRequests) != 0 {
		t.Error("Unknown message type must be dropped without side effects")
	}
}

func TestDropGuestSurfaceDrainsOnlyItsDialogs(t *testing.T) {
	d, _, _ := newTestDispatcher()
	a := &replyCapture{}
	b := &replyCapture{}

	d.HandleGuest("dice", "srf_a", types.Message{Type: types.MsgConfirm, ID: "dlg_a"}, a.fn)
	d.HandleGuest("notes", "srf_b", types.Message{Type: types.MsgPrompt, ID: "dlg_b"}, b.fn)

	d.DropGuestSurface("srf_a")

	if len(a.replies) != 1 || a.replies[0].Result != false {
		t.Errorf("Surface A's confirm should cancel to false, got %+v", a.replies)
	}
	if len(b.replies) != 0 {
		t.Error("Surface B's dialog must stay pending")
	}
	if d.Pending().Len() != 1 {
		t.Errorf("Expected 1 pending entry left, got %d", d.Pending().Len())
	}
}

func TestHostsGoneCancelsEverything(t *testing.T) {
	d, _, _ := newTestDispatcher()
	a := &replyCapture{}
	b := &replyCapture{}

	d.HandleGuest("dice", "srf_a", types.Message{Type: types.MsgConfirm, ID: "dlg_a"}, a.fn)
	d.HandleGuest("notes", "srf_b", types.Message{Type: types.MsgPrompt, ID: "dlg_b"}, b.fn)

	d.HostsGone()

	if len(a.replies) != 1 || a.replies[0].Result != false {
		t.Errorf("Confirm should cancel to false, got %+v", a.replies)
	}
	if len(b.replies) != 1 || b.replies[0].Result != nil {
		t.Errorf("Prompt should cancel to nil, got %+v", b.replies)
	}
	if d.Pending().Len() != 0 {
		t.Error("Pending map should be empty")
	}
}
