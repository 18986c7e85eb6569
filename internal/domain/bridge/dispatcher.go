package bridge

import (
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/id"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

// ModalController is the slice of the modal manager the bridge drives.
type ModalController interface {
	RequestClose(id string) (types.ModalState, bool)
	SetAudioActive(active bool)
}

// HostRelay forwards a dialog request or domain event to the connected
// host UI surfaces. Relay reports false when no host surface is attached.
type HostRelay interface {
	Relay(msg types.Message) bool
}

// Dispatcher routes bridge messages between guest frames and the host.
// It is a total function over the known message kinds: anything else is
// counted and dropped, never an error across the listener boundary.
type Dispatcher struct {
	modals  ModalController
	relay   HostRelay
	pending *Pending
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewDispatcher creates a bridge dispatcher.
func NewDispatcher(modals ModalController, relay HostRelay, metrics *monitoring.Metrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		modals:  modals,
		relay:   relay,
		pending: NewPending(),
		metrics: metrics,
		logger:  logger,
	}
}

// Pending exposes the correlation map, mainly for stats and tests.
func (d *Dispatcher) Pending() *Pending {
	return d.pending
}

// cancellation returns the value a dialog resolves to when dismissed
// without an explicit choice: confirm -> false, prompt -> nil.
func cancellation(requestType string) interface{} {
	if requestType == types.MsgConfirm {
		return false
	}
	return nil
}

// HandleGuest processes one message from a guest frame. extensionID is
// the extension the frame belongs to; surfaceID identifies the
// connection for teardown draining; reply sends a message back to that
// frame.
func (d *Dispatcher) HandleGuest(extensionID, surfaceID string, msg types.Message, reply func(types.Message)) {
	d.count("guest", msg.Type)

	switch msg.Type {
	case types.MsgConfirm, types.MsgPrompt:
		d.handleDialog(extensionID, surfaceID, msg, reply)

	case types.MsgCloseExtension:
		// The guest's escape gesture: same close/minimize logic as the
		// explicit UI close action.
		if state, ok := d.modals.RequestClose(extensionID); ok {
			d.logger.Debug("Guest requested close",
				zap.String("extension", extensionID),
				zap.String("state", string(state)))
		}

	case types.MsgAudioState:
		if msg.Playing != nil {
			d.modals.SetAudioActive(*msg.Playing)
		}

	case types.MsgOpenCompendium:
		msg.Extension = extensionID
		d.relay.Relay(msg)

	default:
		d.drop(msg.Type)
	}
}

// handleDialog relays a confirm/prompt request to the host UI. The
// guest's correlation id is only unique within its own page, so the
// relayed copy carries a host-assigned relay id; independent frames may
// reuse the same page-local id without colliding. The resolver replies
// with the guest's original id. With no host surface attached the
// request resolves immediately with its cancellation value so the guest
// never hangs.
func (d *Dispatcher) handleDialog(extensionID, surfaceID string, msg types.Message, reply func(types.Message)) {
	if msg.ID == "" {
		d.drop(msg.Type)
		return
	}

	requestType := msg.Type
	guestID := msg.ID
	resolve := func(result interface{}) {
		reply(types.Message{
			Type:   types.ResponseType(requestType),
			ID:     guestID,
			Result: result,
		})
		if d.metrics != nil {
			d.metrics.DialogsPending.Set(float64(d.pending.Len()))
		}
	}

	relayID := string(id.NewRequestID())
	d.pending.Register(relayID, surfaceID, cancellation(requestType), resolve)
	if d.metrics != nil {
		d.metrics.DialogsPending.Set(float64(d.pending.Len()))
	}

	msg.Extension = extensionID
	msg.ID = relayID
	if !d.relay.Relay(msg) {
		d.pending.Resolve(relayID, cancellation(requestType))
	}
}

// HandleHost processes one message from a host UI surface: dialog
// responses resolve their pending entry by the relay id the request
// carried; anything unrecognized is dropped.
func (d *Dispatcher) HandleHost(msg types.Message) {
	d.count("host", msg.Type)

	switch msg.Type {
	case types.MsgConfirmResponse:
		result := false
		if b, ok := msg.Result.(bool); ok {
			result = b
		}
		if !d.pending.Resolve(msg.ID, result) {
			d.drop(msg.Type)
		}

	case types.MsgPromptResponse:
		var result interface{}
		if s, ok := msg.Result.(string); ok {
			result = s
		}
		if !d.pending.Resolve(msg.ID, result) {
			d.drop(msg.Type)
		}

	default:
		d.drop(msg.Type)
	}
}

// DropGuestSurface drains the pending requests owned by a disconnected
// guest frame.
func (d *Dispatcher) DropGuestSurface(surfaceID string) {
	if n := d.pending.DrainOwner(surfaceID); n > 0 {
		d.logger.Debug("Drained dialogs for closed surface",
			zap.String("surface", surfaceID), zap.Int("count", n))
	}
	if d.metrics != nil {
		d.metrics.DialogsPending.Set(float64(d.pending.Len()))
	}
}

// HostsGone resolves every outstanding dialog with its cancellation
// value; with no host UI left nobody can answer them.
func (d *Dispatcher) HostsGone() {
	if n := d.pending.DrainAll(); n > 0 {
		d.logger.Debug("Cancelled pending dialogs, no host surface", zap.Int("count", n))
	}
	if d.metrics != nil {
		d.metrics.DialogsPending.Set(0)
	}
}

func (d *Dispatcher) count(direction, msgType string) {
	if d.metrics != nil {
		d.metrics.RecordBridgeMessage(direction, msgType)
	}
}

func (d *Dispatcher) drop(msgType string) {
	if d.metrics != nil {
		d.metrics.BridgeDropped.Inc()
	}
	d.logger.Debug("Dropped bridge message", zap.String("type", msgType))
}
