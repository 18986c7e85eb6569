// Package notify abstracts the cross-window fan-out channel used to keep
// every open window of the application converged on the same timer state.
// The contract is best-effort, at-least-once delivery; receivers must be
// idempotent. The WebSocket hub provides the real multi-window transport;
// Loopback serves tests and single-window runs.
package notify

import (
	"sync"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

// Handler receives a full deep-copied timer item list.
type Handler func(items []types.TimerItem)

// Notifier fans timer state out to every subscribed surface.
type Notifier interface {
	Publish(items []types.TimerItem)
	Subscribe(h Handler) (cancel func())
}

// Loopback is an in-process Notifier.
type Loopback struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

// NewLoopback creates an in-process notifier.
func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[int]Handler)}
}

// Publish delivers the item list to every subscriber synchronously.
func (l *Loopback) Publish(items []types.TimerItem) {
	l.mu.Lock()
	handlers := make([]Handler, 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(items)
	}
}

// Subscribe registers a handler and returns its cancel function.
func (l *Loopback) Subscribe(h Handler) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers[id] = h
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}
}
