package ws

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/notify"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/timer"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/id"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

const surfaceWindow = "window"

// windowClient is one connected window on the shared channel.
type windowClient struct {
	id   string
	conn *websocket.Conn
	send chan types.WindowMessage
	done chan struct{}
	once sync.Once
}

func (c *windowClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *windowClient) enqueue(msg types.WindowMessage) bool {
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *windowClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		}
	}
}

// WindowHub is the shared cross-window channel. Every connected window
// sees the same timer state: commands go to the timer service, and the
// resulting state fans out to all windows through the notifier
// subscription. A get-state request answers the sender alone.
type WindowHub struct {
	timers  *timer.Service
	metrics *monitoring.Metrics
	logger  *logging.Logger

	mu      sync.RWMutex
	clients map[string]*windowClient

	unsubscribe func()
}

// NewWindowHub creates the hub and subscribes it to timer state.
func NewWindowHub(timers *timer.Service, notifier notify.Notifier, metrics *monitoring.Metrics, logger *logging.Logger) *WindowHub {
	h := &WindowHub{
		timers:  timers,
		metrics: metrics,
		logger:  logger,
		clients: make(map[string]*windowClient),
	}
	if notifier != nil {
		h.unsubscribe = notifier.Subscribe(h.broadcastState)
	}
	return h
}

// Close detaches the hub from the notifier and drops every client.
func (h *WindowHub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	clients := make([]*windowClient, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[string]*windowClient)
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
}

// HandleConnection upgrades the socket and runs the window's read loop.
func (h *WindowHub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Window channel upgrade failed", zap.Error(err))
		return
	}

	cl := &windowClient{
		id:   string(id.NewSurfaceID()),
		conn: conn,
		send: make(chan types.WindowMessage, sendBuffer),
		done: make(chan struct{}),
	}
	go cl.writePump()

	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.WithLabelValues(surfaceWindow).Inc()
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl.id)
		h.mu.Unlock()
		cl.close()
		if h.metrics != nil {
			h.metrics.WSConnections.WithLabelValues(surfaceWindow).Dec()
		}
	}()

	// New windows start from the current state.
	cl.enqueue(types.WindowMessage{Type: types.WindowState, Items: h.timers.Items()})

	for {
		var msg types.WindowMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Type == types.TimeManagerGetState {
			cl.enqueue(types.WindowMessage{Type: types.WindowState, Items: h.timers.Items()})
			continue
		}

		if !h.timers.HandleCommand(msg) {
			h.logger.Debug("Unhandled window message", zap.String("type", msg.Type))
		}
	}
}

// broadcastState fans a timer snapshot out to every connected window.
func (h *WindowHub) broadcastState(items []types.TimerItem) {
	msg := types.WindowMessage{Type: types.WindowState, Items: items}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.clients {
		cl.enqueue(msg)
	}
}
