package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/bridge"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/id"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Extension frames connect from arbitrary origins
	},
}

const (
	surfaceGuest = "guest"
	surfaceHost  = "host"

	// sendBuffer bounds each client's outbound queue; a client that
	// cannot keep up is disconnected rather than blocking the rest.
	sendBuffer = 32
)

// client is one connected surface with a dedicated write pump. All
// writes to the socket go through send, never WriteJSON directly.
type client struct {
	id        string
	extension string
	conn      *websocket.Conn
	send      chan types.Message
	done      chan struct{}
	once      sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// enqueue hands a message to the write pump; reports false when the
// client is gone or its queue is full.
func (c *client) enqueue(msg types.Message) bool {
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writePump() {
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

// BridgeHandler terminates the extension message channel. Guest
// surfaces are extension content frames; host surfaces render dialogs
// and receive relayed domain events. The handler fans guest requests
// out through the dispatcher and implements its relay back to hosts.
type BridgeHandler struct {
	dispatcher *bridge.Dispatcher
	metrics    *monitoring.Metrics
	logger     *logging.Logger

	mu     sync.RWMutex
	guests map[string]*client // keyed by surface id
	hosts  map[string]*client
}

// NewBridgeHandler creates the bridge endpoint handler. The dispatcher
// must be constructed with this handler as its relay (see Relay).
func NewBridgeHandler(metrics *monitoring.Metrics, logger *logging.Logger) *BridgeHandler {
	return &BridgeHandler{
		metrics: metrics,
		logger:  logger,
		guests:  make(map[string]*client),
		hosts:   make(map[string]*client),
	}
}

// Bind attaches the dispatcher after construction; the handler and
// dispatcher reference each other.
func (h *BridgeHandler) Bind(d *bridge.Dispatcher) {
	h.dispatcher = d
}

// Relay delivers a guest-originated message to every connected host
// surface. Reports false when no host received it.
func (h *BridgeHandler) Relay(msg types.Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := false
	for _, host := range h.hosts {
		if host.enqueue(msg) {
			delivered = true
		}
	}
	return delivered
}

// HandleConnection upgrades the socket and runs the surface's read
// loop. Query params: extension (guest only), surface=guest|host.
func (h *BridgeHandler) HandleConnection(c *gin.Context) {
	surface := c.Query("surface")
	if surface != surfaceGuest && surface != surfaceHost {
		c.String(http.StatusBadRequest, "surface must be guest or host")
		return
	}

	extension := c.Query("extension")
	if surface == surfaceGuest {
		if err := utils.ValidateFolderName(extension); err != nil {
			c.String(http.StatusBadRequest, "invalid extension id")
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Bridge upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:        string(id.NewSurfaceID()),
		extension: extension,
		conn:      conn,
		send:      make(chan types.Message, sendBuffer),
		done:      make(chan struct{}),
	}
	go cl.writePump()

	h.register(surface, cl)
	defer h.unregister(surface, cl)

	h.logger.Info("Bridge surface connected",
		zap.String("surface", surface),
		zap.String("extension", extension),
		zap.String("id", cl.id))

	for {
		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Bridge read error", zap.Error(err))
			}
			return
		}

		switch surface {
		case surfaceGuest:
			h.dispatcher.HandleGuest(cl.extension, cl.id, msg, func(reply types.Message) {
				cl.enqueue(reply)
			})
		case surfaceHost:
			h.dispatcher.HandleHost(msg)
		}
	}
}

// GuestCount reports connected guest surfaces.
func (h *BridgeHandler) GuestCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.guests)
}

// HostCount reports connected host surfaces.
func (h *BridgeHandler) HostCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hosts)
}

func (h *BridgeHandler) register(surface string, cl *client) {
	h.mu.Lock()
	if surface == surfaceGuest {
		h.guests[cl.id] = cl
	} else {
		h.hosts[cl.id] = cl
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.WithLabelValues(surface).Inc()
	}
}

func (h *BridgeHandler) unregister(surface string, cl *client) {
	h.mu.Lock()
	if surface == surfaceGuest {
		delete(h.guests, cl.id)
	} else {
		delete(h.hosts, cl.id)
	}
	hostsLeft := len(h.hosts)
	h.mu.Unlock()

	cl.close()

	if h.metrics != nil {
		h.metrics.WSConnections.WithLabelValues(surface).Dec()
	}

	// A departing guest abandons its own dialogs; the last departing
	// host abandons everyone's.
	if surface == surfaceGuest {
		h.dispatcher.DropGuestSurface(cl.id)
	} else if hostsLeft == 0 {
		h.dispatcher.HostsGone()
	}

	h.logger.Info("Bridge surface disconnected",
		zap.String("surface", surface),
		zap.String("id", cl.id))
}
