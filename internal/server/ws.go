package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/app"
)

const (
	writeWait = 5 * time.Second
	// clientBuffer is how many frames a slow client may lag before frames
	// are dropped for it.
	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// LiveHandler pushes every FrameResult to connected websocket clients as
// JSON. It is an app.Sink.
type LiveHandler struct {
	logger  *zap.SugaredLogger
	mu      sync.RWMutex
	clients map[*liveClient]struct{}
	closed  bool
}

func NewLiveHandler(logger *zap.SugaredLogger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LiveHandler{
		logger:  logger,
		clients: make(map[*liveClient]struct{}),
	}
}

// ServeHTTP upgrades the request and streams frames until the client
// disconnects.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &liveClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)

	// Reads only detect the close; clients send nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *LiveHandler) writeLoop(c *liveClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}

func (h *LiveHandler) remove(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// OnFrame broadcasts result, dropping it for clients whose buffer is full.
func (h *LiveHandler) OnFrame(result app.FrameResult) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(result)
	if err != nil {
		h.logger.Errorw("failed to encode frame", "error", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *LiveHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}
