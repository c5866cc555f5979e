package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/common"
	"github.com/ternarybob/tubefetch/internal/interfaces"
	"github.com/ternarybob/tubefetch/internal/models"
	"golang.org/x/time/rate"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Same policy as the CORS middleware
	},
}

// WSMessage is the envelope for every message pushed to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsCommand is a client request to follow or stop following a download
type wsCommand struct {
	Action     string `json:"action"` // "subscribe" or "unsubscribe"
	DownloadID string `json:"download_id"`
}

// wsClient owns one connection. Only its writer goroutine writes to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu  sync.Mutex
	ids map[string]bool
}

func (c *wsClient) follows(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids[id]
}

func (c *wsClient) follow(id string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.ids[id] = true
	} else {
		delete(c.ids, id)
	}
}

// WebSocketHandler pushes progress snapshots to clients that follow a download.
// A download id grants access to its file, so snapshots only go to clients that named the id.
type WebSocketHandler struct {
	logger           arbor.ILogger
	eventService     interfaces.EventService
	clients          map[*websocket.Conn]*wsClient
	mu               sync.RWMutex
	throttle         time.Duration
	limiters         map[string]*rate.Limiter
	limiterMu        sync.Mutex
	subscription     int
	serverInstanceID string // Clients use this to detect a server restart
}

// NewWebSocketHandler creates the handler and subscribes it to progress events.
// throttle is the minimum gap between pushes for one download; zero disables throttling.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, throttle time.Duration) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		eventService:     eventService,
		clients:          make(map[*websocket.Conn]*wsClient),
		throttle:         throttle,
		limiters:         make(map[string]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	if eventService != nil {
		token, err := eventService.Subscribe(interfaces.EventDownloadProgress, h.handleProgress)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to subscribe WebSocket handler to progress events")
		} else {
			h.subscription = token
		}
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Str("throttle", throttle.String()).
		Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket upgrades the connection. Downloads named by ?download_id= are followed
// immediately; more can be followed later with {"action":"subscribe","download_id":"..."}.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		ids:  make(map[string]bool),
	}
	for _, id := range r.URL.Query()["download_id"] {
		if id != "" {
			client.follow(id, true)
		}
	}

	h.mu.Lock()
	h.clients[conn] = client
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	common.SafeGo(h.logger, "ws-writer", func() {
		h.writeLoop(client)
	})

	h.enqueue(client, WSMessage{
		Type:    "connected",
		Payload: map[string]string{"server_instance_id": h.serverInstanceID},
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		// Removed from the map first so no broadcast can send on the closed channel
		close(client.send)
		conn.Close()
		h.logger.Debug().Int("remaining", remaining).Msg("WebSocket client disconnected")
	}()

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("WebSocket read ended")
			}
			return
		}

		switch cmd.Action {
		case "subscribe":
			if cmd.DownloadID != "" {
				client.follow(cmd.DownloadID, true)
			}
		case "unsubscribe":
			client.follow(cmd.DownloadID, false)
		}
	}
}

// writeLoop drains the client's queue onto the connection
func (h *WebSocketHandler) writeLoop(client *wsClient) {
	for data := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed")
			client.conn.Close()
			for range client.send {
			}
			return
		}
	}
}

// handleProgress runs inside PublishSync, in the order snapshots were stored. It never blocks.
func (h *WebSocketHandler) handleProgress(ctx context.Context, event interfaces.Event) error {
	snapshot, ok := event.Payload.(models.ProgressSnapshot)
	if !ok {
		return nil
	}

	if !h.allow(snapshot) {
		return nil
	}

	h.broadcast(snapshot.DownloadID, WSMessage{Type: "progress", Payload: snapshot}, snapshot.Status.IsTerminal())
	return nil
}

// allow applies the per-download throttle. Terminal snapshots always pass and drop the limiter.
func (h *WebSocketHandler) allow(snapshot models.ProgressSnapshot) bool {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()

	if snapshot.Status.IsTerminal() {
		delete(h.limiters, snapshot.DownloadID)
		return true
	}
	if h.throttle <= 0 {
		return true
	}

	limiter, ok := h.limiters[snapshot.DownloadID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.throttle), 1)
		h.limiters[snapshot.DownloadID] = limiter
	}
	return limiter.Allow()
}

// broadcast queues msg for every client following downloadID.
// A full queue drops the update, unless it is final: then the oldest queued update makes room.
func (h *WebSocketHandler) broadcast(downloadID string, msg WSMessage, final bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if !client.follows(downloadID) {
			continue
		}
		if !deliver(client, data, final) {
			h.logger.Debug().Str("download_id", downloadID).Msg("WebSocket client queue full - dropping update")
		}
	}
}

// deliver queues data without blocking. Final messages evict queued ones until they fit.
func deliver(client *wsClient, data []byte, final bool) bool {
	for attempt := 0; attempt <= cap(client.send); attempt++ {
		select {
		case client.send <- data:
			return true
		default:
		}
		if !final {
			return false
		}
		select {
		case <-client.send:
		default:
		}
	}
	return false
}

func (h *WebSocketHandler) enqueue(client *wsClient, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.conn]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from progress events
func (h *WebSocketHandler) Close() error {
	if h.eventService == nil || h.subscription == 0 {
		return nil
	}
	return h.eventService.Unsubscribe(interfaces.EventDownloadProgress, h.subscription)
}
