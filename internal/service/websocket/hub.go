package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	broadcastQueue = 64

	// PongWait is how long a reader waits for the next pong before giving
	// up on the connection.
	PongWait   = 60 * time.Second
	pingPeriod = (PongWait * 9) / 10
)

type client struct {
	conn    *websocket.Conn
	session string
}

type message struct {
	session string
	payload []byte
}

// HubService fans session events out to the browser tabs of that session.
// Only the Run goroutine writes to connections.
type HubService struct {
	clients    map[*websocket.Conn]string
	broadcast  chan message
	register   chan client
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	pingPeriod time.Duration
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan message, broadcastQueue),
		register:   make(chan client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
		pingPeriod: pingPeriod,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every connection. Idle connections are pinged so proxies keep
// them open.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.conn] = c.session
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", total)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ticker.C:
			h.ping()
		}
	}
}

func (h *HubService) ping() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			h.logger.Warning("Ping failed, dropping client: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *HubService) deliver(msg message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, session := range h.clients {
		if session != msg.session {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg.payload); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Register attaches a connection to a session.
func (h *HubService) Register(conn *websocket.Conn, sessionID string) {
	select {
	case h.register <- client{conn: conn, session: sessionID}:
	case <-h.done:
		conn.Close()
	}
}

// Unregister detaches and closes a connection.
func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues payload for every connection of sessionID. When the
// queue is full the message is dropped.
func (h *HubService) Broadcast(sessionID string, payload []byte) {
	select {
	case h.broadcast <- message{session: sessionID, payload: payload}:
	default:
		h.logger.Warning("Broadcast queue full - dropping message for session %s", sessionID)
	}
}

// Publish sends a lifecycle event to a session as JSON.
func (h *HubService) Publish(sessionID string, ev lifecycle.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Error encoding event: %v", err)
		return
	}
	h.Broadcast(sessionID, payload)
}

// Notifier binds the hub to one session.
func (h *HubService) Notifier(sessionID string) lifecycle.Notifier {
	return sessionNotifier{hub: h, session: sessionID}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

type sessionNotifier struct {
	hub     *HubService
	session string
}

func (n sessionNotifier) Notify(ev lifecycle.Event) {
	n.hub.Publish(n.session, ev)
}
