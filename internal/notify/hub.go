package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/metrics"
	"github.com/aws-agent/console/internal/query"
	"github.com/aws-agent/console/pkg/logger"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

const (
	TypeNotification = "notification"
	TypeInvalidated  = "invalidated"
	TypeUpdated      = "updated"
	TypeRemoved      = "removed"
	TypeCleared      = "cleared"
)

const sendBuffer = 64

// Message is one frame pushed to connected dashboards.
type Message struct {
	Type      string    `json:"type"`
	Key       query.Key `json:"key,omitempty"`
	Level     string    `json:"level,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is the part of a websocket connection the hub uses.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (int, []byte, error)
	Close() error
}

type client struct {
	id   string
	send chan Message
}

// Hub fans notifications and cache events out to every connected websocket client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	now     func() time.Time
	log     *zap.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		now:     time.Now,
		log:     logger.Named("notify"),
	}
}

func (h *Hub) Success(title, message string) {
	h.notify(LevelSuccess, title, message)
}

func (h *Hub) Error(title, message string) {
	h.notify(LevelError, title, message)
}

func (h *Hub) Info(title, message string) {
	h.notify(LevelInfo, title, message)
}

func (h *Hub) notify(level, title, message string) {
	h.log.Info("Notification",
		zap.String("level", level),
		zap.String("title", title),
		zap.String("message", message),
	)
	h.Broadcast(Message{Type: TypeNotification, Level: level, Title: title, Message: message})
}

// Watch forwards cache events to clients until the returned function is called.
func (h *Hub) Watch(cache *query.Cache) func() {
	return cache.Subscribe(func(ev query.Event) {
		h.Broadcast(Message{Type: string(ev.Type), Key: ev.Key})
	})
}

// Broadcast queues msg for every client. A client whose queue is full misses the frame.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("Dropped message for slow websocket client",
				zap.String("client_id", c.id),
				zap.String("type", msg.Type),
			)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve registers conn and blocks until the client disconnects.
func (h *Hub) Serve(conn Conn) {
	c := &client{id: uuid.New().String(), send: make(chan Message, sendBuffer)}
	h.register(c)

	log := h.log.With(zap.String("client_id", c.id))
	log.Info("WebSocket connection established")

	done := make(chan struct{})
	go h.writeLoop(conn, c, log, done)

	defer func() {
		h.unregister(c)
		<-done
		conn.Close()
		log.Info("WebSocket connection closed")
	}()

	// Incoming frames are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("WebSocket read ended", zap.Error(err))
			return
		}
	}
}

func (h *Hub) writeLoop(conn Conn, c *client, log *zap.Logger, done chan<- struct{}) {
	defer close(done)
	for msg := range c.send {
		if err := conn.WriteJSON(msg); err != nil {
			log.Error("Failed to write WebSocket message", zap.Error(err))
			conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Close disconnects every client's writer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	metrics.WebsocketClients.Set(0)
}
