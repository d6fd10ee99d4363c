package live

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gym-iot-backend/internal/models"
)

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
)

// InitialFunc returns the envelope sent to a subscriber right after it connects
type InitialFunc func(ctx context.Context) models.Envelope

// Handler upgrades HTTP requests to live WebSocket subscriptions
type Handler struct {
	hub      *Hub
	initial  InitialFunc
	config   SubscriberConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a live handler. initial may be nil.
func NewHandler(hub *Hub, initial InitialFunc, config SubscriberConfig) *Handler {
	return &Handler{
		hub:     hub,
		initial: initial,
		config:  config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP runs one subscription until the client goes away
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Live: upgrade failed: %v", err)
		return
	}

	sub := NewSubscriber(conn, h.config)

	var initial []models.Envelope
	if h.initial != nil {
		initial = append(initial, h.initial(r.Context()))
	}
	h.hub.Register(sub, initial...)

	go sub.writeLoop()
	h.readLoop(conn, sub)
}

// readLoop logs client messages and closes the subscriber on read error or
// when no pong arrives in time
func (h *Handler) readLoop(conn *websocket.Conn, sub *Subscriber) {
	defer sub.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Live: read from %s failed: %v", sub.ID, err)
			}
			return
		}
		log.Printf("Live: message from %s: %s", sub.ID, message)
	}
}
