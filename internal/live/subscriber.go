package live

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gym-iot-backend/internal/models"
)

// State is the lifecycle state of a subscriber
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the part of *websocket.Conn a subscriber writes to
type Conn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// SubscriberConfig holds per-connection limits
type SubscriberConfig struct {
	QueueSize  int
	WriteWait  time.Duration
	PingPeriod time.Duration
}

// DefaultSubscriberConfig returns default configuration
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		QueueSize:  16,
		WriteWait:  10 * time.Second,
		PingPeriod: (pongWait * 9) / 10,
	}
}

// Subscriber is one live connection with its own outbound queue
type Subscriber struct {
	ID     string
	conn   Conn
	config SubscriberConfig

	state     atomic.Int32
	queue     chan models.Envelope
	done      chan struct{}
	closeOnce sync.Once
	hub       atomic.Pointer[Hub]
}

// NewSubscriber wraps a connection in the Connecting state
func NewSubscriber(conn Conn, config SubscriberConfig) *Subscriber {
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	if config.WriteWait <= 0 {
		config.WriteWait = 10 * time.Second
	}
	if config.PingPeriod <= 0 {
		config.PingPeriod = (pongWait * 9) / 10
	}
	return &Subscriber{
		ID:     uuid.NewString(),
		conn:   conn,
		config: config,
		queue:  make(chan models.Envelope, config.QueueSize),
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Done is closed once the subscriber is closed
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Send queues an envelope without blocking. It reports false when the
// subscriber is not open or its queue is full.
func (s *Subscriber) Send(env models.Envelope) bool {
	if s.State() != StateOpen {
		return false
	}
	select {
	case s.queue <- env:
		return true
	default:
		return false
	}
}

// Close moves the subscriber to Closed, removes it from its hub and closes
// the connection. Safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if h := s.hub.Load(); h != nil {
			h.unregister(s.ID)
		}
		if err := s.conn.Close(); err != nil {
			log.Printf("Live: subscriber %s close error: %v", s.ID, err)
		}
	})
}

// writeLoop drains the queue and keeps the connection alive with pings
// until the subscriber closes or a write fails
func (s *Subscriber) writeLoop() {
	ticker := time.NewTicker(s.config.PingPeriod)
	defer ticker.Stop()
	defer s.Close()

	for {
		select {
		case <-s.done:
			return

		case env := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := s.conn.WriteJSON(env); err != nil {
				log.Printf("Live: write to %s failed: %v", s.ID, err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Live: ping to %s failed: %v", s.ID, err)
				return
			}
		}
	}
}
