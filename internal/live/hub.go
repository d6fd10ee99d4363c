package live

import (
	"log"
	"sync"

	"gym-iot-backend/internal/metrics"
	"gym-iot-backend/internal/models"
)

// Hub is the registry of live subscribers. Broadcasts iterate a snapshot so
// connects and disconnects never race the fan-out.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	metrics     *metrics.Metrics
}

// NewHub creates an empty hub
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		metrics:     m,
	}
}

// Register opens the subscriber and adds it to the hub. Initial envelopes
// are queued before any broadcast can reach it.
func (h *Hub) Register(s *Subscriber, initial ...models.Envelope) {
	h.mu.Lock()
	s.hub.Store(h)
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		h.mu.Unlock()
		return
	}
	for _, env := range initial {
		s.Send(env)
	}
	h.subscribers[s.ID] = s
	count := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.SetSubscribers(count)
	log.Printf("Live: subscriber %s connected (%d total)", s.ID, count)
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	_, ok := h.subscribers[id]
	delete(h.subscribers, id)
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.metrics.SetSubscribers(count)
		log.Printf("Live: subscriber %s disconnected (%d total)", id, count)
	}
}

// Len returns the number of registered subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) snapshot() []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	return subs
}

// Broadcast queues env for every open subscriber and returns how many
// accepted it. A full queue drops the message for that subscriber only.
func (h *Hub) Broadcast(env models.Envelope) int {
	delivered := 0
	for _, s := range h.snapshot() {
		if s.Send(env) {
			delivered++
			h.metrics.MessageSent()
			continue
		}
		if s.State() == StateOpen {
			h.metrics.MessageDropped()
			log.Printf("Live: queue full for %s, dropping %s message", s.ID, env.Type)
		}
	}
	return delivered
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	for _, s := range h.snapshot() {
		s.Close()
	}
}
