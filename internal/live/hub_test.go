package live

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gym-iot-backend/internal/models"
)

// fakeConn records written envelopes and can be told to fail writes
type fakeConn struct {
	mu      sync.Mutex
	written []models.Envelope
	failErr error
	closed  int
	wrote   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{wrote: make(chan struct{}, 64)}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.written = append(c.written, v.(models.Envelope))
	c.wrote <- struct{}{}
	return nil
}

func (c *fakeConn) WriteMessage(int, []byte) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) Written() []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Envelope(nil), c.written...)
}

func (c *fakeConn) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
}

func envelope(value float64) models.Envelope {
	return models.Envelope{
		Type: "occupancy",
		Data: models.NewReading(time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), value),
	}
}

func waitWrites(t *testing.T, c *fakeConn, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.wrote:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for write %d of %d", i+1, n)
		}
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	sub := NewSubscriber(conn, DefaultSubscriberConfig())

	if sub.State() != StateConnecting {
		t.Fatalf("expected connecting, got %s", sub.State())
	}
	if sub.Send(envelope(1)) {
		t.Fatal("send must fail before the subscriber is open")
	}

	hub.Register(sub)
	if sub.State() != StateOpen || hub.Len() != 1 {
		t.Fatalf("expected open and registered, got %s with %d subscribers", sub.State(), hub.Len())
	}

	sub.Close()
	sub.Close()
	if sub.State() != StateClosed || hub.Len() != 0 {
		t.Fatalf("expected closed and removed, got %s with %d subscribers", sub.State(), hub.Len())
	}
	if conn.closed != 1 {
		t.Fatalf("expected connection closed once, got %d", conn.closed)
	}

	hub.Register(sub)
	if hub.Len() != 0 {
		t.Fatal("a closed subscriber must not be registered again")
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub(nil)
	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range conns {
		sub := NewSubscriber(c, DefaultSubscriberConfig())
		hub.Register(sub)
		go sub.writeLoop()
	}

	if n := hub.Broadcast(envelope(55)); n != 3 {
		t.Fatalf("expected 3 deliveries, got %d", n)
	}

	for _, c := range conns {
		waitWrites(t, c, 1)
		got := c.Written()
		if got[0].Data.Value != 55 || got[0].Data.Status != models.StatusModerate {
			t.Fatalf("unexpected envelope %+v", got[0])
		}
	}
	hub.Close()
}

func TestInitialEnvelopeArrivesFirst(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	sub := NewSubscriber(conn, DefaultSubscriberConfig())

	hub.Register(sub, envelope(10))
	hub.Broadcast(envelope(90))
	go sub.writeLoop()

	waitWrites(t, conn, 2)
	got := conn.Written()
	if got[0].Data.Value != 10 || got[1].Data.Value != 90 {
		t.Fatalf("expected initial then broadcast, got %v then %v", got[0].Data.Value, got[1].Data.Value)
	}
	sub.Close()
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)
	slow := NewSubscriber(newFakeConn(), SubscriberConfig{QueueSize: 1})
	fastConn := newFakeConn()
	fast := NewSubscriber(fastConn, SubscriberConfig{QueueSize: 8})
	hub.Register(slow)
	hub.Register(fast)
	go fast.writeLoop()

	// slow has no writer, so its single slot fills on the first broadcast
	if n := hub.Broadcast(envelope(1)); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}

	done := make(chan int)
	go func() { done <- hub.Broadcast(envelope(2)) }()
	select {
	case n := <-done:
		if n != 1 {
			t.Fatalf("expected only the fast subscriber to accept, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	waitWrites(t, fastConn, 2)
	hub.Close()
}

func TestDisconnectMidBroadcast(t *testing.T) {
	hub := NewHub(nil)
	broken := newFakeConn()
	healthy := newFakeConn()

	brokenSub := NewSubscriber(broken, DefaultSubscriberConfig())
	healthySub := NewSubscriber(healthy, DefaultSubscriberConfig())
	hub.Register(brokenSub)
	hub.Register(healthySub)
	go brokenSub.writeLoop()
	go healthySub.writeLoop()

	broken.Fail(errors.New("broken pipe"))
	hub.Broadcast(envelope(30))

	select {
	case <-brokenSub.Done():
	case <-time.After(time.Second):
		t.Fatal("write error did not close the subscriber")
	}
	if hub.Len() != 1 {
		t.Fatalf("expected failed subscriber to be removed, %d remain", hub.Len())
	}

	// later ticks skip the closed subscriber and keep serving the rest
	for i := 0; i < 3; i++ {
		if n := hub.Broadcast(envelope(float64(40 + i))); n != 1 {
			t.Fatalf("expected 1 delivery, got %d", n)
		}
	}
	waitWrites(t, healthy, 4)
	hub.Close()
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := NewSubscriber(newFakeConn(), DefaultSubscriberConfig())
			hub.Register(sub)
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(envelope(5))
		}()
	}
	wg.Wait()

	if hub.Len() != 0 {
		t.Fatalf("expected empty hub, got %d", hub.Len())
	}
}

func TestHandlerSendsInitialThenBroadcast(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, func(ctx context.Context) models.Envelope {
		return envelope(64)
	}, DefaultSubscriberConfig())

	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first models.Envelope
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.Type != "occupancy" || first.Data.Value != 64 || first.Data.Status != models.StatusHigh {
		t.Fatalf("unexpected initial envelope %+v", first)
	}

	hub.Broadcast(envelope(12))
	var second models.Envelope
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if second.Data.Value != 12 || second.Data.Status != models.StatusLow {
		t.Fatalf("unexpected broadcast envelope %+v", second)
	}

	conn.Close()
	deadline := time.After(2 * time.Second)
	for hub.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("closed client was not removed from the hub")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
