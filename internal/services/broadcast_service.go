package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gym-iot-backend/internal/database"
	"gym-iot-backend/internal/metrics"
	"gym-iot-backend/internal/models"
	"gym-iot-backend/internal/occupancy"
)

// Broadcaster fans an envelope out to live subscribers
type Broadcaster interface {
	Broadcast(env models.Envelope) int
	Len() int
}

// Mirror receives a copy of every broadcast envelope (MQTT, Kafka)
type Mirror interface {
	Name() string
	Publish(ctx context.Context, env models.Envelope) error
}

// BroadcastConfig holds configuration for the broadcast loop
type BroadcastConfig struct {
	Interval       time.Duration
	MessageType    string
	Device         string        // Device tag used for written-back synthetic readings
	WriteTimeout   time.Duration // Bound on the synthetic write-back
	PublishTimeout time.Duration
	// AllowOverlap starts a tick even if the previous one is still running.
	// When false an overlapping tick is skipped and counted.
	AllowOverlap bool
}

// DefaultBroadcastConfig returns default configuration
func DefaultBroadcastConfig() BroadcastConfig {
	return BroadcastConfig{
		Interval:       2 * time.Second,
		MessageType:    "occupancy",
		WriteTimeout:   5 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// BroadcastService polls the store on a fixed interval and pushes the latest
// reading, or a synthetic one when the store has nothing, to every subscriber
type BroadcastService struct {
	poller    *Poller
	generator *occupancy.Generator
	store     database.Store
	hub       Broadcaster
	mirrors   []Mirror
	config    BroadcastConfig
	metrics   *metrics.Metrics
	now       func() time.Time

	tickID  atomic.Uint64
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewBroadcastService creates a new broadcast service
func NewBroadcastService(
	poller *Poller,
	generator *occupancy.Generator,
	store database.Store,
	hub Broadcaster,
	config BroadcastConfig,
	m *metrics.Metrics,
	mirrors ...Mirror,
) *BroadcastService {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	if config.MessageType == "" {
		config.MessageType = "occupancy"
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}
	return &BroadcastService{
		poller:    poller,
		generator: generator,
		store:     store,
		hub:       hub,
		mirrors:   mirrors,
		config:    config,
		metrics:   m,
		now:       time.Now,
	}
}

// Start runs the tick loop until the context is cancelled, then waits for
// in-flight ticks and write-backs
func (s *BroadcastService) Start(ctx context.Context) {
	log.Printf("BroadcastService: Starting (interval=%s, mirrors=%d)", s.config.Interval, len(s.mirrors))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("BroadcastService: Shutting down...")
			s.wg.Wait()
			log.Println("BroadcastService: Shutdown complete")
			return
		case <-ticker.C:
			id := s.tickID.Add(1)
			if !s.config.AllowOverlap && !s.running.CompareAndSwap(false, true) {
				log.Printf("BroadcastService: tick %d skipped, previous tick still running", id)
				s.metrics.TickSkipped()
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if !s.config.AllowOverlap {
					defer s.running.Store(false)
				}
				s.Tick(ctx, id)
			}()
		}
	}
}

// Tick performs one poll, fallback and fan-out cycle
func (s *BroadcastService) Tick(ctx context.Context, id uint64) {
	if s.hub.Len() == 0 && len(s.mirrors) == 0 {
		return
	}
	s.metrics.TickStarted()

	label := fmt.Sprintf("tick %d", id)
	reading, synthetic := s.resolve(ctx, label)
	env := models.Envelope{Type: s.config.MessageType, Data: reading}

	delivered := s.hub.Broadcast(env)
	log.Printf("BroadcastService: %s value=%.0f status=%s synthetic=%t delivered=%d",
		label, reading.Value, reading.Status, synthetic, delivered)

	for _, mirror := range s.mirrors {
		pubCtx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
		if err := mirror.Publish(pubCtx, env); err != nil {
			log.Printf("BroadcastService: %s publish to %s failed: %v", label, mirror.Name(), err)
			s.metrics.MirrorFailed(mirror.Name())
		}
		cancel()
	}
}

// Current returns the envelope a newly connected subscriber receives
func (s *BroadcastService) Current(ctx context.Context) models.Envelope {
	reading, _ := s.resolve(ctx, "connect")
	return models.Envelope{Type: s.config.MessageType, Data: reading}
}

// resolve polls the store and falls back to a synthetic reading on a miss.
// Synthetic readings are written back asynchronously.
func (s *BroadcastService) resolve(ctx context.Context, label string) (models.Reading, bool) {
	if reading, ok := s.poller.Latest(ctx); ok {
		return reading, false
	}

	reading := s.generator.At(s.now())
	s.metrics.FallbackUsed()
	log.Printf("BroadcastService: %s using synthetic reading %.0f", label, reading.Value)

	s.writeBack(label, reading)
	return reading, true
}

func (s *BroadcastService) writeBack(label string, reading models.Reading) {
	if s.store == nil {
		return
	}

	point := models.Point{
		Timestamp:   reading.Timestamp,
		Measurement: s.poller.config.Measurement,
		Device:      s.config.Device,
		Value:       reading.Value,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()

		if err := s.store.Write(ctx, point); err != nil {
			log.Printf("BroadcastService: %s write-back failed: %v", label, err)
			s.metrics.WritebackFailed()
		}
	}()
}

// Wait blocks until in-flight ticks and write-backs finish
func (s *BroadcastService) Wait() {
	s.wg.Wait()
}
