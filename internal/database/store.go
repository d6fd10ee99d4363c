package database

import (
	"context"
	"sync"
	"time"

	"gym-iot-backend/internal/models"
)

// Query selects points of one measurement from the time-series store
type Query struct {
	Measurement string
	Device      string    // Optional device tag filter
	Since       time.Time // Lower bound (inclusive), zero means unbounded
	Limit       int       // Zero means no limit
	Descending  bool      // Newest first when true
}

// Store is implemented by every time-series backend
type Store interface {
	Query(ctx context.Context, q Query) ([]models.Point, error)
	Write(ctx context.Context, points ...models.Point) error
	Ping(ctx context.Context) error
	Close() error
}

// schemaGate runs init until it succeeds once
type schemaGate struct {
	mu   sync.Mutex
	done bool
	init func(context.Context) error
}

func (g *schemaGate) ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done || g.init == nil {
		return nil
	}
	if err := g.init(ctx); err != nil {
		return err
	}
	g.done = true
	return nil
}
