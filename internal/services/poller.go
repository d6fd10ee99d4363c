package services

import (
	"context"
	"log"
	"sort"
	"time"

	"gym-iot-backend/internal/database"
	"gym-iot-backend/internal/metrics"
	"gym-iot-backend/internal/models"
)

// PollerConfig holds the store filter used for live and historical reads
type PollerConfig struct {
	Measurement        string
	Device             string        // Optional device tag filter
	EntriesMeasurement string        // Measurement holding debounced entry counts
	Lookback           time.Duration // Range searched for the latest reading
	QueryTimeout       time.Duration
}

// DefaultPollerConfig returns default configuration
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Measurement:        models.MeasurementOccupancy,
		EntriesMeasurement: models.MeasurementEntries,
		Lookback:           24 * time.Hour,
		QueryTimeout:       5 * time.Second,
	}
}

// Poller reads the most recent readings from the time-series store.
// Query errors and empty results are logged and reported as a miss.
type Poller struct {
	store   database.Store
	config  PollerConfig
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewPoller creates a new poller
func NewPoller(store database.Store, config PollerConfig, m *metrics.Metrics) *Poller {
	if config.Measurement == "" {
		config.Measurement = models.MeasurementOccupancy
	}
	if config.EntriesMeasurement == "" {
		config.EntriesMeasurement = models.MeasurementEntries
	}
	if config.Lookback <= 0 {
		config.Lookback = 24 * time.Hour
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Second
	}
	return &Poller{
		store:   store,
		config:  config,
		metrics: m,
		now:     time.Now,
	}
}

// Latest returns the newest reading inside the lookback window
func (p *Poller) Latest(ctx context.Context) (models.Reading, bool) {
	points, ok := p.query(ctx, database.Query{
		Measurement: p.config.Measurement,
		Device:      p.config.Device,
		Since:       p.now().Add(-p.config.Lookback),
		Limit:       1,
		Descending:  true,
	})
	if !ok {
		return models.Reading{}, false
	}

	return models.NewReading(points[0].Timestamp, points[0].Value), true
}

// History returns up to limit of the newest readings inside window, oldest first
func (p *Poller) History(ctx context.Context, window time.Duration, limit int) ([]models.Reading, bool) {
	points, ok := p.query(ctx, database.Query{
		Measurement: p.config.Measurement,
		Device:      p.config.Device,
		Since:       p.now().Add(-window),
		Limit:       limit,
		Descending:  true,
	})
	if !ok {
		return nil, false
	}

	readings := make([]models.Reading, 0, len(points))
	for _, pt := range points {
		readings = append(readings, models.NewReading(pt.Timestamp, pt.Value))
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
	return readings, true
}

// Entries returns up to limit of the newest entry counter values for one
// device inside window, newest first
func (p *Poller) Entries(ctx context.Context, device string, window time.Duration, limit int) ([]models.GymEntry, bool) {
	points, ok := p.query(ctx, database.Query{
		Measurement: p.config.EntriesMeasurement,
		Device:      device,
		Since:       p.now().Add(-window),
		Limit:       limit,
		Descending:  true,
	})
	if !ok {
		return nil, false
	}

	entries := make([]models.GymEntry, 0, len(points))
	for _, pt := range points {
		entries = append(entries, models.GymEntry{
			Timestamp: pt.Timestamp,
			Count:     pt.Value,
			Device:    pt.Device,
		})
	}
	return entries, true
}

func (p *Poller) query(ctx context.Context, q database.Query) ([]models.Point, bool) {
	queryCtx, cancel := context.WithTimeout(ctx, p.config.QueryTimeout)
	defer cancel()

	start := time.Now()
	points, err := p.store.Query(queryCtx, q)
	p.metrics.ObservePoll(time.Since(start).Seconds())

	if err != nil {
		log.Printf("Poller: query %s failed: %v", q.Measurement, err)
		return nil, false
	}

	valid := points[:0]
	for _, pt := range points {
		if !pt.Finite() {
			log.Printf("Poller: skipping non-finite %s value from %q at %s", q.Measurement, pt.Device, pt.Timestamp.Format(time.RFC3339))
			continue
		}
		valid = append(valid, pt)
	}
	if len(valid) == 0 {
		log.Printf("Poller: no %s data since %s", q.Measurement, q.Since.Format(time.RFC3339))
		return nil, false
	}
	return valid, true
}
