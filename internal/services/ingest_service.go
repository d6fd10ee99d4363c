package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gym-iot-backend/internal/aggregator"
	"gym-iot-backend/internal/database"
	"gym-iot-backend/internal/metrics"
	"gym-iot-backend/internal/models"
)

// IngestService persists device samples arriving from MQTT
type IngestService struct {
	store   database.Store
	counter *aggregator.EntryCounter
	config  IngestServiceConfig
	metrics *metrics.Metrics

	// Input channels from MQTT subscribers
	PIRChan       chan *models.PIRSample
	OccupancyChan chan *models.OccupancySample
}

// IngestServiceConfig holds configuration for ingest service
type IngestServiceConfig struct {
	PIRChannelSize       int
	OccupancyChannelSize int
	OccupancyMeasurement string
	EntriesMeasurement   string
	EntriesDevice        string // Overrides the device tag of entry counts when set
	WriteTimeout         time.Duration
}

// DefaultIngestServiceConfig returns default configuration
func DefaultIngestServiceConfig() IngestServiceConfig {
	return IngestServiceConfig{
		PIRChannelSize:       200, // PIR sensors sample several times per second
		OccupancyChannelSize: 100,
		OccupancyMeasurement: models.MeasurementOccupancy,
		EntriesMeasurement:   models.MeasurementEntries,
		WriteTimeout:         5 * time.Second,
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store database.Store,
	counter *aggregator.EntryCounter,
	config IngestServiceConfig,
	m *metrics.Metrics,
) *IngestService {
	if config.OccupancyMeasurement == "" {
		config.OccupancyMeasurement = models.MeasurementOccupancy
	}
	if config.EntriesMeasurement == "" {
		config.EntriesMeasurement = models.MeasurementEntries
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &IngestService{
		store:         store,
		counter:       counter,
		config:        config,
		metrics:       m,
		PIRChan:       make(chan *models.PIRSample, config.PIRChannelSize),
		OccupancyChan: make(chan *models.OccupancySample, config.OccupancyChannelSize),
	}
}

// Start begins processing samples from channels.
// Runs until context is cancelled and both loops have returned.
func (s *IngestService) Start(ctx context.Context) {
	log.Println("IngestService: Starting...")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.processPIRLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.processOccupancyLoop(ctx)
	}()

	log.Println("IngestService: All processing loops started")

	<-ctx.Done()
	wg.Wait()
	log.Println("IngestService: Shutdown complete")
}

// processPIRLoop continuously processes PIR samples
func (s *IngestService) processPIRLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-s.PIRChan:
			if !ok {
				return
			}
			s.processPIR(ctx, sample)
		}
	}
}

// processOccupancyLoop continuously processes occupancy samples
func (s *IngestService) processOccupancyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-s.OccupancyChan:
			if !ok {
				return
			}
			s.processOccupancy(ctx, sample)
		}
	}
}

// processPIR debounces one PIR sample and stores the count on a detection
func (s *IngestService) processPIR(ctx context.Context, sample *models.PIRSample) {
	entry, detected := s.counter.Process(sample)
	if !detected {
		return
	}

	device := entry.Device
	if s.config.EntriesDevice != "" {
		device = s.config.EntriesDevice
	}

	point := models.Point{
		Timestamp:   entry.Timestamp,
		Measurement: s.config.EntriesMeasurement,
		Device:      device,
		Value:       entry.Count,
	}
	if err := s.write(ctx, point); err != nil {
		log.Printf("Error saving gym entry count: %v", err)
		return
	}

	log.Printf("Saved gym entry count: device=%s, count=%.0f", device, entry.Count)
}

// processOccupancy stores a directly reported occupancy value
func (s *IngestService) processOccupancy(ctx context.Context, sample *models.OccupancySample) {
	point := models.Point{
		Timestamp:   sample.Timestamp,
		Measurement: s.config.OccupancyMeasurement,
		Device:      sample.DeviceID,
		Value:       sample.Value,
	}
	if !point.Finite() {
		log.Printf("IngestService: dropping non-finite occupancy from %s", sample.DeviceID)
		return
	}
	if err := s.write(ctx, point); err != nil {
		log.Printf("Error saving occupancy: %v", err)
		return
	}

	log.Printf("Saved occupancy: device=%s, value=%.0f (%s)", sample.DeviceID, sample.Value, models.StatusFor(sample.Value))
}

func (s *IngestService) write(ctx context.Context, point models.Point) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	defer cancel()

	if err := s.store.Write(writeCtx, point); err != nil {
		return err
	}
	s.metrics.SampleIngested(point.Measurement)
	return nil
}
