package aggregator

import (
	"log"
	"sync"
	"time"

	"gym-iot-backend/internal/models"
)

// DebounceConfig defines how raw PIR samples become entry/exit detections
type DebounceConfig struct {
	ConsecutiveThreshold int           // Active samples in a row needed for a detection
	Cooldown             time.Duration // Minimum time between detections per device
}

// DefaultDebounceConfig returns the values tuned on the gym door sensors
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		ConsecutiveThreshold: 3,
		Cooldown:             3 * time.Second,
	}
}

// DeviceState holds the debounce state of one entry/exit sensor pair
type DeviceState struct {
	DeviceID          string
	Count             int
	EntryReadings     int
	ExitReadings      int
	LastDetectionTime time.Time
	mu                sync.Mutex
}

// EntryCounter turns raw PIR samples into per-device people counts
type EntryCounter struct {
	devices map[string]*DeviceState
	config  DebounceConfig
	mu      sync.Mutex
}

// NewEntryCounter creates a new entry counter
func NewEntryCounter(config DebounceConfig) *EntryCounter {
	if config.ConsecutiveThreshold <= 0 {
		config.ConsecutiveThreshold = 1
	}
	return &EntryCounter{
		devices: make(map[string]*DeviceState),
		config:  config,
	}
}

// getOrCreateDevice gets or creates a device state
func (ec *EntryCounter) getOrCreateDevice(deviceID string) *DeviceState {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if device, exists := ec.devices[deviceID]; exists {
		return device
	}

	device := &DeviceState{
		DeviceID: deviceID,
	}
	ec.devices[deviceID] = device
	return device
}

// Process applies one PIR sample and reports whether it produced a detection
func (ec *EntryCounter) Process(sample *models.PIRSample) (models.GymEntry, bool) {
	device := ec.getOrCreateDevice(sample.DeviceID)

	device.mu.Lock()
	detected := false

	if sample.Entry == 1 {
		device.EntryReadings++
	} else {
		device.EntryReadings = 0
	}
	// Fires once per activation: on the sample that completes the run
	if device.EntryReadings == ec.config.ConsecutiveThreshold &&
		ec.cooledDown(device, sample.Timestamp) {
		device.Count++
		device.LastDetectionTime = sample.Timestamp
		detected = true
		log.Printf("EntryCounter: Person entered at %s, count=%d", device.DeviceID, device.Count)
	}

	if sample.Exit == 1 {
		device.ExitReadings++
	} else {
		device.ExitReadings = 0
	}
	if device.ExitReadings == ec.config.ConsecutiveThreshold &&
		ec.cooledDown(device, sample.Timestamp) {
		if device.Count > 0 {
			device.Count--
		}
		device.LastDetectionTime = sample.Timestamp
		detected = true
		log.Printf("EntryCounter: Person exited at %s, count=%d", device.DeviceID, device.Count)
	}

	entry := models.GymEntry{
		Timestamp: sample.Timestamp,
		Count:     float64(device.Count),
		Device:    device.DeviceID,
	}
	device.mu.Unlock()

	return entry, detected
}

// cooledDown reports whether enough time passed since the last detection.
// Caller holds device.mu.
func (ec *EntryCounter) cooledDown(device *DeviceState, now time.Time) bool {
	if device.LastDetectionTime.IsZero() {
		return true
	}
	return now.Sub(device.LastDetectionTime) > ec.config.Cooldown
}
