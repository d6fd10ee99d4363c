package models

import (
	"fmt"
	"math"
	"time"
)

// Status is the occupancy label derived from a reading's value
type Status string

const (
	StatusLow      Status = "low"
	StatusModerate Status = "moderate"
	StatusHigh     Status = "high"
	StatusCritical Status = "critical"
)

// Measurement names used in the time-series store
const (
	MeasurementOccupancy = "gym_occupancy"
	MeasurementEntries   = "gym_entries"
)

// Threshold is an exclusive upper bound for one status band
type Threshold struct {
	Upper  float64
	Status Status
}

// Thresholds partitions the value domain into status bands. Bands are
// checked in order; values at or above the last bound get Top.
type Thresholds struct {
	Bands []Threshold
	Top   Status
}

// OccupancyThresholds maps occupancy to
// [-inf,20) low, [20,60) moderate, [60,85) high, [85,+inf) critical.
var OccupancyThresholds = Thresholds{
	Bands: []Threshold{
		{Upper: 20, Status: StatusLow},
		{Upper: 60, Status: StatusModerate},
		{Upper: 85, Status: StatusHigh},
	},
	Top: StatusCritical,
}

// Validate checks that bounds are finite and strictly increasing
func (t Thresholds) Validate() error {
	if t.Top == "" {
		return fmt.Errorf("thresholds: top status is empty")
	}
	for i, b := range t.Bands {
		if math.IsNaN(b.Upper) || math.IsInf(b.Upper, 0) {
			return fmt.Errorf("thresholds: band %d has non-finite bound", i)
		}
		if b.Status == "" {
			return fmt.Errorf("thresholds: band %d has empty status", i)
		}
		if i > 0 && b.Upper <= t.Bands[i-1].Upper {
			return fmt.Errorf("thresholds: band %d bound %.2f not above %.2f", i, b.Upper, t.Bands[i-1].Upper)
		}
	}
	return nil
}

// Classify returns the status of the band containing value.
// NaN falls into the lowest band.
func (t Thresholds) Classify(value float64) Status {
	if math.IsNaN(value) {
		if len(t.Bands) > 0 {
			return t.Bands[0].Status
		}
		return t.Top
	}
	for _, b := range t.Bands {
		if value < b.Upper {
			return b.Status
		}
	}
	return t.Top
}

// StatusFor maps an occupancy value to its label
func StatusFor(value float64) Status {
	return OccupancyThresholds.Classify(value)
}

// Reading is one timestamped occupancy value plus its derived status.
// Build it with NewReading so the status always matches the value.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Status    Status    `json:"status"`
}

// NewReading creates a reading and derives its status
func NewReading(ts time.Time, value float64) Reading {
	return Reading{
		Timestamp: ts,
		Value:     value,
		Status:    StatusFor(value),
	}
}

// GymEntry represents a debounced entry counter value from a PIR device
type GymEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Count     float64   `json:"count"`
	Device    string    `json:"device,omitempty"`
}

// PIRSample is one raw motion sample from an entry/exit sensor pair
type PIRSample struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Entry     int       `json:"entry"`
	Exit      int       `json:"exit"`
}

// OccupancySample is an occupancy value reported directly by a device
type OccupancySample struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Value     float64   `json:"value"`
}

// Point is a single row in the time-series store
type Point struct {
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	Measurement string    `json:"measurement" bson:"measurement"`
	Device      string    `json:"device" bson:"device"`
	Value       float64   `json:"value" bson:"value"`
}

// Finite reports whether the value can be classified and JSON encoded
func (p Point) Finite() bool {
	return !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0)
}

// Envelope is the message pushed over the live channel
type Envelope struct {
	Type string  `json:"type"`
	Data Reading `json:"data"`
}

// AreaCount is the share of the current occupancy assigned to one gym area
type AreaCount struct {
	Area  string `json:"area"`
	Count int    `json:"count"`
}

// ForecastPoint is one step of the short-term occupancy forecast
type ForecastPoint struct {
	Time   string `json:"time"`
	People int    `json:"people"`
}
