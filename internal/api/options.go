package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gym-iot-backend/internal/database"
	"gym-iot-backend/internal/metrics"
	"gym-iot-backend/internal/models"
	"gym-iot-backend/internal/occupancy"
)

// ReadingSource reads occupancy history and entry counts from the store
type ReadingSource interface {
	History(ctx context.Context, window time.Duration, limit int) ([]models.Reading, bool)
	Entries(ctx context.Context, device string, window time.Duration, limit int) ([]models.GymEntry, bool)
}

// Forecaster predicts occupancy for the coming hours
type Forecaster interface {
	Forecast(now time.Time, current float64, hours int) []models.ForecastPoint
}

// WorkoutGenerator produces a workout plan or a *workout.Error
type WorkoutGenerator interface {
	Generate(ctx context.Context, req models.WorkoutRequest) (string, error)
}

// CurrentFunc returns the reading a live subscriber would see right now
type CurrentFunc func(ctx context.Context) models.Envelope

// ServerConfig collects the server's collaborators
type ServerConfig struct {
	Port          string
	HistoryWindow time.Duration
	HistoryLimit  int
	HistoryHours  int    // Length of the synthetic series served on a miss
	LiveDevice    string // Device tag of written-back synthetic readings
	EntriesDevice string
	EntriesLimit  int
	Areas         []string
	WriteTimeout  time.Duration

	Source    ReadingSource
	Generator *occupancy.Generator
	Store     database.Store
	Current   CurrentFunc
	Forecast  Forecaster
	Workout   WorkoutGenerator
	Live      http.Handler
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	AccessLog io.Writer
}

// ConfigOption customizes the server
type ConfigOption func(*ServerConfig) error

func WithPort(port string) ConfigOption {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port is required")
		}
		c.Port = port
		return nil
	}
}

func WithReadingSource(source ReadingSource) ConfigOption {
	return func(c *ServerConfig) error {
		c.Source = source
		return nil
	}
}

// WithFallback sets the synthetic data generator and the store synthetic
// series are written back to. store may be nil.
func WithFallback(gen *occupancy.Generator, store database.Store, hours int) ConfigOption {
	return func(c *ServerConfig) error {
		if gen == nil {
			return fmt.Errorf("fallback generator is required")
		}
		c.Generator = gen
		c.Store = store
		if hours > 0 {
			c.HistoryHours = hours
		}
		return nil
	}
}

func WithCurrent(fn CurrentFunc) ConfigOption {
	return func(c *ServerConfig) error {
		c.Current = fn
		return nil
	}
}

func WithForecaster(f Forecaster) ConfigOption {
	return func(c *ServerConfig) error {
		c.Forecast = f
		return nil
	}
}

func WithWorkout(w WorkoutGenerator) ConfigOption {
	return func(c *ServerConfig) error {
		c.Workout = w
		return nil
	}
}

func WithLiveHandler(h http.Handler) ConfigOption {
	return func(c *ServerConfig) error {
		c.Live = h
		return nil
	}
}

// WithLiveDevice tags written-back synthetic readings so the live query
// reads them on the next request
func WithLiveDevice(device string) ConfigOption {
	return func(c *ServerConfig) error {
		c.LiveDevice = device
		return nil
	}
}

func WithEntriesDevice(device string) ConfigOption {
	return func(c *ServerConfig) error {
		c.EntriesDevice = device
		return nil
	}
}

func WithAreas(areas []string) ConfigOption {
	return func(c *ServerConfig) error {
		if len(areas) == 0 {
			return fmt.Errorf("at least one area is required")
		}
		c.Areas = areas
		return nil
	}
}

// WithMetrics sets the collectors and the gatherer served on /metrics
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) ConfigOption {
	return func(c *ServerConfig) error {
		c.Metrics = m
		c.Gatherer = g
		return nil
	}
}

func WithAccessLog(w io.Writer) ConfigOption {
	return func(c *ServerConfig) error {
		c.AccessLog = w
		return nil
	}
}
