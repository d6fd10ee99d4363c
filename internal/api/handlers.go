package api

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gym-iot-backend/internal/ml"
	"gym-iot-backend/internal/models"
	"gym-iot-backend/internal/workout"
)

const (
	defaultEntryMinutes  = 5
	defaultForecastHours = 4
)

// handleOccupancy returns the recent occupancy history, oldest first. When
// the store has nothing it serves a synthetic series and writes it back.
func (s *Server) handleOccupancy(c *gin.Context) {
	readings, ok := s.config.Source.History(c.Request.Context(), s.config.HistoryWindow, s.config.HistoryLimit)
	if ok {
		c.JSON(http.StatusOK, readings)
		return
	}

	series := s.config.Generator.Series(time.Now(), s.config.HistoryHours)
	log.Printf("API: serving %d synthetic occupancy readings", len(series))
	s.writeBack(series)

	c.JSON(http.StatusOK, series)
}

// handleGymEntries returns the latest entry counts within ?minutes=
func (s *Server) handleGymEntries(c *gin.Context) {
	minutes := queryInt(c, "minutes", defaultEntryMinutes)
	if minutes <= 0 {
		minutes = defaultEntryMinutes
	}

	entries, ok := s.config.Source.Entries(c.Request.Context(), s.config.EntriesDevice,
		time.Duration(minutes)*time.Minute, s.config.EntriesLimit)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"message": "No data found",
			"data":    []models.GymEntry{},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Data retrieved successfully",
		"count":   len(entries),
		"data":    entries,
	})
}

// handleAreas splits the current occupancy across the gym areas
func (s *Server) handleAreas(c *gin.Context) {
	reading := s.current(c.Request.Context())
	total := int(math.Round(reading.Value))
	if total < 0 {
		total = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": reading.Timestamp,
		"total":     total,
		"status":    reading.Status,
		"areas":     s.config.Generator.Split(total, s.config.Areas),
	})
}

// handleForecast predicts occupancy for the next ?hours=
func (s *Server) handleForecast(c *gin.Context) {
	if s.config.Forecast == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Forecast is not available"})
		return
	}

	hours := queryInt(c, "hours", defaultForecastHours)
	if hours <= 0 {
		hours = defaultForecastHours
	}
	if hours > ml.MaxForecastHours {
		hours = ml.MaxForecastHours
	}

	reading := s.current(c.Request.Context())
	c.JSON(http.StatusOK, s.config.Forecast.Forecast(time.Now(), reading.Value, hours))
}

// handleGenerateWorkout proxies the request to the generative API
func (s *Server) handleGenerateWorkout(c *gin.Context) {
	var req models.WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("API: invalid workout body: %v", err)
		req = models.WorkoutRequest{}
	}

	if s.config.Workout == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: workout.MsgNoAPIKey})
		return
	}

	plan, err := s.config.Workout.Generate(c.Request.Context(), req)
	if err != nil {
		status, message, outcome := http.StatusInternalServerError, workout.MsgGenerateFailed, "failed"
		var werr *workout.Error
		if errors.As(err, &werr) {
			status, message, outcome = werr.Status, werr.Message, werr.Outcome
		}
		s.config.Metrics.WorkoutRequest(outcome)
		c.JSON(status, models.ErrorResponse{Error: message})
		return
	}

	s.config.Metrics.WorkoutRequest("ok")
	c.JSON(http.StatusOK, models.WorkoutPlan{WorkoutPlan: plan})
}

// handleWorkoutFallback returns the templated plan
func (s *Server) handleWorkoutFallback(c *gin.Context) {
	var req models.WorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = models.WorkoutRequest{}
	}

	s.config.Metrics.WorkoutRequest("fallback")
	c.JSON(http.StatusOK, models.WorkoutPlan{WorkoutPlan: workout.FallbackPlan(req)})
}

// current returns the live reading, or a synthetic one if no live source is set
func (s *Server) current(ctx context.Context) models.Reading {
	if s.config.Current != nil {
		return s.config.Current(ctx).Data
	}
	return s.config.Generator.At(time.Now())
}

// writeBack stores a synthetic series without holding up the response
func (s *Server) writeBack(series []models.Reading) {
	if s.config.Store == nil || len(series) == 0 {
		return
	}

	points := make([]models.Point, 0, len(series))
	for _, r := range series {
		points = append(points, models.Point{
			Timestamp:   r.Timestamp,
			Measurement: models.MeasurementOccupancy,
			Device:      s.config.LiveDevice,
			Value:       r.Value,
		})
	}

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		if err := s.config.Store.Write(ctx, points...); err != nil {
			log.Printf("API: failed to store synthetic series: %v", err)
			s.config.Metrics.WritebackFailed()
		}
	}()
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
