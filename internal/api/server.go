package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gym-iot-backend/internal/occupancy"
)

type Server struct {
	config  *ServerConfig
	router  *gin.Engine
	handler http.Handler
	writes  sync.WaitGroup // In-flight synthetic write-backs
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		Port:          "5000",
		HistoryWindow: 24 * time.Hour,
		HistoryLimit:  100,
		HistoryHours:  24,
		EntriesDevice: "pir",
		EntriesLimit:  10,
		Areas:         occupancy.DefaultAreas,
		WriteTimeout:  5 * time.Second,
		AccessLog:     os.Stdout,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	if config.Source == nil {
		return nil, fmt.Errorf("reading source is required")
	}
	if config.Generator == nil {
		return nil, fmt.Errorf("fallback generator is required")
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		config: config,
		router: router,
	}
	server.setupRoutes()

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	server.handler = handlers.LoggingHandler(config.AccessLog, cors(router))

	return server, nil
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Metrics endpoint
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	// Data routes
	api := s.router.Group("/api")
	{
		api.GET("/occupancy", s.handleOccupancy)
		api.GET("/gym-entries", s.handleGymEntries)
		api.GET("/areas", s.handleAreas)
		api.GET("/forecast", s.handleForecast)
	}

	// Workout generator
	s.router.POST("/generate-workout", s.handleGenerateWorkout)
	s.router.POST("/generate-workout-fallback", s.handleWorkoutFallback)

	// Live channel
	if s.config.Live != nil {
		s.router.GET("/ws", gin.WrapH(s.config.Live))
	}
}

// Handler returns the router wrapped in CORS and access logging
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then drains open requests and
// pending write-backs before returning
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", s.config.Port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-stopped
	s.writes.Wait()
	log.Println("HTTP server stopped")
	return nil
}
