package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	"gym-iot-backend/internal/aggregator"
	"gym-iot-backend/internal/api"
	"gym-iot-backend/internal/broker"
	"gym-iot-backend/internal/database"
	"gym-iot-backend/internal/live"
	"gym-iot-backend/internal/metrics"
	"gym-iot-backend/internal/ml"
	"gym-iot-backend/internal/mqtt"
	"gym-iot-backend/internal/occupancy"
	"gym-iot-backend/internal/services"
	"gym-iot-backend/internal/workout"
	"gym-iot-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logOutput := setupLogging(cfg.LogFile)

	log.Println("Starting Gym IoT Backend Service...")

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to resolve timezone: %v", err)
	}

	// Initialize time-series store. An unreachable backend is not fatal:
	// reads miss and the synthetic fallback serves until it comes up.
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreBackend, err)
	}
	defer store.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)
	generator := occupancy.NewGenerator(occupancy.DefaultProfile(), nil, loc)

	// === Live pipeline ===
	poller := services.NewPoller(store, services.PollerConfig{
		Measurement:        cfg.LiveMeasurement,
		Device:             cfg.LiveDevice,
		EntriesMeasurement: cfg.EntriesMeasurement,
		Lookback:           cfg.LiveLookback,
		QueryTimeout:       cfg.StoreQueryTimeout,
	}, m)

	hub := live.NewHub(m)

	// === Ingest pipeline ===
	counter := aggregator.NewEntryCounter(aggregator.DebounceConfig{
		ConsecutiveThreshold: cfg.ConsecutiveThreshold,
		Cooldown:             cfg.DetectionCooldown,
	})

	ingestConfig := services.DefaultIngestServiceConfig()
	ingestConfig.EntriesMeasurement = cfg.EntriesMeasurement
	ingestConfig.EntriesDevice = cfg.EntriesDevice
	ingestConfig.WriteTimeout = cfg.StoreWriteTimeout
	ingestService := services.NewIngestService(store, counter, ingestConfig, m)
	ingestDone := make(chan struct{})
	go func() {
		ingestService.Start(ctx)
		close(ingestDone)
	}()

	var mirrors []services.Mirror

	// === MQTT ===
	if cfg.MQTTEnabled {
		log.Println("Connecting to MQTT broker...")
		subscriber := mqtt.NewSubscriber(mqtt.SubscriberConfig{
			PIRTopic:       cfg.MQTTTopicPIR,
			OccupancyTopic: cfg.MQTTTopicOccupancy,
		}, ingestService.PIRChan, ingestService.OccupancyChan)

		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			Broker:         cfg.MQTTBroker,
			ClientID:       cfg.MQTTClientID,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			OnConnect:      subscriber.OnConnect,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			log.Printf("MQTT unavailable, continuing without device ingest: %v", err)
		} else {
			defer mqttClient.Close()

			publisher := mqtt.NewPublisher(mqttClient.GetNativeClient(), mqtt.PublisherConfig{
				LiveTopic: cfg.MQTTTopicLive,
				DeviceID:  cfg.LiveDevice,
			})
			go publisher.Start(ctx)
			mirrors = append(mirrors, publisher)
			log.Printf("MQTT: connected=%t, mirroring live readings", mqttClient.IsConnected())
		}
	}

	// === Kafka ===
	if kafkaMirror := broker.NewKafkaMirror(broker.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	}); kafkaMirror != nil {
		defer kafkaMirror.Close()
		mirrors = append(mirrors, kafkaMirror)
	}

	// === Broadcast loop ===
	broadcastConfig := services.DefaultBroadcastConfig()
	broadcastConfig.Interval = cfg.BroadcastInterval
	broadcastConfig.MessageType = cfg.BroadcastMessageType
	broadcastConfig.Device = cfg.LiveDevice
	broadcastConfig.WriteTimeout = cfg.StoreWriteTimeout
	broadcastConfig.AllowOverlap = cfg.BroadcastAllowOverlap

	broadcastService := services.NewBroadcastService(poller, generator, store, hub, broadcastConfig, m, mirrors...)
	go broadcastService.Start(ctx)

	liveHandler := live.NewHandler(hub, broadcastService.Current, live.DefaultSubscriberConfig())

	// === HTTP API ===
	options := []api.ConfigOption{
		api.WithPort(cfg.Port),
		api.WithReadingSource(poller),
		api.WithFallback(generator, store, cfg.HistoryHours),
		api.WithLiveDevice(cfg.LiveDevice),
		api.WithCurrent(broadcastService.Current),
		api.WithLiveHandler(liveHandler),
		api.WithEntriesDevice(cfg.EntriesDevice),
		api.WithMetrics(m, prometheus.DefaultGatherer),
		api.WithAccessLog(logOutput),
		api.WithWorkout(workout.NewClient(workout.Config{
			APIKey:  cfg.GeminiAPIKey,
			URL:     cfg.GeminiAPIURL,
			Timeout: cfg.GeminiTimeout,
		}, nil)),
	}

	predictor, err := ml.LoadPredictor(cfg.ModelPath, generator.Profile(), loc)
	if err != nil {
		log.Printf("Forecast disabled: %v", err)
	} else {
		options = append(options, api.WithForecaster(predictor))
	}

	server, err := api.NewServer(options...)
	if err != nil {
		log.Fatalf("Failed to create HTTP server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	// === Log startup info ===
	log.Println("=== Gym IoT Backend Service is running ===")
	log.Printf("Store: %s, live measurement: %s", cfg.StoreBackend, cfg.LiveMeasurement)
	log.Printf("Broadcast every %s, %d mirror(s)", cfg.BroadcastInterval, len(mirrors))
	if cfg.MQTTEnabled {
		log.Printf("MQTT Topics:")
		log.Printf("  - PIR:       %s", cfg.MQTTTopicPIR)
		log.Printf("  - Occupancy: %s", cfg.MQTTTopicOccupancy)
		log.Printf("  - Live:      %s", cfg.MQTTTopicLive)
	}
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverStopped := false
	select {
	case <-sigChan:
		log.Println("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		log.Printf("HTTP server stopped: %v", err)
		serverStopped = true
	}

	// === Graceful shutdown ===
	cancel()
	if !serverStopped {
		if err := <-serverErr; err != nil {
			log.Printf("HTTP server error during shutdown: %v", err)
		}
	}
	broadcastService.Wait()
	<-ingestDone
	hub.Close()

	log.Println("Shutdown complete. Goodbye!")
}

// setupLogging sends the standard logger to stdout and, when path is set,
// to a rotated file as well
func setupLogging(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}

	out := io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	log.SetOutput(out)
	return out
}

// openStore builds the configured time-series backend. Only configuration
// errors are returned; an unreachable server is logged by the store and its
// schema is created once it answers.
func openStore(cfg *config.Config) (database.Store, error) {
	switch cfg.StoreBackend {
	case "clickhouse":
		return database.NewClickHouseDB(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)

	case "mongo":
		client, err := database.NewMongoConnection(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return database.NewMongoStore(client, cfg.MongoDB, cfg.MongoCollection)

	case "timescale":
		db, err := sql.Open("postgres", cfg.TimescaleConnString)
		if err != nil {
			return nil, fmt.Errorf("open timescale: %w", err)
		}
		store := database.NewTimescaleStore(db, cfg.TimescaleTable)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.InitSchema(ctx); err != nil {
			log.Printf("Warning: Timescale unavailable, serving fallback data until it is: %v", err)
		}
		return store, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
