package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gym-iot-backend/internal/models"
)

// Subscriber handles MQTT subscriptions and writes samples to channels
type Subscriber struct {
	// Output channels (written by subscriber, read by the ingest service)
	PIRChan       chan *models.PIRSample
	OccupancyChan chan *models.OccupancySample

	// Topic patterns
	pirTopic       string
	occupancyTopic string
	sendTimeout    time.Duration

	now func() time.Time
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	PIRTopic       string        // e.g., "sensor/+/pir"
	OccupancyTopic string        // e.g., "sensor/+/occupancy"
	SendTimeout    time.Duration // How long to wait on a full channel before dropping
}

// pirPayload is the JSON body published by the entry/exit counter
type pirPayload struct {
	Entry int `json:"entry"`
	Exit  int `json:"exit"`
}

// NewSubscriber creates a new MQTT subscriber with channels
func NewSubscriber(
	config SubscriberConfig,
	pirChan chan *models.PIRSample,
	occupancyChan chan *models.OccupancySample,
) *Subscriber {
	if config.SendTimeout <= 0 {
		config.SendTimeout = 1 * time.Second
	}
	return &Subscriber{
		PIRChan:        pirChan,
		OccupancyChan:  occupancyChan,
		pirTopic:       config.PIRTopic,
		occupancyTopic: config.OccupancyTopic,
		sendTimeout:    config.SendTimeout,
		now:            time.Now,
	}
}

// SubscribeAll subscribes to all configured sensor topics
func (s *Subscriber) SubscribeAll(client mqtt.Client) error {
	if s.pirTopic != "" {
		if err := subscribeToTopic(client, s.pirTopic, s.handlePIR); err != nil {
			return fmt.Errorf("failed to subscribe to PIR topic: %w", err)
		}
		log.Printf("Subscribed to PIR topic: %s", s.pirTopic)
	}

	if s.occupancyTopic != "" {
		if err := subscribeToTopic(client, s.occupancyTopic, s.handleOccupancy); err != nil {
			return fmt.Errorf("failed to subscribe to occupancy topic: %w", err)
		}
		log.Printf("Subscribed to occupancy topic: %s", s.occupancyTopic)
	}

	return nil
}

// OnConnect re-subscribes after a (re)connect
func (s *Subscriber) OnConnect(client mqtt.Client) {
	if err := s.SubscribeAll(client); err != nil {
		log.Printf("MQTT Subscriber: %v", err)
	}
}

// subscribeToTopic is a helper function to subscribe to a topic with a handler
func subscribeToTopic(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 1, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// handlePIR processes entry/exit sensor messages and writes to channel
func (s *Subscriber) handlePIR(client mqtt.Client, msg mqtt.Message) {
	sample, err := s.parsePIR(msg.Topic(), msg.Payload())
	if err != nil {
		log.Printf("Error parsing PIR message: %v", err)
		return
	}

	select {
	case s.PIRChan <- sample:
	case <-time.After(s.sendTimeout):
		log.Printf("Warning: PIR channel full, dropping message from %s", sample.DeviceID)
	}
}

// handleOccupancy processes occupancy messages and writes to channel
func (s *Subscriber) handleOccupancy(client mqtt.Client, msg mqtt.Message) {
	sample, err := s.parseOccupancy(msg.Topic(), msg.Payload())
	if err != nil {
		log.Printf("Error parsing occupancy message: %v", err)
		return
	}

	log.Printf("Received occupancy from %s: %.0f", sample.DeviceID, sample.Value)

	select {
	case s.OccupancyChan <- sample:
	case <-time.After(s.sendTimeout):
		log.Printf("Warning: Occupancy channel full, dropping message from %s", sample.DeviceID)
	}
}

// parsePIR decodes a {"entry":0|1,"exit":0|1} payload. Timestamps are
// generated server-side.
func (s *Subscriber) parsePIR(topic string, payload []byte) (*models.PIRSample, error) {
	deviceID := extractDeviceID(topic)
	if deviceID == "" {
		return nil, fmt.Errorf("could not extract device ID from topic: %s", topic)
	}

	var body pirPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal PIR payload from %s: %w", deviceID, err)
	}
	if !isBit(body.Entry) || !isBit(body.Exit) {
		return nil, fmt.Errorf("PIR payload from %s out of range: entry=%d exit=%d", deviceID, body.Entry, body.Exit)
	}

	return &models.PIRSample{
		Timestamp: s.now(),
		DeviceID:  deviceID,
		Entry:     body.Entry,
		Exit:      body.Exit,
	}, nil
}

// parseOccupancy decodes a raw float payload
func (s *Subscriber) parseOccupancy(topic string, payload []byte) (*models.OccupancySample, error) {
	deviceID := extractDeviceID(topic)
	if deviceID == "" {
		return nil, fmt.Errorf("could not extract device ID from topic: %s", topic)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return nil, fmt.Errorf("parse occupancy value from %s: %w", deviceID, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("non-finite occupancy %q from %s", strings.TrimSpace(string(payload)), deviceID)
	}
	if value < 0 {
		return nil, fmt.Errorf("negative occupancy %.2f from %s", value, deviceID)
	}

	return &models.OccupancySample{
		Timestamp: s.now(),
		DeviceID:  deviceID,
		Value:     value,
	}, nil
}

func isBit(v int) bool {
	return v == 0 || v == 1
}

// extractDeviceID extracts device ID from MQTT topic
// Example: "sensor/door-1/pir" -> "door-1"
func extractDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}
