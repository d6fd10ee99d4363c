package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gym-iot-backend/internal/models"
)

// Publisher mirrors live envelopes to MQTT from a channel
type Publisher struct {
	client mqtt.Client

	// Input channel (read by publisher, written by the broadcast service)
	LiveChan chan models.Envelope

	// Topic pattern
	liveTopic string // e.g., "gym/{device_id}/live"
	deviceID  string
	qos       byte
	retained  bool
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	LiveTopic   string // e.g., "gym/{device_id}/live"
	DeviceID    string // Substituted into LiveTopic
	ChannelSize int
}

// NewPublisher creates a new MQTT publisher with its channel
func NewPublisher(client mqtt.Client, config PublisherConfig) *Publisher {
	if config.ChannelSize <= 0 {
		config.ChannelSize = 16
	}
	if config.DeviceID == "" {
		config.DeviceID = "main"
	}
	return &Publisher{
		client:    client,
		LiveChan:  make(chan models.Envelope, config.ChannelSize),
		liveTopic: config.LiveTopic,
		deviceID:  config.DeviceID,
		qos:       1,
		retained:  true,
	}
}

// Name identifies the mirror in logs and metrics
func (p *Publisher) Name() string {
	return "mqtt"
}

// Publish hands an envelope to the publish loop. It gives up when the
// context ends before the channel has room.
func (p *Publisher) Publish(ctx context.Context, env models.Envelope) error {
	select {
	case p.LiveChan <- env:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt live channel full: %w", ctx.Err())
	}
}

// Start begins publishing envelopes from the channel
// Runs until context is cancelled or channel is closed
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case env, ok := <-p.LiveChan:
			if !ok {
				log.Println("MQTT Publisher: Live channel closed, shutting down...")
				return
			}

			if err := p.publishEnvelope(env); err != nil {
				log.Printf("Error publishing live reading: %v", err)
			}
		}
	}
}

// publishEnvelope publishes one envelope, retained so late subscribers get
// the latest reading
func (p *Publisher) publishEnvelope(env models.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	topic := formatTopic(p.liveTopic, p.deviceID)

	token := p.client.Publish(topic, p.qos, p.retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish live reading: %w", token.Error())
	}
	return nil
}

// formatTopic replaces {device_id} placeholder with actual device ID
func formatTopic(topicPattern, deviceID string) string {
	return strings.ReplaceAll(topicPattern, "{device_id}", deviceID)
}
