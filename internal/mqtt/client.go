package mqtt

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client manages the MQTT connection to the gym sensor broker.
// Subscriber and Publisher share its native client.
type Client struct {
	client mqtt.Client
	config ClientConfig
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// OnConnect runs after the initial connect and every reconnect
	OnConnect func(mqtt.Client)
	// ConnectTimeout bounds the initial connect; zero waits forever
	ConnectTimeout time.Duration
}

// NewClient creates a new MQTT client connection
func NewClient(config ClientConfig) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.SetOnConnectHandler(connectHandler)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	if config.OnConnect != nil {
		// Subscriptions are re-issued on every reconnect
		opts.SetOnConnectHandler(func(c mqtt.Client) {
			connectHandler(c)
			config.OnConnect(c)
		})
	}

	client := mqtt.NewClient(opts)
	if err := connect(client, config.Broker, config.ConnectTimeout); err != nil {
		return nil, err
	}

	log.Println("MQTT Client: Connected to broker:", config.Broker)

	return &Client{
		client: client,
		config: config,
	}, nil
}

// connect waits for the initial connection. On failure the client is
// disconnected so the retry loop stops.
func connect(client mqtt.Client, broker string, timeout time.Duration) error {
	token := client.Connect()
	if timeout > 0 {
		if !token.WaitTimeout(timeout) {
			client.Disconnect(250)
			return fmt.Errorf("timed out connecting to MQTT broker %s", broker)
		}
	} else {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		client.Disconnect(250)
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// GetNativeClient returns the underlying paho MQTT client
// This is used by Subscriber and Publisher
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Println("MQTT Client: Disconnected")
}

// Connection event handlers
var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Printf("MQTT: Unrouted message on topic: %s", msg.Topic())
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Println("MQTT: Connection established")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("MQTT: Connection lost: %v", err)
}
