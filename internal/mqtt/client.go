// Package mqtt subscribes to the plant's raw-water sensor topic. The feed is
// optional; when no broker is configured the dashboard relies on HTTP polling
// alone.
package mqtt

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Capstone-E1/hydrodose_console/internal/models"
)

// Reading is one raw-water measurement received over the feed.
type Reading struct {
	Sample     models.WaterSample `json:"sample"`
	ReceivedAt time.Time          `json:"received_at"`
}

// Config holds MQTT connection configuration.
type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	Topic       string
	KeepAlive   time.Duration
	PingTimeout time.Duration
}

// DefaultConfig returns default MQTT configuration.
func DefaultConfig() *Config {
	return &Config{
		BrokerURL:   "tcp://localhost:1883",
		ClientID:    "hydrodose_console",
		Topic:       "hydrodose/sensors/raw",
		KeepAlive:   30 * time.Second,
		PingTimeout: 10 * time.Second,
	}
}

// Client wraps the MQTT client with raw-water feed functionality.
type Client struct {
	client       mqtt.Client
	topic        string
	dataHandler  func(Reading)
	errorHandler func(error)
	isConnected  bool
}

// NewClient creates a new MQTT client for the raw-water feed.
func NewClient(config *Config) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetPingTimeout(config.PingTimeout)
	opts.SetCleanSession(true)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	client := &Client{
		topic:       config.Topic,
		isConnected: false,
	}

	opts.SetDefaultPublishHandler(client.defaultMessageHandler)
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)

	client.client = mqtt.NewClient(opts)

	return client
}

// Connect establishes connection to the MQTT broker.
func (c *Client) Connect() error {
	log.Println("Connecting to MQTT broker...")

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Println("Successfully connected to MQTT broker")
	c.isConnected = true
	return nil
}

// Disconnect closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.isConnected {
		c.client.Disconnect(250)
		c.isConnected = false
		log.Println("Disconnected from MQTT broker")
	}
}

// IsConnected returns the connection status.
func (c *Client) IsConnected() bool {
	return c.isConnected && c.client.IsConnected()
}

// SubscribeToRawWater subscribes to the configured raw-water topic.
func (c *Client) SubscribeToRawWater() error {
	if token := c.client.Subscribe(c.topic, 1, c.rawWaterHandler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", c.topic, token.Error())
	}
	log.Printf("Subscribed to topic: %s", c.topic)
	return nil
}

// SetDataHandler sets the callback function for parsed readings.
func (c *Client) SetDataHandler(handler func(Reading)) {
	c.dataHandler = handler
}

// SetErrorHandler sets the callback function for errors.
func (c *Client) SetErrorHandler(handler func(error)) {
	c.errorHandler = handler
}

// rawWaterHandler processes incoming raw-water messages.
func (c *Client) rawWaterHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received raw-water data on topic %s: %s", msg.Topic(), string(msg.Payload()))

	// JSON is the preferred format; legacy devices publish comma-separated
	sample, err := ParseRawWaterJSON(msg.Payload())
	if err != nil {
		sample, err = ParseRawWaterString(string(msg.Payload()))
		if err != nil {
			log.Printf("Failed to parse raw-water data: %v", err)
			if c.errorHandler != nil {
				c.errorHandler(fmt.Errorf("raw-water data parsing failed: %w", err))
			}
			return
		}
	}

	reading := Reading{Sample: sample, ReceivedAt: time.Now()}
	log.Printf("Parsed raw-water reading: %s", FormatReading(reading))

	if c.dataHandler != nil {
		c.dataHandler(reading)
	}
}

// defaultMessageHandler handles messages on unsubscribed topics.
func (c *Client) defaultMessageHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received message on unhandled topic %s: %s", msg.Topic(), string(msg.Payload()))
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("MQTT client connected")
	c.isConnected = true
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection lost: %v", err)
	c.isConnected = false

	if c.errorHandler != nil {
		c.errorHandler(fmt.Errorf("MQTT connection lost: %w", err))
	}
}
