package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the HydroDose operator console
type Config struct {
	Server  ServerConfig
	API     APIConfig
	Poller  PollerConfig
	MQTT    MQTTConfig
	Session SessionConfig
}

// ServerConfig holds the local console HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// APIConfig holds the prediction backend API configuration
type APIConfig struct {
	// BaseURL is the single configurable backend address. Earlier revisions of the
	// product pointed at port 5000; the current backend contract lives on 5001.
	BaseURL string
	Timeout time.Duration
}

// PollerConfig holds the dashboard refresh loop configuration
type PollerConfig struct {
	Interval        time.Duration
	DefaultLookback time.Duration
}

// MQTTConfig holds the optional plant sensor feed configuration
type MQTTConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	PingTimeout    time.Duration
	TopicSensorRaw string
}

// SessionConfig holds the operator session persistence configuration
type SessionConfig struct {
	FilePath string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("CONSOLE_PORT", "8090"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:5001/api/v1"),
			Timeout: getDurationEnv("API_TIMEOUT", 30*time.Second),
		},
		Poller: PollerConfig{
			Interval:        getDurationEnv("POLL_INTERVAL", 10*time.Second),
			DefaultLookback: getDurationEnv("POLL_LOOKBACK", 15*time.Minute),
		},
		MQTT: MQTTConfig{
			BrokerURL:      getMQTTBrokerURL(),
			ClientID:       getEnv("MQTT_CLIENT_ID", "hydrodose_console"),
			Username:       getEnv("MQTT_USERNAME", ""),
			Password:       getEnv("MQTT_PASSWORD", ""),
			KeepAlive:      getDurationEnv("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout:    getDurationEnv("MQTT_PING_TIMEOUT", 10*time.Second),
			TopicSensorRaw: getEnv("MQTT_TOPIC_SENSOR_RAW", "hydrodose/sensors/raw"),
		},
		Session: SessionConfig{
			FilePath: getEnv("SESSION_FILE", ".hydrodose_session.json"),
		},
	}
}

// getEnv returns environment variable value or default if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns duration environment variable value or default if not set
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getBoolEnv returns boolean environment variable value or default if not set
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getMQTTBrokerURL returns the MQTT broker URL with tcp:// prefix if not present.
// Empty means the sensor feed is disabled and the console relies on HTTP polling only.
func getMQTTBrokerURL() string {
	broker := getEnv("MQTT_BROKER", getEnv("MQTT_BROKER_URL", ""))
	if broker == "" {
		return ""
	}
	if !strings.HasPrefix(broker, "tcp:") && !strings.HasPrefix(broker, "ssl") {
		return "tcp://" + broker
	}
	return broker
}
