package mqttbridge

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Env constants for the MQTT side of the bridge.
const (
	EnvBrokerURL             = "MQTT_BROKER_URL"
	EnvTopic                 = "MQTT_TOPIC"
	EnvClientIDPrefix        = "MQTT_CLIENT_ID_PREFIX"
	EnvUsername              = "MQTT_USERNAME"
	EnvPassword              = "MQTT_PASSWORD"
	EnvSkipVerify            = "MQTT_INSECURE_SKIP_VERIFY"
	EnvKeepAliveSeconds      = "MQTT_KEEP_ALIVE_SECONDS"
	EnvConnectTimeoutSeconds = "MQTT_CONNECT_TIMEOUT_SECONDS"
)

// Config holds the configuration for the Paho MQTT client side of the bridge.
type Config struct {
	// BrokerURL is the full URL of the MQTT broker to connect to.
	// Example: "tls://mqtt.example.com:8883"
	BrokerURL string
	// Topic is the filter the bridge subscribes to.
	// Example: "sensors/+/reading"
	Topic string
	// ClientIDPrefix is a prefix for the MQTT client ID. A unique suffix is
	// automatically added to ensure client uniqueness, which most brokers require.
	ClientIDPrefix string
	// Username for authenticating with the MQTT broker.
	Username string
	// Password for authenticating with the MQTT broker.
	Password string
	// KeepAlive is the interval at which the client sends keep-alive pings.
	KeepAlive time.Duration
	// ConnectTimeout is the timeout for the initial connection attempt.
	ConnectTimeout time.Duration
	// ReconnectWaitMax is the maximum time to wait between reconnect attempts.
	ReconnectWaitMax time.Duration
	// CACertFile is an optional path to a CA certificate file for verifying
	// the broker's certificate.
	CACertFile string
	// ClientCertFile is an optional path to a client certificate file for
	// mTLS authentication.
	ClientCertFile string
	// ClientKeyFile is an optional path to a client key file for mTLS
	// authentication.
	ClientKeyFile string
	// InsecureSkipVerify skips TLS certificate verification.
	// This is NOT recommended for production environments.
	InsecureSkipVerify bool
}

// LoadConfigFromEnv loads the bridge's MQTT configuration from environment
// variables. Timeouts and keep-alive intervals fall back to sensible
// defaults when unset.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		BrokerURL:        os.Getenv(EnvBrokerURL),
		Topic:            "sensors/+/reading",
		ClientIDPrefix:   "telemetry-bridge-",
		Username:         os.Getenv(EnvUsername),
		Password:         os.Getenv(EnvPassword),
		KeepAlive:        60 * time.Second,
		ConnectTimeout:   10 * time.Second,
		ReconnectWaitMax: 120 * time.Second,
	}
	if v := os.Getenv(EnvTopic); v != "" {
		cfg.Topic = v
	}
	if v := os.Getenv(EnvClientIDPrefix); v != "" {
		cfg.ClientIDPrefix = v
	}
	if os.Getenv(EnvSkipVerify) == "true" {
		cfg.InsecureSkipVerify = true
	}

	if ka := os.Getenv(EnvKeepAliveSeconds); ka != "" {
		s, err := time.ParseDuration(ka + "s")
		if err == nil {
			cfg.KeepAlive = s
		} else {
			log.Printf("mqttbridge: error parsing keep-alive seconds: %s, using default", err)
		}
	}
	if ct := os.Getenv(EnvConnectTimeoutSeconds); ct != "" {
		s, err := time.ParseDuration(ct + "s")
		if err == nil {
			cfg.ConnectTimeout = s
		} else {
			log.Printf("mqttbridge: error parsing connect timeout seconds: %s, using default", err)
		}
	}

	return cfg
}
