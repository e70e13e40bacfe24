package mqttbridge

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Publisher is the downstream the bridge republishes payloads onto.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// Bridge subscribes to an MQTT topic filter and republishes every payload
// onto the AMQP exchange, so MQTT-attached sensors feed the same consumer
// pipeline as native publishers. Payloads are forwarded as-is; validation
// stays with the consumer.
type Bridge struct {
	mqttCfg    *Config
	publisher  Publisher
	routingKey string
	logger     zerolog.Logger
	pahoClient mqtt.Client
	doneChan   chan struct{}
	stopOnce   sync.Once
}

// NewBridge creates a Bridge. It does not connect until Start is called.
func NewBridge(cfg *Config, publisher Publisher, routingKey string, logger zerolog.Logger) (*Bridge, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	return &Bridge{
		mqttCfg:    cfg,
		publisher:  publisher,
		routingKey: routingKey,
		logger:     logger.With().Str("component", "MqttBridge").Logger(),
		doneChan:   make(chan struct{}),
	}, nil
}

// Start launches the connection logic and begins forwarding messages.
func (b *Bridge) Start(ctx context.Context) error {
	opts := b.createMqttOptions()
	opts.SetDefaultPublishHandler(b.handleIncomingMessage(ctx))
	b.pahoClient = mqtt.NewClient(opts)

	b.logger.Info().Msg("Attempting to connect to MQTT broker...")
	if token := b.pahoClient.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		b.logger.Error().Err(token.Error()).Msg("Failed to connect to MQTT broker on startup. The Paho client will continue to retry in the background.")
	} else if token.Error() == nil {
		b.logger.Info().Msg("Initial connection to MQTT broker successful.")
	}

	go func() {
		<-ctx.Done()
		b.logger.Info().Msg("Shutdown signal received, ensuring bridge is stopped.")
		_ = b.Stop(context.Background())
	}()

	return nil
}

// Stop gracefully ceases forwarding and disconnects from the MQTT broker.
func (b *Bridge) Stop(_ context.Context) error {
	b.stopOnce.Do(func() {
		b.logger.Info().Msg("Stopping MQTT bridge...")
		if b.pahoClient != nil && b.pahoClient.IsConnected() {
			if token := b.pahoClient.Unsubscribe(b.mqttCfg.Topic); token.WaitTimeout(2*time.Second) && token.Error() != nil {
				b.logger.Warn().Err(token.Error()).Str("topic", b.mqttCfg.Topic).Msg("Failed to unsubscribe from MQTT topic.")
			}
			b.pahoClient.Disconnect(500) // 500ms grace period
			b.logger.Info().Msg("Paho MQTT client disconnected.")
		}
		close(b.doneChan)
		b.logger.Info().Msg("MQTT bridge stopped.")
	})
	return nil
}

// Done returns a channel that is closed when the bridge has fully stopped.
func (b *Bridge) Done() <-chan struct{} {
	return b.doneChan
}

// IsConnected returns the connection status of the underlying Paho client.
// This is useful for integration tests to wait until the bridge is ready.
func (b *Bridge) IsConnected() bool {
	return b.pahoClient != nil && b.pahoClient.IsConnected()
}

// GetMessageHandlerForTest returns the internal message handler for unit testing.
func (b *Bridge) GetMessageHandlerForTest(ctx context.Context) mqtt.MessageHandler {
	return b.handleIncomingMessage(ctx)
}

// handleIncomingMessage is the callback that republishes MQTT messages onto
// the AMQP exchange.
func (b *Bridge) handleIncomingMessage(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		b.logger.Debug().Str("topic", msg.Topic()).Msg("Received MQTT message")
		payloadCopy := make([]byte, len(msg.Payload()))
		copy(payloadCopy, msg.Payload())

		if err := b.publisher.Publish(ctx, b.routingKey, payloadCopy); err != nil {
			b.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to republish MQTT message.")
			return
		}
		b.logger.Debug().Str("topic", msg.Topic()).Str("routing_key", b.routingKey).Msg("MQTT message forwarded.")
	}
}

// createMqttOptions assembles the Paho client options from the config.
func (b *Bridge) createMqttOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.mqttCfg.BrokerURL)
	uniqueSuffix := time.Now().UnixNano() % 1000000
	opts.SetClientID(fmt.Sprintf("%s%d", b.mqttCfg.ClientIDPrefix, uniqueSuffix))
	opts.SetUsername(b.mqttCfg.Username)
	opts.SetPassword(b.mqttCfg.Password)
	opts.SetKeepAlive(b.mqttCfg.KeepAlive)
	opts.SetConnectTimeout(b.mqttCfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(b.mqttCfg.ReconnectWaitMax)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		b.logger.Info().Str("broker", b.mqttCfg.BrokerURL).Msg("Paho client connected to MQTT broker.")
		token := client.Subscribe(b.mqttCfg.Topic, 1, nil) // Subscribe with QoS 1
		go func() {
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				b.logger.Error().Err(token.Error()).Str("topic", b.mqttCfg.Topic).Msg("Failed to subscribe to MQTT topic.")
			} else {
				b.logger.Info().Str("topic", b.mqttCfg.Topic).Msg("Successfully subscribed to MQTT topic.")
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Error().Err(err).Msg("Paho client lost MQTT connection.")
	})

	if strings.HasPrefix(strings.ToLower(b.mqttCfg.BrokerURL), "tls://") {
		tlsConfig, err := newTLSConfig(b.mqttCfg)
		if err != nil {
			b.logger.Error().Err(err).Msg("Failed to create TLS config, proceeding without it.")
		} else {
			opts.SetTLSConfig(tlsConfig)
			b.logger.Info().Msg("TLS configured for MQTT client.")
		}
	}
	return opts
}

// newTLSConfig is a helper to create a tls.Config.
func newTLSConfig(cfg *Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert file %s: %w", cfg.CACertFile, err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA cert from %s", cfg.CACertFile)
		}
		tlsConfig.RootCAs = caCertPool
	}
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
