package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher emits telemetry payloads onto the configured exchange.
type Publisher struct {
	cfg     *Config
	logger  zerolog.Logger
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher dials the broker and declares the exchange so the publisher
// is ready to emit immediately.
func NewPublisher(cfg *Config, logger zerolog.Logger) (*Publisher, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("AMQP broker URL is required")
	}
	conn, err := amqp.Dial(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err = channel.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, false, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", cfg.Exchange, err)
	}

	pubLogger := logger.With().Str("component", "AmqpPublisher").Logger()
	pubLogger.Info().Str("exchange", cfg.Exchange).Msg("AMQP publisher ready.")

	return &Publisher{
		cfg:     cfg,
		logger:  pubLogger,
		conn:    conn,
		channel: channel,
	}, nil
}

// Publish sends one payload to the exchange under the given routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	err := p.channel.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %q: %w", p.cfg.Exchange, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close AMQP connection: %w", err)
	}
	p.logger.Info().Msg("AMQP connection closed.")
	return nil
}
