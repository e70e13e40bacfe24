package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/pipeline"
)

// Consumer implements the pipeline.Source interface on top of an AMQP topic
// subscription. It declares the exchange, binds an exclusive server-named
// queue to it, and forwards deliveries with manual-ack handles into the
// pipeline.
type Consumer struct {
	cfg         *Config
	logger      zerolog.Logger
	conn        *amqp.Connection
	channel     *amqp.Channel
	queueName   string
	consumerTag string
	outputChan  chan pipeline.Delivery
	doneChan    chan struct{}
	stopOnce    sync.Once
}

// NewConsumer creates a Consumer. It does not connect until Start is called.
func NewConsumer(cfg *Config, logger zerolog.Logger) (*Consumer, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("AMQP broker URL is required")
	}
	return &Consumer{
		cfg:         cfg,
		logger:      logger.With().Str("component", "AmqpConsumer").Logger(),
		consumerTag: "telemetry-consumer-" + uuid.NewString(),
		outputChan:  make(chan pipeline.Delivery, 100),
		doneChan:    make(chan struct{}),
	}, nil
}

// Deliveries returns the read-only channel from which deliveries can be consumed.
func (c *Consumer) Deliveries() <-chan pipeline.Delivery {
	return c.outputChan
}

// Start dials the broker, declares the topology, and begins forwarding
// deliveries. Any error here is a setup failure and should abort startup.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err = channel.ExchangeDeclare(c.cfg.Exchange, c.cfg.ExchangeType, false, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %q: %w", c.cfg.Exchange, err)
	}

	// A server-named exclusive queue lives and dies with this connection, so
	// every consumer instance sees the full stream without leaving state behind.
	queue, err := channel.QueueDeclare("", false, false, true, false, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare consumer queue: %w", err)
	}
	if err = channel.QueueBind(queue.Name, c.cfg.BindingKey, c.cfg.Exchange, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to bind queue %q to exchange %q: %w", queue.Name, c.cfg.Exchange, err)
	}

	deliveries, err := channel.Consume(queue.Name, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start consuming from queue %q: %w", queue.Name, err)
	}

	c.conn = conn
	c.channel = channel
	c.queueName = queue.Name
	c.logger.Info().
		Str("queue", queue.Name).
		Str("exchange", c.cfg.Exchange).
		Str("binding_key", c.cfg.BindingKey).
		Msg("AMQP consumer ready.")

	go c.forward(ctx, deliveries)
	return nil
}

// forward copies broker deliveries onto the pipeline channel until the
// subscription is cancelled or the connection drops.
func (c *Consumer) forward(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		payloadCopy := make([]byte, len(d.Body))
		copy(payloadCopy, d.Body)

		delivery := pipeline.Delivery{
			Body:       payloadCopy,
			RoutingKey: d.RoutingKey,
			MessageID:  d.MessageId,
			Ack:        func() error { return d.Ack(false) },
			Reject:     func() error { return d.Reject(false) },
		}
		select {
		case c.outputChan <- delivery:
		case <-ctx.Done():
			// Not settled here: closing the channel returns it to the queue,
			// and the exclusive queue is deleted with the connection.
			c.logger.Warn().Str("routing_key", d.RoutingKey).Msg("Consumer is shutting down, dropping delivery.")
		}
	}
	c.logger.Info().Msg("AMQP delivery stream closed.")
	close(c.outputChan)
	close(c.doneChan)
}

// Stop cancels the subscription and waits for the delivery stream to drain.
// The connection itself stays open until Close so that deliveries still in
// the pipeline can be settled.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.channel == nil {
			// Never started; release the channels so readers do not hang.
			c.logger.Info().Msg("Stopping AMQP consumer...")
			close(c.outputChan)
			close(c.doneChan)
			return
		}
		c.logger.Info().Str("queue", c.queueName).Msg("Stopping AMQP consumer...")
		if cancelErr := c.channel.Cancel(c.consumerTag, false); cancelErr != nil {
			c.logger.Warn().Err(cancelErr).Msg("Failed to cancel AMQP subscription.")
		}
		select {
		case <-c.doneChan:
			c.logger.Info().Str("queue", c.queueName).Msg("AMQP consumer stopped.")
		case <-ctx.Done():
			err = ctx.Err()
			c.logger.Error().Err(err).Msg("Timeout waiting for AMQP delivery stream to drain.")
		}
	})
	return err
}

// Done returns a channel that is closed when the consumer has fully stopped.
func (c *Consumer) Done() <-chan struct{} {
	return c.doneChan
}

// Close releases the channel and connection. Call it only after the pipeline
// has settled every in-flight delivery.
func (c *Consumer) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close AMQP connection: %w", err)
	}
	c.logger.Info().Msg("AMQP connection closed.")
	return nil
}
