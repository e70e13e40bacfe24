// The simulator emits synthetic DHT22-style readings onto the telemetry
// exchange at a fixed interval until interrupted.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/rabbitmq"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if info, err := os.Stderr.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "simulator").Logger()
}

func main() {
	logger := newLogger()

	amqpCfg := rabbitmq.LoadConfigFromEnv()
	genCfg := telemetry.LoadGeneratorConfigFromEnv()

	publisher, err := rabbitmq.NewPublisher(amqpCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the broker.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator := telemetry.NewGenerator(genCfg)
	logger.Info().
		Str("sensor_id", genCfg.SensorID).
		Dur("interval", genCfg.PublishInterval).
		Str("exchange", amqpCfg.Exchange).
		Str("routing_key", amqpCfg.RoutingKey).
		Msg("Simulator started.")

	ticker := time.NewTicker(genCfg.PublishInterval)
	defer ticker.Stop()

	for {
		reading := generator.Next()
		payload, err := json.Marshal(reading)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to serialize reading.")
		} else if err := publisher.Publish(ctx, amqpCfg.RoutingKey, payload); err != nil {
			logger.Error().Err(err).Msg("Failed to publish reading.")
		} else {
			logger.Info().
				Str("sensor_id", reading.SensorID).
				Float64("temperature", reading.Temperature).
				Float64("humidity", reading.Humidity).
				Msg("Reading published.")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutdown signal received, stopping simulator.")
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("Error closing publisher.")
			}
			return
		case <-ticker.C:
		}
	}
}
