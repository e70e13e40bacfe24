// The mqtt-bridge subscribes to an MQTT topic of device readings and
// republishes each payload verbatim onto the telemetry exchange.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/mqttbridge"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/rabbitmq"
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
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "mqtt-bridge").Logger()
}

func main() {
	logger := newLogger()

	mqttCfg := mqttbridge.LoadConfigFromEnv()
	if mqttCfg.BrokerURL == "" {
		logger.Fatal().Str("env", mqttbridge.EnvBrokerURL).Msg("MQTT broker URL must be set.")
	}
	amqpCfg := rabbitmq.LoadConfigFromEnv()

	publisher, err := rabbitmq.NewPublisher(amqpCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the AMQP broker.")
	}

	bridge, err := mqttbridge.NewBridge(mqttCfg, publisher, amqpCfg.RoutingKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create bridge.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bridge.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start bridge.")
	}
	logger.Info().Str("topic", mqttCfg.Topic).Str("routing_key", amqpCfg.RoutingKey).Msg("Bridge started.")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bridge.Stop(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("Error stopping bridge.")
	}
	<-bridge.Done()

	if err := publisher.Close(); err != nil {
		logger.Warn().Err(err).Msg("Error closing publisher.")
	}
	logger.Info().Msg("Bridge stopped.")
}
