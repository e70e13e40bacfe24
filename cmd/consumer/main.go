// The consumer subscribes to the telemetry exchange, classifies each reading,
// settles it with the broker, and pushes per-sensor metrics to a Pushgateway.
// It also serves /healthz and /sensors on a small status port.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/metrics"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/pipeline"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/presence"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/rabbitmq"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/statusserver"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if info, err := os.Stderr.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "consumer").Logger()
}

func main() {
	logger := newLogger()
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("Consumer failed to start.")
		os.Exit(1)
	}
}

func run(logger zerolog.Logger) error {
	amqpCfg := rabbitmq.LoadConfigFromEnv()
	pipeCfg := pipeline.LoadConfigFromEnv()
	pushCfg := metrics.LoadPushConfigFromEnv()
	redisCfg := presence.LoadRedisConfigFromEnv()
	statusPort := statusserver.LoadPortFromEnv()

	store, err := newPresenceStore(redisCfg, logger)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	pusher := metrics.NewPusher(pushCfg, recorder.Gatherer(), logger)
	tracker := presence.NewReadingTracker(store, logger)

	consumer, err := rabbitmq.NewConsumer(amqpCfg, logger)
	if err != nil {
		return err
	}

	service, err := pipeline.NewService(pipeCfg, consumer, telemetry.Classify, recorder, pusher, tracker, logger)
	if err != nil {
		return err
	}

	status := statusserver.New(statusPort, store, logger)
	if err := status.Start(); err != nil {
		return err
	}

	// The pipeline runs on a background context so that in-flight settlements
	// and metric flushes are never cancelled by the shutdown signal; Stop
	// drains them instead.
	if err := service.Start(context.Background()); err != nil {
		return err
	}
	logger.Info().Str("status_port", status.GetHTTPPort()).Msg("Consumer started.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := service.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Pipeline did not stop cleanly.")
	}
	pusher.FlushFinal(shutdownCtx)
	if err := consumer.Close(); err != nil {
		logger.Warn().Err(err).Msg("Error closing broker connection.")
	}
	if err := status.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Error shutting down status server.")
	}
	if err := store.Close(); err != nil {
		logger.Warn().Err(err).Msg("Error closing presence store.")
	}

	logger.Info().Msg("Consumer stopped.")
	return nil
}

// newPresenceStore selects the Redis-backed store when REDIS_ADDR is set and
// falls back to the in-memory store otherwise.
func newPresenceStore(cfg *presence.RedisConfig, logger zerolog.Logger) (presence.Store, error) {
	if cfg.Addr == "" {
		return presence.NewInMemoryStore(cfg.PresenceTTL), nil
	}
	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return presence.NewRedisStore(connectCtx, cfg, logger)
}
