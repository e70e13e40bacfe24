package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

// Classifier turns a raw payload into a validation outcome.
type Classifier func(payload []byte) telemetry.Outcome

// Recorder applies a classified outcome to the in-process metric state and
// returns the sensor label the outcome was attributed to.
type Recorder interface {
	Record(outcome telemetry.Outcome) string
}

// Flusher exports the current metric state to the external collector for one
// sensor label. Implementations log and absorb export failures; a flush must
// never influence how a message is settled with the broker.
type Flusher interface {
	Flush(ctx context.Context, label string)
}

// Tracker observes successfully decoded readings, e.g. to maintain sensor
// presence state. Implementations must not fail the pipeline.
type Tracker interface {
	Observe(ctx context.Context, reading telemetry.Reading)
}

// EnvWorkers configures the number of concurrent pipeline workers.
const EnvWorkers = "CONSUMER_WORKERS"

// Config holds configuration for the pipeline Service.
type Config struct {
	NumWorkers int
}

// LoadConfigFromEnv loads the pipeline configuration from environment
// variables. The default is a single worker, which preserves ordered
// processing of a sensor stream.
func LoadConfigFromEnv() Config {
	cfg := Config{NumWorkers: 1}
	if w := os.Getenv(EnvWorkers); w != "" {
		n, err := strconv.Atoi(w)
		if err == nil && n > 0 {
			cfg.NumWorkers = n
		} else {
			log.Printf("pipeline: invalid %s %q, using default", EnvWorkers, w)
		}
	}
	return cfg
}

// Service orchestrates the consumer pipeline. Each delivery runs through a
// fixed sequence: classify the payload, record the outcome in the metric
// state, settle the message with the broker, then export the metrics to the
// collector in the background.
type Service struct {
	numWorkers int
	source     Source
	classify   Classifier
	recorder   Recorder
	flusher    Flusher
	tracker    Tracker
	logger     zerolog.Logger
	wg         sync.WaitGroup
	flushWg    sync.WaitGroup
}

// NewService creates a pipeline Service. The tracker is optional and may be
// nil when no presence tracking is wanted.
func NewService(
	cfg Config,
	source Source,
	classify Classifier,
	recorder Recorder,
	flusher Flusher,
	tracker Tracker,
	logger zerolog.Logger,
) (*Service, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if classify == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if recorder == nil {
		return nil, fmt.Errorf("recorder cannot be nil")
	}
	if flusher == nil {
		return nil, fmt.Errorf("flusher cannot be nil")
	}

	return &Service{
		numWorkers: cfg.NumWorkers,
		source:     source,
		classify:   classify,
		recorder:   recorder,
		flusher:    flusher,
		tracker:    tracker,
		logger:     logger.With().Str("service", "TelemetryPipeline").Logger(),
	}, nil
}

// Start begins the service operation. It starts the source and then spawns a
// pool of workers to process deliveries concurrently.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting telemetry pipeline...")

	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start delivery source: %w", err)
	}

	s.wg.Add(s.numWorkers)
	for i := 0; i < s.numWorkers; i++ {
		go s.worker(ctx, i)
	}

	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Telemetry pipeline started.")
	return nil
}

// Stop gracefully shuts down the pipeline in the correct order: stop intake
// first, then wait for workers to settle every delivery that already entered,
// then wait for the background metric exports those deliveries triggered.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping telemetry pipeline...")

	if err := s.source.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during source stop, continuing shutdown.")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.flushWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Telemetry pipeline stopped.")
		return nil
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for in-flight deliveries to settle.")
		return ctx.Err()
	}
}

// worker is the main processing loop for each concurrent worker. Workers
// drain the source channel to close so that every delivery that entered the
// pipeline is settled, even during shutdown.
func (s *Service) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	s.logger.Debug().Int("worker_id", workerID).Msg("Pipeline worker started.")
	for delivery := range s.source.Deliveries() {
		s.Handle(ctx, &delivery)
	}
	s.logger.Debug().Int("worker_id", workerID).Msg("Source channel closed, worker exiting.")
}

// Handle runs one delivery through the pipeline. Classification and metric
// recording happen before the delivery is settled; the collector export runs
// afterwards in the background so a slow or unreachable collector can never
// block settlement. A nil delivery is a spurious callback and produces no
// settlement and no metric effects.
func (s *Service) Handle(ctx context.Context, delivery *Delivery) {
	if delivery == nil {
		s.logger.Warn().Msg("Ignoring empty delivery.")
		return
	}
	s.logger.Debug().Str("routing_key", delivery.RoutingKey).Str("message_id", delivery.MessageID).Msg("Delivery received.")

	outcome := s.classify(delivery.Body)
	label := s.recorder.Record(outcome)

	if outcome.Valid() {
		if err := delivery.Ack(); err != nil {
			s.logger.Error().Err(err).Str("sensor_id", label).Msg("Failed to ack delivery.")
		}
		s.logger.Debug().
			Str("sensor_id", label).
			Float64("temperature", outcome.Reading.Temperature).
			Float64("humidity", outcome.Reading.Humidity).
			Msg("Reading processed.")
	} else {
		if err := delivery.Reject(); err != nil {
			s.logger.Error().Err(err).Str("sensor_id", label).Msg("Failed to reject delivery.")
		}
		s.logger.Warn().
			Str("sensor_id", label).
			Str("reason", string(outcome.Reason)).
			Msg("Reading rejected.")
	}

	s.flushWg.Add(1)
	go func() {
		defer s.flushWg.Done()
		if outcome.Valid() && s.tracker != nil {
			s.tracker.Observe(ctx, *outcome.Reading)
		}
		s.flusher.Flush(ctx, label)
	}()
}
