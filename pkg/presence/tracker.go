package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

// ReadingTracker adapts a Store to the pipeline's Tracker interface. Store
// failures are logged and absorbed: presence upkeep must never disturb
// message processing.
type ReadingTracker struct {
	store  Store
	logger zerolog.Logger
}

// NewReadingTracker creates a ReadingTracker on top of the given store.
func NewReadingTracker(store Store, logger zerolog.Logger) *ReadingTracker {
	return &ReadingTracker{
		store:  store,
		logger: logger.With().Str("component", "ReadingTracker").Logger(),
	}
}

// Observe records that a sensor has just reported.
func (t *ReadingTracker) Observe(ctx context.Context, reading telemetry.Reading) {
	obs := Observation{
		SensorID:    reading.SensorID,
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		SeenAt:      time.Now().UTC(),
	}
	if err := t.store.Mark(ctx, obs); err != nil {
		t.logger.Warn().Err(err).Str("sensor_id", reading.SensorID).Msg("Failed to record sensor presence.")
	}
}
