package presence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/presence"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

// failingStore always errors, to verify the tracker absorbs store failures.
type failingStore struct{}

func (f *failingStore) Mark(_ context.Context, _ presence.Observation) error {
	return errors.New("store unavailable")
}

func (f *failingStore) List(_ context.Context) ([]presence.Observation, error) {
	return nil, errors.New("store unavailable")
}

func (f *failingStore) Close() error { return nil }

func TestReadingTracker_ObserveMarksStore(t *testing.T) {
	// Arrange
	store := presence.NewInMemoryStore(time.Minute)
	tracker := presence.NewReadingTracker(store, zerolog.Nop())

	reading := telemetry.Reading{
		Temperature: 22.5,
		Humidity:    45.5,
		Timestamp:   "2025-04-01T10:00:00Z",
		SensorID:    "dht22-01",
	}

	// Act
	tracker.Observe(context.Background(), reading)

	// Assert
	observations, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, "dht22-01", observations[0].SensorID)
	assert.Equal(t, 22.5, observations[0].Temperature)
	assert.Equal(t, 45.5, observations[0].Humidity)
	assert.WithinDuration(t, time.Now().UTC(), observations[0].SeenAt, 5*time.Second)
}

func TestReadingTracker_StoreFailureIsAbsorbed(t *testing.T) {
	tracker := presence.NewReadingTracker(&failingStore{}, zerolog.Nop())

	// Must not panic or propagate.
	tracker.Observe(context.Background(), telemetry.Reading{SensorID: "dht22-01"})
}
