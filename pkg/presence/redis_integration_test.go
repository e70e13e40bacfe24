//go:build integration

package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/presence"
)

// TestRedisStore_Integration needs a running Redis reachable at REDIS_ADDR
// (default localhost:6379).
func TestRedisStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	cfg := presence.LoadRedisConfigFromEnv()
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	cfg.PresenceTTL = 2 * time.Second

	store, err := presence.NewRedisStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sensorID := "integration-" + uuid.NewString()
	obs := presence.Observation{
		SensorID:    sensorID,
		Temperature: 22.5,
		Humidity:    45.5,
		SeenAt:      time.Now().UTC(),
	}

	// Act
	require.NoError(t, store.Mark(ctx, obs))

	// Assert: the sensor shows up in the listing.
	observations, err := store.List(ctx)
	require.NoError(t, err)
	found := false
	for _, o := range observations {
		if o.SensorID == sensorID {
			found = true
			assert.Equal(t, 22.5, o.Temperature)
		}
	}
	assert.True(t, found, "marked sensor should be listed")

	// Assert: the entry expires server-side.
	require.Eventually(t, func() bool {
		observations, err := store.List(ctx)
		if err != nil {
			return false
		}
		for _, o := range observations {
			if o.SensorID == sensorID {
				return false
			}
		}
		return true
	}, 10*time.Second, 250*time.Millisecond, "presence entry should expire after the TTL")
}
