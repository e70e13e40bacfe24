// Package presence tracks which sensors have reported recently, so operators
// can tell a quiet sensor from a dead one.
package presence

import (
	"context"
	"time"
)

// DefaultTTL is how long a sensor counts as present after its last reading.
const DefaultTTL = 5 * time.Minute

// Observation is the last reported state of one sensor.
type Observation struct {
	SensorID    string    `json:"sensorId"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	SeenAt      time.Time `json:"seenAt"`
}

// Store records and lists sensor observations. Entries age out after the
// store's TTL so an absent sensor disappears from listings on its own.
type Store interface {
	// Mark records the latest observation for a sensor.
	Mark(ctx context.Context, obs Observation) error
	// List returns the currently present sensors, ordered by sensor id.
	List(ctx context.Context) ([]Observation, error)
	// Close releases any underlying resources.
	Close() error
}
