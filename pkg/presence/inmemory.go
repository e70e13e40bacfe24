package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe, process-local implementation of Store.
// It is primarily intended for local development and testing.
type InMemoryStore struct {
	ttl time.Duration

	mu           sync.Mutex
	observations map[string]Observation
}

// NewInMemoryStore creates a new in-memory presence store. A non-positive
// ttl falls back to DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		ttl:          ttl,
		observations: make(map[string]Observation),
	}
}

// Mark records the latest observation for a sensor.
func (s *InMemoryStore) Mark(_ context.Context, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations[obs.SensorID] = obs
	return nil
}

// List returns the sensors seen within the TTL, ordered by sensor id.
// Expired entries are removed as they are encountered.
func (s *InMemoryStore) List(_ context.Context) ([]Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	present := make([]Observation, 0, len(s.observations))
	for id, obs := range s.observations {
		if obs.SeenAt.Before(cutoff) {
			delete(s.observations, id)
			continue
		}
		present = append(present, obs)
	}
	sort.Slice(present, func(i, j int) bool {
		return present[i].SensorID < present[j].SensorID
	})
	return present, nil
}

// Close is a no-op for the in-memory implementation.
func (s *InMemoryStore) Close() error {
	return nil
}
