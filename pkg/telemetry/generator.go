package telemetry

import (
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Env constants for the simulated sensor.
const (
	EnvSensorID        = "SENSOR_ID"
	EnvPublishInterval = "PUBLISH_INTERVAL"
)

// GeneratorConfig describes a simulated sensor: its identity, how often it
// publishes, and the value ranges it draws samples from.
type GeneratorConfig struct {
	// SensorID is the identity stamped on every generated reading.
	SensorID string
	// PublishInterval is the cadence at which the simulator emits readings.
	PublishInterval time.Duration
	// TemperatureMin and TemperatureMax bound the generated temperature in Celsius.
	TemperatureMin float64
	TemperatureMax float64
	// HumidityMin and HumidityMax bound the generated relative humidity in percent.
	HumidityMin float64
	HumidityMax float64
}

// LoadGeneratorConfigFromEnv loads the simulator configuration from environment
// variables, falling back to defaults that model a DHT22 sensor in a living room.
func LoadGeneratorConfigFromEnv() *GeneratorConfig {
	cfg := &GeneratorConfig{
		SensorID:        "dht22-01",
		PublishInterval: 2 * time.Second,
		TemperatureMin:  18.0,
		TemperatureMax:  32.0,
		HumidityMin:     35.0,
		HumidityMax:     65.0,
	}
	if id := os.Getenv(EnvSensorID); id != "" {
		cfg.SensorID = id
	}
	if iv := os.Getenv(EnvPublishInterval); iv != "" {
		d, err := time.ParseDuration(iv)
		if err == nil && d > 0 {
			cfg.PublishInterval = d
		} else {
			log.Printf("telemetry: invalid %s %q, using default", EnvPublishInterval, iv)
		}
	}
	return cfg
}

// Generator produces successive readings for one simulated sensor.
type Generator struct {
	cfg *GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a Generator with its own randomness source.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Next returns a fresh reading drawn from the configured ranges, stamped with
// the current UTC time.
func (g *Generator) Next() Reading {
	return Reading{
		Temperature: g.sample(g.cfg.TemperatureMin, g.cfg.TemperatureMax),
		Humidity:    g.sample(g.cfg.HumidityMin, g.cfg.HumidityMax),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		SensorID:    g.cfg.SensorID,
	}
}

// sample draws uniformly from [min, max], rounded to one decimal place, the
// precision a DHT22 class sensor reports at.
func (g *Generator) sample(min, max float64) float64 {
	v := min + g.rng.Float64()*(max-min)
	return math.Round(v*10) / 10
}
