package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Env constants for the collector connection.
const (
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvPushJobName    = "PUSH_JOB_NAME"
	EnvPushTimeout    = "PUSH_TIMEOUT"
)

// PushConfig holds the collector endpoint settings.
type PushConfig struct {
	// URL is the base address of the push gateway.
	URL string
	// JobName is the fixed job every push is filed under.
	JobName string
	// Timeout bounds a single push so an unreachable collector cannot stall
	// shutdown or pile up export goroutines.
	Timeout time.Duration
}

// LoadPushConfigFromEnv loads the collector configuration from environment
// variables with local-development defaults.
func LoadPushConfigFromEnv() *PushConfig {
	cfg := &PushConfig{
		URL:     "http://localhost:9091",
		JobName: "telemetry-consumer",
		Timeout: 5 * time.Second,
	}
	if v := os.Getenv(EnvPushgatewayURL); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv(EnvPushJobName); v != "" {
		cfg.JobName = v
	}
	if v := os.Getenv(EnvPushTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			cfg.Timeout = d
		} else {
			log.Printf("metrics: invalid %s %q, using default", EnvPushTimeout, v)
		}
	}
	return cfg
}

// Pusher exports a metric registry to a Prometheus push gateway. The consumer
// issues one push per settled message, grouped by the sensor label so the
// gateway keeps a separate metric group per sensor.
type Pusher struct {
	cfg      *PushConfig
	gatherer prometheus.Gatherer
	client   *http.Client
	logger   zerolog.Logger
}

// NewPusher creates a Pusher that snapshots the given gatherer on every push.
func NewPusher(cfg *PushConfig, gatherer prometheus.Gatherer, logger zerolog.Logger) *Pusher {
	return &Pusher{
		cfg:      cfg,
		gatherer: gatherer,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With().Str("component", "MetricsPusher").Logger(),
	}
}

// Flush pushes the sensor's current metric state under the given grouping.
// The pushed series carry no sensorId label of their own: the grouping key
// holds the identity, and the push library rejects a snapshot whose series
// repeat a grouping label. Push failures are logged and absorbed: the
// pipeline never fails a message because the collector was unreachable.
func (p *Pusher) Flush(ctx context.Context, label string) {
	pusher := push.New(p.cfg.URL, p.cfg.JobName).
		Gatherer(sensorSnapshot{gatherer: p.gatherer, label: label}).
		Grouping(LabelSensor, label).
		Client(p.client)

	if err := pusher.PushContext(ctx); err != nil {
		p.logger.Warn().Err(err).Str("sensor_id", label).Msg("Failed to push metrics to collector.")
	}
}

// FlushFinal pushes the full metric state once, without a sensor grouping.
// It is the best-effort last export during shutdown.
func (p *Pusher) FlushFinal(ctx context.Context) {
	pusher := push.New(p.cfg.URL, p.cfg.JobName).
		Gatherer(p.gatherer).
		Client(p.client)

	if err := pusher.PushContext(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("Final metrics push failed.")
	}
}

// sensorSnapshot narrows a registry snapshot to one sensor's series and drops
// the sensorId label pair from each, since the grouping key re-attaches the
// identity at the gateway. Series of other sensors stay in their own groups.
type sensorSnapshot struct {
	gatherer prometheus.Gatherer
	label    string
}

// Gather implements prometheus.Gatherer. Mutating the returned families is
// safe: the underlying registry builds a fresh snapshot on every call.
func (s sensorSnapshot) Gather() ([]*dto.MetricFamily, error) {
	families, err := s.gatherer.Gather()
	if err != nil {
		return nil, err
	}

	out := make([]*dto.MetricFamily, 0, len(families))
	for _, family := range families {
		var kept []*dto.Metric
		for _, metric := range family.GetMetric() {
			match := false
			trimmed := make([]*dto.LabelPair, 0, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == LabelSensor {
					match = pair.GetValue() == s.label
					continue
				}
				trimmed = append(trimmed, pair)
			}
			if !match {
				continue
			}
			metric.Label = trimmed
			kept = append(kept, metric)
		}
		if len(kept) > 0 {
			family.Metric = kept
			out = append(out, family)
		}
	}
	return out, nil
}
