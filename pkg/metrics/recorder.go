package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

// Metric names exported to the collector.
const (
	MetricReceived        = "consumer_messages_received_total"
	MetricProcessed       = "consumer_messages_processed_total"
	MetricFailed          = "consumer_messages_failed_total"
	MetricLastTemperature = "consumer_last_temperature_celsius"
	MetricLastHumidity    = "consumer_last_humidity_percent"
)

// LabelSensor is the label key that partitions every metric by sensor. It is
// also used as the grouping key when pushing to the collector.
const LabelSensor = "sensorId"

// Recorder owns the consumer's metric families on a private registry and
// applies classification outcomes to them. Keeping the registry private means
// a push to the collector carries exactly these families and nothing else.
type Recorder struct {
	registry *prometheus.Registry

	received        *prometheus.CounterVec
	processed       *prometheus.CounterVec
	failed          *prometheus.CounterVec
	lastTemperature *prometheus.GaugeVec
	lastHumidity    *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all metric families registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReceived,
				Help: "Total number of messages received from the broker, by sensor",
			},
			[]string{LabelSensor},
		),
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricProcessed,
				Help: "Total number of messages that validated and were acknowledged, by sensor",
			},
			[]string{LabelSensor},
		),
		failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFailed,
				Help: "Total number of messages that failed validation and were rejected, by sensor",
			},
			[]string{LabelSensor},
		),
		lastTemperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricLastTemperature,
				Help: "Most recent temperature reported by a sensor, in degrees Celsius",
			},
			[]string{LabelSensor},
		),
		lastHumidity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricLastHumidity,
				Help: "Most recent relative humidity reported by a sensor, in percent",
			},
			[]string{LabelSensor},
		),
	}

	r.registry.MustRegister(r.received, r.processed, r.failed, r.lastTemperature, r.lastHumidity)
	return r
}

// Record applies one classification outcome to the metric state and returns
// the sensor label it was attributed to. Every outcome counts as received;
// valid outcomes update the gauges and the processed counter, invalid ones
// the failed counter.
func (r *Recorder) Record(outcome telemetry.Outcome) string {
	label := outcome.Label
	if label == "" {
		label = telemetry.UnknownSensor
	}

	r.received.WithLabelValues(label).Inc()

	if outcome.Valid() {
		r.lastTemperature.WithLabelValues(label).Set(outcome.Reading.Temperature)
		r.lastHumidity.WithLabelValues(label).Set(outcome.Reading.Humidity)
		r.processed.WithLabelValues(label).Inc()
	} else {
		r.failed.WithLabelValues(label).Inc()
	}

	return label
}

// Gatherer exposes the underlying registry so exporters can snapshot the
// full metric state.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
