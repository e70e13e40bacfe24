package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/metrics"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

func validOutcome(sensorID string, temperature, humidity float64) telemetry.Outcome {
	return telemetry.Outcome{
		Reading: &telemetry.Reading{
			Temperature: temperature,
			Humidity:    humidity,
			SensorID:    sensorID,
		},
		Label: sensorID,
	}
}

func invalidOutcome(reason telemetry.FailureReason, label string) telemetry.Outcome {
	return telemetry.Outcome{Reason: reason, Label: label}
}

func TestRecorder_ValidOutcome(t *testing.T) {
	// Arrange
	recorder := metrics.NewRecorder()

	// Act
	label := recorder.Record(validOutcome("dht22-01", 22.5, 45.5))

	// Assert
	assert.Equal(t, "dht22-01", label)

	expected := `
# HELP consumer_last_humidity_percent Most recent relative humidity reported by a sensor, in percent
# TYPE consumer_last_humidity_percent gauge
consumer_last_humidity_percent{sensorId="dht22-01"} 45.5
# HELP consumer_last_temperature_celsius Most recent temperature reported by a sensor, in degrees Celsius
# TYPE consumer_last_temperature_celsius gauge
consumer_last_temperature_celsius{sensorId="dht22-01"} 22.5
# HELP consumer_messages_processed_total Total number of messages that validated and were acknowledged, by sensor
# TYPE consumer_messages_processed_total counter
consumer_messages_processed_total{sensorId="dht22-01"} 1
# HELP consumer_messages_received_total Total number of messages received from the broker, by sensor
# TYPE consumer_messages_received_total counter
consumer_messages_received_total{sensorId="dht22-01"} 1
`
	err := testutil.GatherAndCompare(recorder.Gatherer(), strings.NewReader(expected))
	require.NoError(t, err)
}

func TestRecorder_ParseFailureCountsUnderUnknown(t *testing.T) {
	// Arrange
	recorder := metrics.NewRecorder()

	// Act
	label := recorder.Record(invalidOutcome(telemetry.FailureParse, telemetry.UnknownSensor))

	// Assert
	assert.Equal(t, telemetry.UnknownSensor, label)

	expected := `
# HELP consumer_messages_failed_total Total number of messages that failed validation and were rejected, by sensor
# TYPE consumer_messages_failed_total counter
consumer_messages_failed_total{sensorId="unknown"} 1
# HELP consumer_messages_received_total Total number of messages received from the broker, by sensor
# TYPE consumer_messages_received_total counter
consumer_messages_received_total{sensorId="unknown"} 1
`
	err := testutil.GatherAndCompare(recorder.Gatherer(), strings.NewReader(expected))
	require.NoError(t, err)
}

func TestRecorder_SchemaFailureKeepsRecoveredLabel(t *testing.T) {
	// Arrange
	recorder := metrics.NewRecorder()

	// Act
	label := recorder.Record(invalidOutcome(telemetry.FailureSchema, "greenhouse-07"))

	// Assert
	assert.Equal(t, "greenhouse-07", label)

	expected := `
# HELP consumer_messages_failed_total Total number of messages that failed validation and were rejected, by sensor
# TYPE consumer_messages_failed_total counter
consumer_messages_failed_total{sensorId="greenhouse-07"} 1
`
	err := testutil.GatherAndCompare(recorder.Gatherer(), strings.NewReader(expected), metrics.MetricFailed)
	require.NoError(t, err)
}

func TestRecorder_GaugesTrackLatestReading(t *testing.T) {
	// Arrange
	recorder := metrics.NewRecorder()

	// Act
	recorder.Record(validOutcome("dht22-01", 21, 40))
	recorder.Record(validOutcome("dht22-01", 23.4, 51.2))

	// Assert
	expected := `
# HELP consumer_last_humidity_percent Most recent relative humidity reported by a sensor, in percent
# TYPE consumer_last_humidity_percent gauge
consumer_last_humidity_percent{sensorId="dht22-01"} 51.2
# HELP consumer_last_temperature_celsius Most recent temperature reported by a sensor, in degrees Celsius
# TYPE consumer_last_temperature_celsius gauge
consumer_last_temperature_celsius{sensorId="dht22-01"} 23.4
# HELP consumer_messages_processed_total Total number of messages that validated and were acknowledged, by sensor
# TYPE consumer_messages_processed_total counter
consumer_messages_processed_total{sensorId="dht22-01"} 2
# HELP consumer_messages_received_total Total number of messages received from the broker, by sensor
# TYPE consumer_messages_received_total counter
consumer_messages_received_total{sensorId="dht22-01"} 2
`
	err := testutil.GatherAndCompare(recorder.Gatherer(), strings.NewReader(expected))
	require.NoError(t, err)
}

func TestRecorder_PartitionsBySensor(t *testing.T) {
	// Arrange
	recorder := metrics.NewRecorder()

	// Act
	recorder.Record(validOutcome("dht22-01", 22.5, 45.5))
	recorder.Record(validOutcome("greenhouse-07", 30, 80))
	recorder.Record(invalidOutcome(telemetry.FailureParse, telemetry.UnknownSensor))

	// Assert
	expected := `
# HELP consumer_messages_received_total Total number of messages received from the broker, by sensor
# TYPE consumer_messages_received_total counter
consumer_messages_received_total{sensorId="dht22-01"} 1
consumer_messages_received_total{sensorId="greenhouse-07"} 1
consumer_messages_received_total{sensorId="unknown"} 1
`
	err := testutil.GatherAndCompare(recorder.Gatherer(), strings.NewReader(expected), metrics.MetricReceived)
	require.NoError(t, err)
}

func TestRecorder_EmptyLabelFallsBackToUnknown(t *testing.T) {
	recorder := metrics.NewRecorder()

	label := recorder.Record(telemetry.Outcome{Reason: telemetry.FailureSchema})

	assert.Equal(t, telemetry.UnknownSensor, label)
}
