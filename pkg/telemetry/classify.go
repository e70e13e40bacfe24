package telemetry

import "encoding/json"

// UnknownSensor is the label applied when a payload's sensor identity cannot
// be recovered, so that failures remain attributable in the metrics.
const UnknownSensor = "unknown"

// FailureReason classifies why a payload was rejected.
type FailureReason string

const (
	// FailureParse marks payloads that could not be decoded as JSON at all.
	FailureParse FailureReason = "parse_error"
	// FailureSchema marks payloads that decoded but are missing required
	// fields or carry them with the wrong type.
	FailureSchema FailureReason = "schema_error"
)

// Outcome is the verdict on one raw payload: either a decoded Reading, or a
// failure reason plus the best sensor label that could be recovered from the
// broken payload.
type Outcome struct {
	// Reading is the decoded payload. It is nil for invalid payloads.
	Reading *Reading
	// Reason states why the payload was rejected. Empty for valid payloads.
	Reason FailureReason
	// Label is the sensor identity the outcome is attributed to. For invalid
	// payloads this is the recovered sensorId when present, otherwise "unknown".
	Label string
}

// Valid reports whether the payload decoded into a usable Reading.
func (o Outcome) Valid() bool {
	return o.Reading != nil
}

// Classify decodes and validates one raw payload.
//
// A payload that is not a JSON object is a parse failure. A decoded payload
// missing a non-empty sensorId, or whose temperature or humidity is not
// numeric, is a schema failure; its sensorId is still recovered as the label
// when present so the failure is charged to the right sensor. Classify is
// total: any unexpected payload shape degrades to a schema failure under the
// unknown label rather than panicking.
func Classify(payload []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Reason: FailureSchema, Label: UnknownSensor}
		}
	}()

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Outcome{Reason: FailureParse, Label: UnknownSensor}
	}

	label := UnknownSensor
	id, _ := fields["sensorId"].(string)
	if id != "" {
		label = id
	}

	temperature, tempOK := fields["temperature"].(float64)
	humidity, humOK := fields["humidity"].(float64)
	if id == "" || !tempOK || !humOK {
		return Outcome{Reason: FailureSchema, Label: label}
	}

	timestamp, _ := fields["timestamp"].(string)
	return Outcome{
		Reading: &Reading{
			Temperature: temperature,
			Humidity:    humidity,
			Timestamp:   timestamp,
			SensorID:    id,
		},
		Label: id,
	}
}
