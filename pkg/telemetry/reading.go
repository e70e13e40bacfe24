package telemetry

// Reading is the wire payload a sensor publishes: one temperature and
// humidity sample together with the identity of the sensor that produced it.
// It is serialized as a flat JSON object and is immutable once published.
type Reading struct {
	// Temperature is the sampled temperature in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Humidity is the sampled relative humidity in percent.
	Humidity float64 `json:"humidity"`

	// Timestamp is the production time, formatted as RFC 3339 in UTC.
	Timestamp string `json:"timestamp"`

	// SensorID identifies the emitting sensor. It becomes the metric label
	// under which the reading is recorded downstream.
	SensorID string `json:"sensorId"`
}
