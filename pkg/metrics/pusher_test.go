package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/metrics"
	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/telemetry"
)

type gatewayCall struct {
	method string
	path   string
	body   string
}

// fakeGateway records every push it receives so tests can assert on the
// grouping path and payload.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []gatewayCall
	status int
}

func newFakeGateway(t *testing.T, status int) (*fakeGateway, *httptest.Server) {
	t.Helper()
	gateway := &fakeGateway{status: status}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gateway.mu.Lock()
		gateway.calls = append(gateway.calls, gatewayCall{method: r.Method, path: r.URL.Path, body: string(body)})
		gateway.mu.Unlock()
		w.WriteHeader(gateway.status)
	}))
	t.Cleanup(server.Close)
	return gateway, server
}

func (g *fakeGateway) Calls() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	callsCopy := make([]gatewayCall, len(g.calls))
	copy(callsCopy, g.calls)
	return callsCopy
}

func TestPusher_FlushGroupsBySensor(t *testing.T) {
	// Arrange
	gateway, server := newFakeGateway(t, http.StatusOK)

	recorder := metrics.NewRecorder()
	recorder.Record(validOutcome("dht22-01", 22.5, 45.5))

	cfg := &metrics.PushConfig{URL: server.URL, JobName: "telemetry-consumer", Timeout: 2 * time.Second}
	pusher := metrics.NewPusher(cfg, recorder.Gatherer(), zerolog.Nop())

	// Act
	pusher.Flush(context.Background(), "dht22-01")

	// Assert
	calls := gateway.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPut, calls[0].method)
	assert.Equal(t, "/metrics/job/telemetry-consumer/sensorId/dht22-01", calls[0].path)
	assert.Contains(t, calls[0].body, metrics.MetricReceived)
	assert.Contains(t, calls[0].body, metrics.MetricLastHumidity)
	assert.NotContains(t, calls[0].body, metrics.LabelSensor,
		"the grouping key carries the sensor identity, the pushed series must not repeat it")
}

func TestPusher_FlushIsScopedToSensor(t *testing.T) {
	// Arrange
	gateway, server := newFakeGateway(t, http.StatusOK)

	recorder := metrics.NewRecorder()
	recorder.Record(validOutcome("dht22-01", 22.5, 45.5))
	recorder.Record(validOutcome("greenhouse-07", 30, 80))
	recorder.Record(invalidOutcome(telemetry.FailureParse, telemetry.UnknownSensor))

	cfg := &metrics.PushConfig{URL: server.URL, JobName: "telemetry-consumer", Timeout: 2 * time.Second}
	pusher := metrics.NewPusher(cfg, recorder.Gatherer(), zerolog.Nop())

	// Act
	pusher.Flush(context.Background(), "dht22-01")

	// Assert: only the flushed sensor's series travel to its gateway group.
	calls := gateway.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/metrics/job/telemetry-consumer/sensorId/dht22-01", calls[0].path)
	assert.Contains(t, calls[0].body, metrics.MetricProcessed)
	assert.NotContains(t, calls[0].body, "greenhouse-07")
	assert.NotContains(t, calls[0].body, telemetry.UnknownSensor)
	assert.NotContains(t, calls[0].body, metrics.MetricFailed,
		"no failure was recorded for this sensor, the family must be absent")
}

func TestPusher_FlushFinalOmitsGrouping(t *testing.T) {
	// Arrange
	gateway, server := newFakeGateway(t, http.StatusOK)

	recorder := metrics.NewRecorder()
	recorder.Record(validOutcome("dht22-01", 22.5, 45.5))

	cfg := &metrics.PushConfig{URL: server.URL, JobName: "telemetry-consumer", Timeout: 2 * time.Second}
	pusher := metrics.NewPusher(cfg, recorder.Gatherer(), zerolog.Nop())

	// Act
	pusher.FlushFinal(context.Background())

	// Assert: the final push is ungrouped, so the series keep their labels.
	calls := gateway.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/metrics/job/telemetry-consumer", calls[0].path)
	assert.Contains(t, calls[0].body, metrics.LabelSensor)
}

func TestPusher_CollectorErrorIsSwallowed(t *testing.T) {
	// Arrange
	gateway, server := newFakeGateway(t, http.StatusInternalServerError)

	recorder := metrics.NewRecorder()
	recorder.Record(validOutcome("dht22-01", 22.5, 45.5))

	cfg := &metrics.PushConfig{URL: server.URL, JobName: "telemetry-consumer", Timeout: 2 * time.Second}
	pusher := metrics.NewPusher(cfg, recorder.Gatherer(), zerolog.Nop())

	// Act & Assert: a failing collector must not panic or propagate.
	pusher.Flush(context.Background(), "dht22-01")

	require.Len(t, gateway.Calls(), 1)
}

func TestPusher_UnreachableCollectorIsSwallowed(t *testing.T) {
	// Arrange
	recorder := metrics.NewRecorder()
	cfg := &metrics.PushConfig{URL: "http://127.0.0.1:1", JobName: "telemetry-consumer", Timeout: 500 * time.Millisecond}
	pusher := metrics.NewPusher(cfg, recorder.Gatherer(), zerolog.Nop())

	// Act & Assert: connection refused must not panic or propagate.
	pusher.Flush(context.Background(), "dht22-01")
	pusher.FlushFinal(context.Background())
}

func TestLoadPushConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := metrics.LoadPushConfigFromEnv()

		assert.Equal(t, "http://localhost:9091", cfg.URL)
		assert.Equal(t, "telemetry-consumer", cfg.JobName)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("overrides from environment", func(t *testing.T) {
		t.Setenv(metrics.EnvPushgatewayURL, "http://pushgateway:9091")
		t.Setenv(metrics.EnvPushJobName, "edge-consumer")
		t.Setenv(metrics.EnvPushTimeout, "10s")

		cfg := metrics.LoadPushConfigFromEnv()

		assert.Equal(t, "http://pushgateway:9091", cfg.URL)
		assert.Equal(t, "edge-consumer", cfg.JobName)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
	})
}
