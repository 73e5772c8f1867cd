// Package observe provides application-wide observability primitives for
// the gateway: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all gateway metrics.
const meterName = "github.com/budecosystem/waav-gateway"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// StreamExecutionDuration tracks one full graph walk's latency, from
	// [pkg/executor.Executor.Execute]'s entry node through its exit.
	StreamExecutionDuration metric.Float64Histogram

	// NodeExecutionDuration tracks one node's latency within a graph walk.
	// Use with attribute.String("node_id", ...), attribute.String("node_type", ...).
	NodeExecutionDuration metric.Float64Histogram

	// EndpointCallDuration tracks one outbound endpoint node call's
	// latency (http/grpc/websocket/ipc/livekit). Use with
	// attribute.String("pipeline", ...), attribute.String("node_id", ...),
	// attribute.String("node_type", ...).
	EndpointCallDuration metric.Float64Histogram

	// --- Counters ---

	// ExecutionOutcomes counts completed graph walks by outcome. Use with
	// attribute.String("pipeline", ...), attribute.String("outcome", ...)
	// where outcome is one of success|failure|cancelled|timeout.
	ExecutionOutcomes metric.Int64Counter

	// PluginCalls counts registry plugin invocations. Use with
	// attribute.String("plugin_id", ...), attribute.String("capability", ...),
	// attribute.String("status", ...)
	PluginCalls metric.Int64Counter

	// --- Error counters ---

	// NodeErrors counts node execution failures. Use with
	// attribute.String("node_id", ...), attribute.String("node_type", ...)
	NodeErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveStreams tracks the number of concurrently executing streams
	// across all compiled pipelines.
	ActiveStreams metric.Int64UpDownCounter

	// RegisteredPlugins tracks the number of plugins currently registered
	// in the registry, across all capabilities.
	RegisteredPlugins metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for the
// sub-100ms-to-multi-second range typical of a voice pipeline node call.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.StreamExecutionDuration, err = m.Float64Histogram("waav.stream.execution.duration",
		metric.WithDescription("Latency of one full DAG execution, entry node to exit."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NodeExecutionDuration, err = m.Float64Histogram("waav.node.execution.duration",
		metric.WithDescription("Latency of one node's Execute call within a DAG walk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EndpointCallDuration, err = m.Float64Histogram("waav.endpoint.call.duration",
		metric.WithDescription("Latency of one outbound endpoint node call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ExecutionOutcomes, err = m.Int64Counter("waav.stream.executions",
		metric.WithDescription("Total completed DAG executions by pipeline and outcome."),
	); err != nil {
		return nil, err
	}
	if met.PluginCalls, err = m.Int64Counter("waav.plugin.calls",
		metric.WithDescription("Total registry plugin invocations by plugin id, capability, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.NodeErrors, err = m.Int64Counter("waav.node.errors",
		metric.WithDescription("Total node execution failures by node id and type."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("waav.active_streams",
		metric.WithDescription("Number of concurrently executing streams."),
	); err != nil {
		return nil, err
	}
	if met.RegisteredPlugins, err = m.Int64UpDownCounter("waav.registered_plugins",
		metric.WithDescription("Number of plugins currently registered, across all capabilities."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("waav.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordExecutionOutcome is a convenience method that records a completed
// DAG execution's outcome counter increment with the standard attribute set.
func (m *Metrics) RecordExecutionOutcome(ctx context.Context, pipeline, outcome string) {
	m.ExecutionOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("pipeline", pipeline),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordPluginCall is a convenience method that records a plugin invocation
// counter increment with the standard attribute set.
func (m *Metrics) RecordPluginCall(ctx context.Context, pluginID, capability, status string) {
	m.PluginCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("plugin_id", pluginID),
			attribute.String("capability", capability),
			attribute.String("status", status),
		),
	)
}

// RecordNodeError is a convenience method that records a node error counter
// increment.
func (m *Metrics) RecordNodeError(ctx context.Context, nodeID, nodeType string) {
	m.NodeErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("node_id", nodeID),
			attribute.String("node_type", nodeType),
		),
	)
}
