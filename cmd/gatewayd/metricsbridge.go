package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/budecosystem/waav-gateway/internal/observe"
)

// bridgeInterval is how often each pipeline's executor metrics snapshot is
// translated into OpenTelemetry instruments.
const bridgeInterval = 10 * time.Second

// runMetricsBridge periodically reads each pipeline's executor.Metrics
// snapshot and records it through m. pkg/executor keeps its own
// bucket-exact histogram (the buckets spec.md §4.7 names literally) rather
// than depending on OTel directly; this is the one place that translation
// happens, so the rest of the executor stays free of observability
// dependencies.
func runMetricsBridge(ctx context.Context, pipelines *pipelineSet, m *observe.Metrics) {
	ticker := time.NewTicker(bridgeInterval)
	defer ticker.Stop()

	lastCounts := make(map[string][4]int64)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for name, p := range pipelines.snapshot() {
			success, failure, cancelled, timeout := p.exec.Metrics().TotalCounts()
			prev := lastCounts[name]
			lastCounts[name] = [4]int64{success, failure, cancelled, timeout}

			recordDelta(ctx, m, name, "success", success-prev[0])
			recordDelta(ctx, m, name, "failure", failure-prev[1])
			recordDelta(ctx, m, name, "cancelled", cancelled-prev[2])
			recordDelta(ctx, m, name, "timeout", timeout-prev[3])

			for _, n := range p.graph.Nodes {
				attrs := metric.WithAttributes(
					attribute.String("pipeline", name),
					attribute.String("node_id", n.ID()),
					attribute.String("node_type", n.Type()),
				)
				if snap, ok := p.exec.Metrics().NodeSnapshot(n.ID()); ok && snap.Count > 0 {
					m.NodeExecutionDuration.Record(ctx, snap.Avg.Seconds(), attrs)
				}
				if snap, ok := p.exec.Metrics().EndpointSnapshot(n.ID()); ok && snap.Count > 0 {
					m.EndpointCallDuration.Record(ctx, snap.Avg.Seconds(), attrs)
				}
			}
		}
	}
}

func recordDelta(ctx context.Context, m *observe.Metrics, pipeline, outcome string, delta int64) {
	if delta <= 0 {
		return
	}
	for i := int64(0); i < delta; i++ {
		m.RecordExecutionOutcome(ctx, pipeline, outcome)
	}
}
