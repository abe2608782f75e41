package reconcile

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zipsync/zipsync/internal/telemetry"
)

const scopeName = "github.com/zipsync/zipsync/reconcile"

var engineMetrics struct {
	entities      metric.Int64Counter
	mutations     metric.Int64Counter
	chunkDuration metric.Float64Histogram
}

var engineMetricsOnce sync.Once

func initEngineMetrics() {
	m := telemetry.Meter(scopeName)
	engineMetrics.entities, _ = m.Int64Counter("zipsync.entities",
		metric.WithDescription("Campaigns reconciled, by final status"),
		metric.WithUnit("{campaign}"),
	)
	engineMetrics.mutations, _ = m.Int64Counter("zipsync.mutations",
		metric.WithDescription("Criterion operations submitted, by kind and result"),
		metric.WithUnit("{operation}"),
	)
	engineMetrics.chunkDuration, _ = m.Float64Histogram("zipsync.chunk.duration",
		metric.WithDescription("Mutate request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func recordEntity(ctx context.Context, status Status) {
	if engineMetrics.entities != nil {
		engineMetrics.entities.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	}
}

func recordChunk(ctx context.Context, kind OpKind, ms float64, out MutationOutcome) {
	kindAttr := attribute.String("kind", kind.String())
	if engineMetrics.chunkDuration != nil {
		engineMetrics.chunkDuration.Record(ctx, ms, metric.WithAttributes(kindAttr))
	}
	if engineMetrics.mutations == nil {
		return
	}
	if out.SuccessfulCount > 0 {
		engineMetrics.mutations.Add(ctx, int64(out.SuccessfulCount),
			metric.WithAttributes(kindAttr, attribute.String("result", "ok")))
	}
	if out.FailedCount > 0 {
		engineMetrics.mutations.Add(ctx, int64(out.FailedCount),
			metric.WithAttributes(kindAttr, attribute.String("result", "failed")))
	}
}
