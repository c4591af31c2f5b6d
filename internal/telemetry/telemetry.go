// Package telemetry holds the OpenTelemetry instruments shared by the
// monitor. Instruments come from the global providers, so they are no-ops
// unless the embedding process installs an SDK.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/Zuo-Peng/vmon"

// StartSpan opens a span named "vmon.<name>".
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(scope).Start(ctx, "vmon."+name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Count adds n to the named counter. Instrument creation errors are ignored;
// a missing metric must never affect the monitor.
func Count(ctx context.Context, name string, n int64, attrs ...attribute.KeyValue) {
	counter, err := otel.Meter(scope).Int64Counter("vmon." + name)
	if err != nil {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(attrs...))
}
