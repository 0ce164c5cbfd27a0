// Package telemetry wraps OpenTelemetry spans and meters with the attribute
// conventions used across the converter.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans and, on End, records their outcome and latency.
type Tracer interface {
	Start(ctx context.Context, operation string, options ...trace.SpanStartOption) (context.Context, trace.Span)
	End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption)
}
