package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//nolint:gochecknoglobals // attribute keys shared by spans and measures
var (
	operationKey = attribute.Key("heritage.operation")
	outcomeKey   = attribute.Key("heritage.outcome")
)

type spanTimingKey struct{}

// spanTiming travels in the span context so End can record latency.
type spanTiming struct {
	operation string
	started   time.Time
}

type tracer struct {
	scope   string
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// NewTracer returns a Tracer whose spans also feed the scope's latency histogram.
func NewTracer(scope string, options ...trace.TracerOption) Tracer {
	return &tracer{
		scope:   scope,
		tracer:  otel.Tracer(scope, options...),
		latency: LatencyMeasure(scope),
	}
}

//nolint:spancheck // the caller ends the span through End
func (t *tracer) Start(
	ctx context.Context,
	operation string,
	options ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	options = append(options, trace.WithAttributes(operationKey.String(operation)))
	ctx, span := t.tracer.Start(ctx, operation, options...)
	return context.WithValue(ctx, spanTimingKey{}, spanTiming{
		operation: t.scope + "/" + operation,
		started:   time.Now(),
	}), span
}

func (t *tracer) End(ctx context.Context, span trace.Span, err error, options ...trace.SpanEndOption) {
	outcome := ErrorCode(err)
	span.SetAttributes(outcomeKey.String(outcome))
	if err != nil {
		span.RecordError(err, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(options...)

	timing, ok := ctx.Value(spanTimingKey{}).(spanTiming)
	if !ok {
		return
	}
	elapsed := float64(time.Since(timing.started)) / float64(time.Millisecond)
	t.latency.Record(ctx, elapsed, metric.WithAttributes(
		operationKey.String(timing.operation),
		outcomeKey.String(outcome),
	))
}

// ErrorCode classifies err for the outcome attribute.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	default:
		return "err"
	}
}
