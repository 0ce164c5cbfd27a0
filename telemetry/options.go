package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Option func(ctx context.Context, m *Manager)

// WithDisableTracing keeps the global no-op providers.
func WithDisableTracing() Option {
	return func(_ context.Context, m *Manager) {
		m.disabled = true
	}
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(_ context.Context, m *Manager) {
		m.serviceName = name
	}
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(_ context.Context, m *Manager) {
		m.serviceVersion = version
	}
}

func WithPropagationTextMap(carrier propagation.TextMapPropagator) Option {
	return func(_ context.Context, m *Manager) {
		m.textMap = carrier
	}
}

func WithTraceExporter(exporter sdktrace.SpanExporter) Option {
	return func(_ context.Context, m *Manager) {
		m.spanExporter = exporter
	}
}

func WithTraceSampler(sampler sdktrace.Sampler) Option {
	return func(_ context.Context, m *Manager) {
		m.sampler = sampler
	}
}

func WithMetricsReader(reader sdkmetrics.Reader) Option {
	return func(_ context.Context, m *Manager) {
		m.metricsReader = reader
	}
}

func WithLogsExporter(exporter sdklogs.Exporter) Option {
	return func(_ context.Context, m *Manager) {
		m.logsExporter = exporter
	}
}
