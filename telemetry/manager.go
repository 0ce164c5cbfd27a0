package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/propagators/autoprop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklogs "go.opentelemetry.io/otel/sdk/log"
	sdkmetrics "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Config is the part of the service configuration telemetry reads.
type Config interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

// Manager installs the global OpenTelemetry providers for one process.
type Manager struct {
	serviceName    string
	serviceVersion string

	cfg      Config
	disabled bool

	textMap       propagation.TextMapPropagator
	spanExporter  sdktrace.SpanExporter
	sampler       sdktrace.Sampler
	metricsReader sdkmetrics.Reader
	logsExporter  sdklogs.Exporter

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetrics.MeterProvider
	loggerProvider *sdklogs.LoggerProvider
	logHandler     slog.Handler
}

// NewManager prepares, but does not install, the providers.
func NewManager(ctx context.Context, cfg Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg, serviceName: "heritage"}
	if cfg != nil && cfg.DisableOpenTelemetry() {
		m.disabled = true
	}
	for _, opt := range opts {
		opt(ctx, m)
	}
	return m
}

func (m *Manager) Disabled() bool {
	return m.disabled
}

// LogHandler bridges slog records into the OpenTelemetry log pipeline, nil
// until Init succeeds.
func (m *Manager) LogHandler() slog.Handler {
	return m.logHandler
}

// Init builds the exporters from the OTEL_* environment, defaulting each
// signal to "none", and installs the providers globally.
func (m *Manager) Init(ctx context.Context) error {
	if m.disabled {
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(m.serviceName),
			semconv.ServiceVersion(m.serviceVersion),
			semconv.ProcessPID(os.Getpid()),
			semconv.ProcessRuntimeName("go"),
			semconv.ProcessRuntimeVersion(runtime.Version()),
		))
	if err != nil {
		return err
	}

	if m.textMap == nil {
		m.textMap = autoprop.NewTextMapPropagator()
	}
	if m.sampler == nil {
		ratio := 1.0
		if m.cfg != nil {
			ratio = m.cfg.SamplingRatio()
		}
		m.sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}

	if m.spanExporter == nil {
		defaultExporter("OTEL_TRACES_EXPORTER")
		if m.spanExporter, err = autoexport.NewSpanExporter(ctx); err != nil {
			return err
		}
	}
	if m.metricsReader == nil {
		defaultExporter("OTEL_METRICS_EXPORTER")
		if m.metricsReader, err = autoexport.NewMetricReader(ctx); err != nil {
			return err
		}
	}
	if m.logsExporter == nil {
		defaultExporter("OTEL_LOGS_EXPORTER")
		if m.logsExporter, err = autoexport.NewLogExporter(ctx); err != nil {
			return err
		}
	}

	otel.SetTextMapPropagator(m.textMap)

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(m.sampler),
		sdktrace.WithBatcher(m.spanExporter),
		sdktrace.WithResource(res))
	otel.SetTracerProvider(m.tracerProvider)

	m.meterProvider = sdkmetrics.NewMeterProvider(
		sdkmetrics.WithReader(m.metricsReader),
		sdkmetrics.WithResource(res))
	otel.SetMeterProvider(m.meterProvider)

	m.loggerProvider = sdklogs.NewLoggerProvider(
		sdklogs.WithResource(res),
		sdklogs.WithProcessor(sdklogs.NewBatchProcessor(m.logsExporter)))
	global.SetLoggerProvider(m.loggerProvider)

	m.logHandler = otelslog.NewHandler(m.serviceName,
		otelslog.WithSource(true),
		otelslog.WithLoggerProvider(m.loggerProvider),
		otelslog.WithAttributes(res.Attributes()...))
	return nil
}

// Shutdown flushes and stops whatever Init installed.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if m.tracerProvider != nil {
		errs = append(errs, m.tracerProvider.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		errs = append(errs, m.meterProvider.Shutdown(ctx))
	}
	if m.loggerProvider != nil {
		errs = append(errs, m.loggerProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func defaultExporter(env string) {
	if os.Getenv(env) == "" {
		_ = os.Setenv(env, "none")
	}
}
