package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pitabwire/heritage/telemetry"
)

type TelemetrySuite struct {
	suite.Suite

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func TestTelemetrySuite(t *testing.T) {
	suite.Run(t, new(TelemetrySuite))
}

func (s *TelemetrySuite) SetupTest() {
	s.spans = tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.spans)))

	s.reader = sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(s.reader)))
}

func (s *TelemetrySuite) TestSpanLifecycle() {
	tracer := telemetry.NewTracer("heritage/test")

	testCases := []struct {
		name       string
		err        error
		wantStatus codes.Code
	}{
		{name: "success", wantStatus: codes.Ok},
		{name: "failure", err: errors.New("boom"), wantStatus: codes.Error},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			ctx, span := tracer.Start(context.Background(), tc.name)
			tracer.End(ctx, span, tc.err)
		})
	}

	ended := s.spans.Ended()
	s.Require().Len(ended, len(testCases))
	for i, tc := range testCases {
		s.Equal(tc.name, ended[i].Name())
		s.Equal(tc.wantStatus, ended[i].Status().Code)
	}
	s.Len(ended[1].Events(), 1, "the error should be recorded on the span")

	var rm metricdata.ResourceMetrics
	s.Require().NoError(s.reader.Collect(context.Background(), &rm))
	s.True(hasMetric(rm, "heritage/test/latency"))
}

func (s *TelemetrySuite) TestCounter() {
	counter := telemetry.DimensionlessMeasure("heritage/test", "changes", "changes seen")
	counter.Add(context.Background(), 2)

	var rm metricdata.ResourceMetrics
	s.Require().NoError(s.reader.Collect(context.Background(), &rm))
	s.True(hasMetric(rm, "heritage/test/changes"))
}

func (s *TelemetrySuite) TestErrorCode() {
	s.Equal("ok", telemetry.ErrorCode(nil))
	s.Equal("canceled", telemetry.ErrorCode(fmt.Errorf("wrapped: %w", context.Canceled)))
	s.Equal("deadline exceeded", telemetry.ErrorCode(context.DeadlineExceeded))
	s.Equal("err", telemetry.ErrorCode(errors.New("x")))
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

type staticConfig struct {
	disabled bool
	ratio    float64
}

func (c staticConfig) DisableOpenTelemetry() bool { return c.disabled }
func (c staticConfig) SamplingRatio() float64     { return c.ratio }

func (s *TelemetrySuite) TestManagerInstallsProviders() {
	s.T().Setenv("OTEL_LOGS_EXPORTER", "none")
	ctx := context.Background()

	exporter := tracetest.NewInMemoryExporter()
	manager := telemetry.NewManager(ctx, staticConfig{ratio: 1},
		telemetry.WithServiceName("heritage-test"),
		telemetry.WithServiceVersion("v0.0.1"),
		telemetry.WithTraceExporter(exporter),
		telemetry.WithMetricsReader(sdkmetric.NewManualReader()),
	)
	s.False(manager.Disabled())
	s.Nil(manager.LogHandler())

	s.Require().NoError(manager.Init(ctx))
	s.NotNil(manager.LogHandler())

	tracer := telemetry.NewTracer("heritage/test")
	spanCtx, span := tracer.Start(ctx, "installed")
	tracer.End(spanCtx, span, nil)

	s.Require().NoError(manager.Shutdown(ctx))
	s.Require().Len(exporter.GetSpans(), 1)
	s.Equal("installed", exporter.GetSpans()[0].Name)
}

func (s *TelemetrySuite) TestDisabledManager() {
	ctx := context.Background()

	byConfig := telemetry.NewManager(ctx, staticConfig{disabled: true})
	s.True(byConfig.Disabled())
	s.Require().NoError(byConfig.Init(ctx))
	s.Nil(byConfig.LogHandler())
	s.NoError(byConfig.Shutdown(ctx))

	byOption := telemetry.NewManager(ctx, nil, telemetry.WithDisableTracing())
	s.True(byOption.Disabled())
}
