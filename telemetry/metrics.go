package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UCUM unit codes, see http://unitsofmeasure.org/ucum.html.
const (
	unitCount        = "1"
	unitMilliseconds = "ms"
)

func scopeMeter(scope string) metric.Meter {
	return otel.Meter(scope, metric.WithInstrumentationAttributes(attribute.String("heritage.scope", scope)))
}

// LatencyMeasure is the "<scope>/latency" histogram fed by Tracer.End.
func LatencyMeasure(scope string) metric.Float64Histogram {
	h, err := scopeMeter(scope).Float64Histogram(scope+"/latency",
		metric.WithDescription("Time spent in traced operations"),
		metric.WithUnit(unitMilliseconds),
	)
	if err != nil {
		panic(fmt.Sprintf("telemetry: latency histogram for %q: %v", scope, err))
	}
	return h
}

// DimensionlessMeasure creates the "<scope>/<name>" counter.
func DimensionlessMeasure(scope, name, description string) metric.Int64Counter {
	c, err := scopeMeter(scope).Int64Counter(scope+"/"+name,
		metric.WithDescription(description),
		metric.WithUnit(unitCount),
	)
	if err != nil {
		panic(fmt.Sprintf("telemetry: counter %s/%s: %v", scope, name, err))
	}
	return c
}
