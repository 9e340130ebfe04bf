package calculator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Engine instruments. init binds them to the global provider, which is a
// no-op until observability.InitMetrics installs the OTLP one; cmd/api then
// calls InitMetrics again.
var (
	opsCounter   metric.Int64Counter
	opsHistogram metric.Float64Histogram
	errorCounter metric.Int64Counter
	resultGauge  metric.Float64Gauge
)

func init() {
	if err := InitMetrics(); err != nil {
		panic(err)
	}
}

// InitMetrics binds the engine instruments to the current meter provider.
func InitMetrics() error {
	meter := otel.Meter("calculator")

	var err error

	opsCounter, err = meter.Int64Counter("calculator.operations.total",
		metric.WithDescription("Engine operations that produced a result, by operation and mode"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return fmt.Errorf("creating ops counter: %w", err)
	}

	// Engine calls finish in microseconds; the buckets are in milliseconds.
	opsHistogram, err = meter.Float64Histogram("calculator.operation.duration",
		metric.WithDescription("Time spent in Calculate, by operation and mode"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return fmt.Errorf("creating ops histogram: %w", err)
	}

	errorCounter, err = meter.Int64Counter("calculator.errors.total",
		metric.WithDescription("Rejected requests and engine failures such as divide by zero or results over 999,999,999.99"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	resultGauge, err = meter.Float64Gauge("calculator.last_result",
		metric.WithDescription("Last rounded engine result, by operation and mode"),
		metric.WithUnit("{currency}"),
	)
	if err != nil {
		return fmt.Errorf("creating result gauge: %w", err)
	}

	return nil
}
