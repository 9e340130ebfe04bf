package desk

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	eventsCounter    metric.Int64Counter
	calcErrorCounter metric.Int64Counter
	persistFailures  metric.Int64Counter
	apiErrorCounter  metric.Int64Counter
)

func init() {
	if err := InitMetrics(); err != nil {
		panic(err)
	}
}

// InitMetrics binds the desk instruments to the current meter provider.
// Call it again after observability.InitMetrics installs the OTLP provider.
func InitMetrics() error {
	meter := otel.Meter("desk")

	var err error

	eventsCounter, err = meter.Int64Counter("desk.events.total",
		metric.WithDescription("Calculator events applied, by event"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return fmt.Errorf("creating events counter: %w", err)
	}

	calcErrorCounter, err = meter.Int64Counter("desk.calculation_errors.total",
		metric.WithDescription("Events that left the calculator in the error state"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating calculation error counter: %w", err)
	}

	persistFailures, err = meter.Int64Counter("desk.persist_failures.total",
		metric.WithDescription("History or balance writes that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating persist failure counter: %w", err)
	}

	apiErrorCounter, err = meter.Int64Counter("desk.api.errors.total",
		metric.WithDescription("Session, history and settings API errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating api error counter: %w", err)
	}

	return nil
}
