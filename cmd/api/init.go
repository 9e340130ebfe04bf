package main

import (
	"context"

	"checkbook-calc/internal/calculator"
	"checkbook-calc/internal/desk"
	"checkbook-calc/internal/observability"
)

// initMetrics installs the OTLP meter provider and rebinds every domain's
// instruments to it.
func initMetrics(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := observability.InitMetrics(ctx)
	if err != nil {
		return nil, err
	}

	if err := calculator.InitMetrics(); err != nil {
		return nil, err
	}
	if err := desk.InitMetrics(); err != nil {
		return nil, err
	}

	return shutdown, nil
}

// initTelemetry starts OTLP tracing, metrics and log export and returns a
// function that shuts all three down.
func initTelemetry(ctx context.Context) (func(context.Context), error) {
	traceShutdown, err := observability.InitTracing(ctx)
	if err != nil {
		return nil, err
	}

	metricShutdown, err := initMetrics(ctx)
	if err != nil {
		_ = traceShutdown(ctx)
		return nil, err
	}

	logShutdown, err := observability.InitLogging(ctx)
	if err != nil {
		_ = metricShutdown(ctx)
		_ = traceShutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) {
		_ = logShutdown(ctx)
		_ = metricShutdown(ctx)
		_ = traceShutdown(ctx)
	}, nil
}
