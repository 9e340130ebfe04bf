package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"checkbook-calc/internal/handlers"
	"checkbook-calc/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("calculator")

// Add handles POST /calculator/add
func Add(w http.ResponseWriter, r *http.Request) { binary(w, r, OpAdd) }

// Subtract handles POST /calculator/subtract
func Subtract(w http.ResponseWriter, r *http.Request) { binary(w, r, OpSubtract) }

// Multiply handles POST /calculator/multiply
func Multiply(w http.ResponseWriter, r *http.Request) { binary(w, r, OpMultiply) }

// Divide handles POST /calculator/divide
func Divide(w http.ResponseWriter, r *http.Request) { binary(w, r, OpDivide) }

// Modes handles GET /calculator/modes
func Modes(w http.ResponseWriter, r *http.Request) {
	infos := make([]ModeInfo, 0, 2)
	for _, m := range []Mode{Checkbook, Scientific} {
		infos = append(infos, ModeInfo{
			Mode:     m,
			Decimals: m.Decimals(),
			Currency: m == Checkbook,
			MaxValue: MaxValue,
			Example:  FormatForDisplay(RoundToMode(1234.5678, m), m, ""),
		})
	}
	handlers.WriteJSON(w, http.StatusOK, infos)
}

// binary evaluates one "a op b" with the engine, the way an equals press
// would, and answers with the display text and the ledger line.
func binary(w http.ResponseWriter, r *http.Request, op Operation) {
	opName := op.String()
	ctx, span, logger := begin(r, opName, attribute.String("calculator.operation", opName))
	defer span.End()

	var req CalcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "invalid request body", err, http.StatusBadRequest, w)
		return
	}
	if !finite(req.A) || !finite(req.B) {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "invalid numeric input", fmt.Errorf("a=%g b=%g", req.A, req.B), http.StatusBadRequest, w)
		return
	}
	symbol := req.currency()

	span.SetAttributes(
		attribute.Float64("calculator.operand.a", req.A),
		attribute.Float64("calculator.operand.b", req.B),
		attribute.String("calculator.mode", req.Mode.String()),
	)

	result, elapsed, err := timed(req.A, op, req.B, req.Mode)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, opName, err.Error(), err, statusFor(err), w)
		return
	}
	recordSuccess(ctx, span, opName, req.Mode, result, elapsed)

	resp := CalcResponse{
		Operation: opName,
		A:         req.A,
		B:         req.B,
		Mode:      req.Mode,
		Result:    result,
		Display:   FormatForDisplay(result, req.Mode, ""),
		Ledger:    FormatExpression(req.A, op, &req.B, symbol),
	}

	logger.Info("calculation completed",
		zap.String("operation", opName),
		zap.String("ledger", resp.Ledger),
		zap.String("display", resp.Display),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
		zap.Float64("duration_ms", elapsed),
	)
	handlers.WriteJSON(w, http.StatusOK, resp)
}

// Chain handles POST /calculator/chain. Steps fold into a running total left
// to right, like pressing an operator after every operand. Each step gets a
// child span and goes through Calculate, so rounding and range checks apply
// after every step.
func Chain(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := begin(r, "chain")
	defer span.End()

	var req ChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "chain", "invalid request body", err, http.StatusBadRequest, w)
		return
	}
	if len(req.Steps) == 0 {
		observability.RecordError(ctx, span, logger, errorCounter, "chain", "no steps provided", errors.New("steps array is empty"), http.StatusBadRequest, w)
		return
	}
	if !finite(req.Initial) {
		observability.RecordError(ctx, span, logger, errorCounter, "chain", "invalid numeric input", fmt.Errorf("initial=%g", req.Initial), http.StatusBadRequest, w)
		return
	}

	span.SetAttributes(
		attribute.Float64("chain.initial", req.Initial),
		attribute.Int("chain.steps_count", len(req.Steps)),
		attribute.String("calculator.mode", req.Mode.String()),
	)

	running := RoundToMode(req.Initial, req.Mode)
	results := make([]ChainResult, 0, len(req.Steps))

	for i, step := range req.Steps {
		next, err := chainStep(ctx, i, running, step, req.Mode)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, fmt.Sprintf("failed at step %d", i))
			errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "chain")))

			logger.Warn("chain step failed",
				zap.Int("step", i),
				zap.String("operation", step.Op.String()),
				zap.Error(err),
				zap.String("request_id", observability.RequestIDFromContext(ctx)),
			)
			handlers.WriteError(w, statusFor(err), err.Error())
			return
		}

		results = append(results, ChainResult{
			Op:     step.Op,
			Value:  step.Value,
			Result: next,
			Ledger: FormatExpression(running, step.Op, &req.Steps[i].Value, req.currency()),
		})
		running = next
	}

	resultGauge.Record(ctx, running, metric.WithAttributes(attribute.String("operation", "chain")))
	span.SetAttributes(attribute.Float64("chain.result", running))
	span.SetStatus(codes.Ok, "")

	logger.Info("chained calculation completed",
		zap.Float64("initial", req.Initial),
		zap.Float64("result", running),
		zap.Int("steps", len(req.Steps)),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)

	handlers.WriteJSON(w, http.StatusOK, ChainResponse{
		Initial: req.Initial,
		Steps:   results,
		Result:  running,
		Display: FormatForDisplay(running, req.Mode, ""),
	})
}

// chainStep applies one step to running inside its own span.
func chainStep(ctx context.Context, i int, running float64, step ChainStep, mode Mode) (float64, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("calculator.chain.step.%d", i),
		trace.WithAttributes(
			attribute.Int("chain.step.index", i),
			attribute.String("chain.step.operation", step.Op.String()),
			attribute.Float64("chain.step.input", running),
			attribute.Float64("chain.step.value", step.Value),
		),
	)
	defer span.End()

	if step.Op == OpNone {
		err := fmt.Errorf("missing operation at step %d", i)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	result, elapsed, err := timed(running, step.Op, step.Value, mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	recordSuccess(ctx, span, step.Op.String(), mode, result, elapsed)

	observability.LoggerWithTrace(ctx).Debug("chain step completed",
		zap.Int("step", i),
		zap.String("operation", step.Op.String()),
		zap.Float64("input", running),
		zap.Float64("value", step.Value),
		zap.Float64("result", result),
	)
	return result, nil
}

// begin opens the request span and a logger bound to it.
func begin(r *http.Request, opName string, attrs ...attribute.KeyValue) (context.Context, trace.Span, *zap.Logger) {
	attrs = append(attrs, attribute.String("request.id", observability.RequestIDFromContext(r.Context())))
	ctx, span := tracer.Start(r.Context(), "calculator."+opName, trace.WithAttributes(attrs...))
	return ctx, span, observability.LoggerWithTrace(ctx)
}

// timed runs Calculate and reports its duration in milliseconds.
func timed(a float64, op Operation, b float64, mode Mode) (float64, float64, error) {
	start := time.Now()
	result, err := Calculate(a, op, b, mode)
	return result, float64(time.Since(start).Microseconds()) / 1000.0, err
}

func recordSuccess(ctx context.Context, span trace.Span, opName string, mode Mode, result, elapsed float64) {
	attrs := metric.WithAttributes(
		attribute.String("operation", opName),
		attribute.String("mode", mode.String()),
	)
	opsCounter.Add(ctx, 1, attrs)
	opsHistogram.Record(ctx, elapsed, attrs)
	resultGauge.Record(ctx, result, attrs)

	span.AddEvent("computation.complete", trace.WithAttributes(
		attribute.Float64("result", result),
		attribute.Float64("duration_ms", elapsed),
	))
	span.SetAttributes(attribute.Float64("calculator.result", result))
	span.SetStatus(codes.Ok, "")
}

// statusFor maps engine failures to HTTP status codes. Input problems are
// the caller's fault; anything else is ours.
func statusFor(err error) int {
	if errors.Is(err, ErrComputationFailed) {
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
