// Package desk is the event surface of one calculator. It feeds key presses
// through the session state machine, records undo-worthy states, hands
// completed calculations to the store without waiting on it, and exposes
// the resulting View to whatever presentation layer drives it.
package desk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"checkbook-calc/internal/calculator"
	"checkbook-calc/internal/observability"
	"checkbook-calc/internal/session"
	"checkbook-calc/internal/store"
	"checkbook-calc/internal/undo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("desk")

// writeQueueSize bounds the completed calculations waiting to be persisted.
const writeQueueSize = 64

// View is what a presentation layer renders after every event.
type View struct {
	State          session.State   `json:"state"`
	Mode           calculator.Mode `json:"mode"`
	CurrencySymbol string          `json:"currencySymbol"`
	CanUndo        bool            `json:"canUndo"`
	CanRedo        bool            `json:"canRedo"`
	Feedback       *undo.Feedback  `json:"feedback,omitempty"`
	// Recorded is set when the event completed a calculation.
	Recorded *session.Record `json:"recorded,omitempty"`
}

// Option configures a Desk.
type Option func(*Desk)

// WithID names the desk in logs and spans.
func WithID(id string) Option {
	return func(d *Desk) {
		d.id = id
	}
}

// WithUndoDepth bounds the undo history.
func WithUndoDepth(n int) Option {
	return func(d *Desk) {
		d.undoDepth = n
	}
}

// WithFeedbackDismiss clears undo/redo feedback after delay. Zero keeps it
// until it is replaced or dismissed explicitly.
func WithFeedbackDismiss(delay time.Duration) Option {
	return func(d *Desk) {
		d.dismissAfter = delay
	}
}

// Desk is one calculator. All methods are safe for concurrent use; events
// are applied one at a time.
type Desk struct {
	mu sync.Mutex

	id           string
	machine      *session.Machine
	history      *undo.Manager
	recorded     session.State // last state pushed to or restored from history
	settings     store.Settings
	store        store.Store
	undoDepth    int
	dismissAfter time.Duration
	dismiss      *time.Timer

	writes  chan session.Record
	pending sync.WaitGroup
	done    chan struct{}
	closed  bool
}

// New opens a calculator backed by st. Settings are loaded from st; when
// that fails the defaults are used.
func New(ctx context.Context, st store.Store, opts ...Option) *Desk {
	d := &Desk{
		store:     st,
		undoDepth: undo.DefaultMaxSize,
		writes:    make(chan session.Record, writeQueueSize),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	settings, err := st.LoadSettings(ctx)
	if err != nil {
		d.logger(ctx).Warn("loading settings failed, using defaults", zap.Error(err))
		settings = store.DefaultSettings()
	}
	d.settings = settings

	d.machine = session.NewMachine(settings.Mode, settings.CurrencySymbol)
	d.recorded = d.machine.State()
	d.history = undo.NewManager(d.recorded, undo.WithMaxSize(d.undoDepth))

	go d.writeLoop()
	return d
}

// ID returns the name given with WithID.
func (d *Desk) ID() string { return d.id }

// View returns the current view without changing anything.
func (d *Desk) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewLocked(nil)
}

// Settings returns the settings the desk currently calculates with.
func (d *Desk) Settings() store.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// Digit presses one of "0".."9".
func (d *Desk) Digit(ctx context.Context, digit string) (View, error) {
	return d.apply(ctx, "digit", func() (session.State, *session.Record, error) {
		s, err := d.machine.Digit(digit)
		return s, nil, err
	})
}

func (d *Desk) Decimal(ctx context.Context) View {
	return d.applyState(ctx, "decimal", d.machine.Decimal)
}

func (d *Desk) Negate(ctx context.Context) View {
	return d.applyState(ctx, "negate", d.machine.Negate)
}

func (d *Desk) Operator(ctx context.Context, op calculator.Operation) View {
	return d.applyState(ctx, "operator", func() session.State {
		return d.machine.Operator(op)
	})
}

// Equals resolves the pending calculation. A successful result is queued
// for the history store and reported in View.Recorded.
func (d *Desk) Equals(ctx context.Context) View {
	v, _ := d.apply(ctx, "equals", func() (session.State, *session.Record, error) {
		s, rec := d.machine.Equals()
		return s, rec, nil
	})
	return v
}

func (d *Desk) Backspace(ctx context.Context) View {
	return d.applyState(ctx, "backspace", d.machine.Backspace)
}

// Clear discards the operand being typed but keeps the pending calculation.
func (d *Desk) Clear(ctx context.Context) View {
	return d.applyState(ctx, "clear", d.machine.Clear)
}

// AllClear resets the calculation. Undo history is kept, so AllClear can
// itself be undone.
func (d *Desk) AllClear(ctx context.Context) View {
	return d.applyState(ctx, "all_clear", d.machine.AllClear)
}

// SelectHistoryEntry puts a past result on the display.
func (d *Desk) SelectHistoryEntry(ctx context.Context, entry store.HistoryEntry) View {
	return d.applyState(ctx, "select_history", func() session.State {
		return d.machine.SelectResult(entry.Result)
	})
}

// Undo steps back to the previous recorded state.
func (d *Desk) Undo(ctx context.Context) View {
	return d.step(ctx, "undo", d.history.Undo)
}

// Redo steps forward to the next recorded state.
func (d *Desk) Redo(ctx context.Context) View {
	return d.step(ctx, "redo", d.history.Redo)
}

// RecoverFromError returns to the last good state in one gesture: it
// all-clears and then undoes the all-clear. Outside the error state it does
// nothing.
func (d *Desk) RecoverFromError(ctx context.Context) View {
	ctx, span := d.startSpan(ctx, "recover")
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.machine.State().Error {
		return d.viewLocked(nil)
	}

	cleared := d.machine.AllClear()
	if !session.UndoWorthy(d.recorded, cleared) {
		// The last good state was the initial one.
		return d.viewLocked(nil)
	}
	d.history.Push(cleared)
	d.recorded = cleared

	eventsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", "recover")))
	return d.stepLocked(ctx, d.history.Undo)
}

// Press dispatches a parsed key.
func (d *Desk) Press(ctx context.Context, k Key) (View, error) {
	switch k.Kind {
	case KeyDigit:
		return d.Digit(ctx, k.Digit)
	case KeyDecimal:
		return d.Decimal(ctx), nil
	case KeyNegate:
		return d.Negate(ctx), nil
	case KeyOperator:
		return d.Operator(ctx, k.Op), nil
	case KeyEquals:
		return d.Equals(ctx), nil
	case KeyBackspace:
		return d.Backspace(ctx), nil
	case KeyClear:
		return d.Clear(ctx), nil
	case KeyAllClear:
		return d.AllClear(ctx), nil
	case KeyUndo:
		return d.Undo(ctx), nil
	case KeyRedo:
		return d.Redo(ctx), nil
	case KeyRecover:
		return d.RecoverFromError(ctx), nil
	}
	return d.View(), fmt.Errorf("desk: unknown key kind %d", k.Kind)
}

// DismissFeedback clears the undo/redo feedback numbered seq, unless newer
// feedback has replaced it.
func (d *Desk) DismissFeedback(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.ClearFeedbackIf(seq)
}

// ---------------------------------------------------------------------------
// Settings and history
// ---------------------------------------------------------------------------

// UpdateSettings validates, applies and persists settings. A failed save is
// logged and returned; the settings still apply to this desk.
func (d *Desk) UpdateSettings(ctx context.Context, s store.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.ApplySettings(ctx, s)
	if err := d.store.SaveSettings(ctx, s); err != nil {
		d.logger(ctx).Warn("saving settings failed", zap.Error(err))
		return fmt.Errorf("desk: saving settings: %w", err)
	}
	return nil
}

// ApplySettings switches the desk to s without persisting it. Changing the
// mode resets the calculation and the undo history, since recorded
// snapshots were formatted for the old precision.
func (d *Desk) ApplySettings(ctx context.Context, s store.Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()

	modeChanged := s.Mode != d.settings.Mode
	d.settings = s
	d.machine.SetCurrencySymbol(s.CurrencySymbol)

	if modeChanged {
		d.machine.SetMode(s.Mode)
		d.recorded = d.machine.AllClear()
		d.history.Clear(d.recorded)
		d.logger(ctx).Info("calculator mode changed", zap.String("mode", s.Mode.String()))
	}
}

// History returns the stored calculations, newest first. Store failures are
// logged and yield an empty list.
func (d *Desk) History(ctx context.Context) []store.HistoryEntry {
	entries, err := d.store.History(ctx)
	if err != nil {
		d.logger(ctx).Warn("loading history failed", zap.Error(err))
		return []store.HistoryEntry{}
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	return entries
}

// DeleteHistoryEntry removes one stored calculation.
func (d *Desk) DeleteHistoryEntry(ctx context.Context, id string) error {
	err := d.store.DeleteHistoryEntry(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		d.logger(ctx).Warn("deleting history entry failed", zap.String("entry_id", id), zap.Error(err))
	}
	return err
}

// PurgeHistory removes entries older than retentionDays, or older than the
// configured retention when retentionDays is not positive. It returns the
// number removed and the retention that was applied.
func (d *Desk) PurgeHistory(ctx context.Context, retentionDays int) (removed, days int, err error) {
	days = retentionDays
	if days <= 0 {
		days = d.Settings().RetentionDays
	}
	removed, err = d.store.PurgeOlderThan(ctx, days)
	if err != nil {
		d.logger(ctx).Warn("purging history failed", zap.Int("retention_days", days), zap.Error(err))
		return 0, days, err
	}
	return removed, days, nil
}

// LastBalance returns the last stored result, or 0.
func (d *Desk) LastBalance(ctx context.Context) float64 {
	balance, err := d.store.LastBalance(ctx)
	if err != nil {
		d.logger(ctx).Warn("loading last balance failed", zap.Error(err))
		return 0
	}
	return balance
}

// Flush blocks until every queued calculation has been handed to the store.
// Events wait for it to return, so nothing is queued while it waits.
func (d *Desk) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Wait()
}

// Close flushes pending writes and stops the desk's writer. Events after
// Close still work but persist synchronously.
func (d *Desk) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.dismiss != nil {
		d.dismiss.Stop()
	}
	close(d.writes)
	d.mu.Unlock()

	<-d.done
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func (d *Desk) applyState(ctx context.Context, event string, fn func() session.State) View {
	v, _ := d.apply(ctx, event, func() (session.State, *session.Record, error) {
		return fn(), nil, nil
	})
	return v
}

// apply runs one transition and records the result in undo history when it
// is undo-worthy.
func (d *Desk) apply(ctx context.Context, event string, fn func() (session.State, *session.Record, error)) (View, error) {
	ctx, span := d.startSpan(ctx, event)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	next, rec, err := fn()
	if err != nil {
		span.RecordError(err)
		return d.viewLocked(nil), err
	}

	if session.UndoWorthy(d.recorded, next) {
		d.history.Push(next)
		d.recorded = next
	}

	eventsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	span.SetAttributes(attribute.String("calculator.display", next.Display))

	if next.Error {
		calcErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
		d.logger(ctx).Info("calculation failed",
			zap.String("event", event),
			zap.String("message", next.ErrorMessage),
		)
	}

	if rec != nil {
		d.persistLocked(ctx, *rec)
	}
	return d.viewLocked(rec), nil
}

// step runs an undo or redo and arms the feedback dismiss timer.
func (d *Desk) step(ctx context.Context, event string, move func(func(session.State)) bool) View {
	ctx, span := d.startSpan(ctx, event)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	v := d.stepLocked(ctx, move)
	eventsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
	return v
}

// stepLocked must be called with d.mu held.
func (d *Desk) stepLocked(ctx context.Context, move func(func(session.State)) bool) View {
	moved := move(func(s session.State) {
		d.machine.Restore(s)
		d.recorded = s
	})
	if !moved {
		return d.viewLocked(nil)
	}

	if fb, ok := d.history.Feedback(); ok && d.dismissAfter > 0 {
		if d.dismiss != nil {
			d.dismiss.Stop()
		}
		seq := fb.Seq
		d.dismiss = time.AfterFunc(d.dismissAfter, func() {
			d.DismissFeedback(seq)
		})
	}
	d.logger(ctx).Debug("history step", zap.Int("index", d.history.Index()))
	return d.viewLocked(nil)
}

// persistLocked queues rec for the writer. Must be called with d.mu held.
func (d *Desk) persistLocked(ctx context.Context, rec session.Record) {
	if d.closed {
		d.save(context.WithoutCancel(ctx), rec)
		return
	}
	d.pending.Add(1)
	d.writes <- rec
}

func (d *Desk) writeLoop() {
	defer close(d.done)
	for rec := range d.writes {
		d.save(context.Background(), rec)
		d.pending.Done()
	}
}

// save writes one completed calculation. Failures are logged and dropped;
// the calculator state has already moved on.
func (d *Desk) save(ctx context.Context, rec session.Record) {
	entry, err := d.store.SaveHistoryEntry(ctx, rec.Expression, rec.Result, rec.DisplayResult)
	if err != nil {
		persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "history")))
		d.logger(ctx).Warn("saving history entry failed", zap.String("expression", rec.Expression), zap.Error(err))
	} else {
		d.logger(ctx).Debug("history entry saved", zap.String("entry_id", entry.ID), zap.String("expression", entry.Expression))
	}

	if err := d.store.SaveLastBalance(ctx, rec.Result); err != nil {
		persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "balance")))
		d.logger(ctx).Warn("saving last balance failed", zap.Error(err))
	}
}

func (d *Desk) viewLocked(rec *session.Record) View {
	v := View{
		State:          d.machine.State(),
		Mode:           d.machine.Mode(),
		CurrencySymbol: d.machine.CurrencySymbol(),
		CanUndo:        d.history.CanUndo(),
		CanRedo:        d.history.CanRedo(),
		Recorded:       rec,
	}
	if fb, ok := d.history.Feedback(); ok {
		v.Feedback = &fb
	}
	return v
}

func (d *Desk) startSpan(ctx context.Context, event string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "desk."+event, trace.WithAttributes(
		attribute.String("session.id", d.id),
	))
}

func (d *Desk) logger(ctx context.Context) *zap.Logger {
	l := observability.LoggerWithTrace(ctx)
	if d.id != "" {
		l = l.With(zap.String("session_id", d.id))
	}
	return l
}
