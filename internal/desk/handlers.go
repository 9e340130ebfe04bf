package desk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"checkbook-calc/internal/cache"
	"checkbook-calc/internal/handlers"
	"checkbook-calc/internal/observability"
	"checkbook-calc/internal/session"
	"checkbook-calc/internal/store"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sessions holds the live calculators of the HTTP API, keyed by session id.
type Sessions = cache.Cache[*Desk]

// NewSessions returns a session cache whose idle desks expire after ttl.
// Expired and deleted desks are closed, which flushes their pending writes.
func NewSessions(ttl, cleanupInterval time.Duration) *Sessions {
	return cache.New(ttl, cleanupInterval, cache.WithOnEvict(func(id string, d *Desk) {
		d.Close()
		observability.Logger.Info("session closed", zap.String("session_id", id))
	}))
}

// API serves calculator sessions, stored history and settings over HTTP.
type API struct {
	store    store.Store
	sessions *Sessions
	opts     []Option
}

// NewAPI returns an API that opens desks on st with opts.
func NewAPI(st store.Store, sessions *Sessions, opts ...Option) *API {
	return &API{store: st, sessions: sessions, opts: opts}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// CreateSession handles POST /sessions
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "sessions.create")
	defer span.End()

	id := uuid.New().String()
	d := New(ctx, a.store, append([]Option{WithID(id)}, a.opts...)...)
	a.sessions.Set(id, d)

	span.SetAttributes(attribute.String("session.id", id))
	logger.Info("session opened", zap.String("session_id", id))

	handlers.WriteJSON(w, http.StatusCreated, SessionResponse{ID: id, View: d.View()})
}

// GetSession handles GET /sessions/{id}
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	_, span, _ := a.start(r, "sessions.get")
	defer span.End()

	d, id, ok := a.desk(w, r, span)
	if !ok {
		return
	}
	handlers.WriteJSON(w, http.StatusOK, SessionResponse{ID: id, View: d.View()})
}

// DeleteSession handles DELETE /sessions/{id}
func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "sessions.delete")
	defer span.End()

	id := chi.URLParam(r, "id")
	if !a.sessions.Delete(id) {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.delete", "session not found", fmt.Errorf("session %q", id), http.StatusNotFound, w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PressKeys handles POST /sessions/{id}/keys. Either keys or sequence may be
// given; all keys are parsed before any is applied.
func (a *API) PressKeys(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "sessions.keys")
	defer span.End()

	d, id, ok := a.desk(w, r, span)
	if !ok {
		return
	}

	var req KeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.keys", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	keys, err := req.parse()
	if err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.keys", err.Error(), err, http.StatusBadRequest, w)
		return
	}
	if len(keys) == 0 {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.keys", "no keys provided", errors.New("keys and sequence are empty"), http.StatusBadRequest, w)
		return
	}
	span.SetAttributes(attribute.Int("keys.count", len(keys)))

	view := d.View()
	var recorded []*session.Record
	for _, k := range keys {
		view, err = d.Press(ctx, k)
		if err != nil {
			observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.keys", err.Error(), err, http.StatusBadRequest, w)
			return
		}
		if view.Recorded != nil {
			recorded = append(recorded, view.Recorded)
		}
	}

	logger.Debug("keys applied",
		zap.String("session_id", id),
		zap.Int("keys", len(keys)),
		zap.String("display", view.State.Display),
	)
	handlers.WriteJSON(w, http.StatusOK, SessionResponse{ID: id, View: view, Recorded: recorded})
}

// Undo handles POST /sessions/{id}/undo
func (a *API) Undo(w http.ResponseWriter, r *http.Request) {
	a.sessionAction(w, r, "sessions.undo", (*Desk).Undo)
}

// Redo handles POST /sessions/{id}/redo
func (a *API) Redo(w http.ResponseWriter, r *http.Request) {
	a.sessionAction(w, r, "sessions.redo", (*Desk).Redo)
}

// Recover handles POST /sessions/{id}/recover
func (a *API) Recover(w http.ResponseWriter, r *http.Request) {
	a.sessionAction(w, r, "sessions.recover", (*Desk).RecoverFromError)
}

// SelectEntry handles POST /sessions/{id}/select
func (a *API) SelectEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "sessions.select")
	defer span.End()

	d, id, ok := a.desk(w, r, span)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.select", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	entry, err := a.store.HistoryEntry(ctx, req.EntryID)
	if err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "sessions.select", "history entry not found", err, statusForStore(err), w)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, SessionResponse{ID: id, View: d.SelectHistoryEntry(ctx, entry)})
}

func (a *API) sessionAction(w http.ResponseWriter, r *http.Request, opName string, action func(*Desk, context.Context) View) {
	ctx, span, _ := a.start(r, opName)
	defer span.End()

	d, id, ok := a.desk(w, r, span)
	if !ok {
		return
	}
	handlers.WriteJSON(w, http.StatusOK, SessionResponse{ID: id, View: action(d, ctx)})
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// History handles GET /history. The response carries an ETag over its body;
// a matching If-None-Match gets 304.
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "history.list")
	defer span.End()

	entries, err := a.store.History(ctx)
	if err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "history.list", "loading history failed", err, http.StatusInternalServerError, w)
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	span.SetAttributes(attribute.Int("history.count", len(entries)))

	body, err := json.Marshal(HistoryResponse{Entries: entries})
	if err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "history.list", "encoding history failed", err, http.StatusInternalServerError, w)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// DeleteHistoryEntry handles DELETE /history/{id}
func (a *API) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "history.delete")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("history.id", id))

	if err := a.store.DeleteHistoryEntry(ctx, id); err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "history.delete", "deleting history entry failed", err, statusForStore(err), w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeHistory handles POST /history/purge. Without retention_days the
// stored settings decide.
func (a *API) PurgeHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "history.purge")
	defer span.End()

	var req PurgeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			observability.RecordError(ctx, span, logger, apiErrorCounter, "history.purge", "invalid request body", err, http.StatusBadRequest, w)
			return
		}
	}

	days := req.RetentionDays
	if days <= 0 {
		days = a.settings(ctx, logger).RetentionDays
	}
	span.SetAttributes(attribute.Int("history.retention_days", days))

	removed, err := a.store.PurgeOlderThan(ctx, days)
	if err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "history.purge", "purging history failed", err, http.StatusInternalServerError, w)
		return
	}

	logger.Info("history purged", zap.Int("retention_days", days), zap.Int("removed", removed))
	handlers.WriteJSON(w, http.StatusOK, PurgeResponse{RetentionDays: days, Removed: removed})
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSettings handles GET /settings
func (a *API) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "settings.get")
	defer span.End()

	handlers.WriteJSON(w, http.StatusOK, a.settings(ctx, logger))
}

// PutSettings handles PUT /settings. The new settings are saved and applied
// to every open session.
func (a *API) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span, logger := a.start(r, "settings.put")
	defer span.End()

	s := a.settings(ctx, logger)
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "settings.put", "invalid request body", err, http.StatusBadRequest, w)
		return
	}
	if err := s.Validate(); err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "settings.put", err.Error(), err, http.StatusBadRequest, w)
		return
	}
	if err := a.store.SaveSettings(ctx, s); err != nil {
		observability.RecordError(ctx, span, logger, apiErrorCounter, "settings.put", "saving settings failed", err, http.StatusInternalServerError, w)
		return
	}

	applied := 0
	a.sessions.Range(func(_ string, d *Desk) bool {
		d.ApplySettings(ctx, s)
		applied++
		return true
	})

	logger.Info("settings updated",
		zap.String("mode", s.Mode.String()),
		zap.String("currency_symbol", s.CurrencySymbol),
		zap.Int("sessions", applied),
	)
	handlers.WriteJSON(w, http.StatusOK, s)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (a *API) start(r *http.Request, opName string) (context.Context, trace.Span, *zap.Logger) {
	ctx, span := tracer.Start(r.Context(), "desk.api."+opName,
		trace.WithAttributes(
			attribute.String("request.id", observability.RequestIDFromContext(r.Context())),
		),
	)
	return ctx, span, observability.LoggerWithTrace(ctx)
}

// desk looks up the session named in the URL and writes 404 when it is gone.
func (a *API) desk(w http.ResponseWriter, r *http.Request, span trace.Span) (*Desk, string, bool) {
	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("session.id", id))

	d, ok := a.sessions.Get(id)
	if !ok {
		span.SetStatus(codes.Error, "session not found")
		apiErrorCounter.Add(r.Context(), 1)
		handlers.WriteError(w, http.StatusNotFound, "session not found")
		return nil, id, false
	}
	return d, id, true
}

func (a *API) settings(ctx context.Context, logger *zap.Logger) store.Settings {
	s, err := a.store.LoadSettings(ctx)
	if err != nil {
		logger.Warn("loading settings failed, using defaults", zap.Error(err))
		return store.DefaultSettings()
	}
	return s
}

func statusForStore(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
