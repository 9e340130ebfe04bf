package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	historyFile  = "history.json"
	settingsFile = "settings.json"
	balanceFile  = "balance.json"

	// DefaultMaxEntries bounds the stored history.
	DefaultMaxEntries = 500
)

var tracer = otel.Tracer("store")

// NowFunc returns the current time.
type NowFunc func() time.Time

// Option configures a FileStore.
type Option func(*FileStore)

// WithFs sets the filesystem. Tests use afero.NewMemMapFs().
func WithFs(fs afero.Fs) Option {
	return func(s *FileStore) {
		s.fs = fs
	}
}

// WithNowFunc sets the clock used to timestamp and purge entries.
func WithNowFunc(now NowFunc) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// WithIDFunc sets the generator for history entry ids.
func WithIDFunc(newID func() string) Option {
	return func(s *FileStore) {
		s.newID = newID
	}
}

// WithMaxEntries bounds the number of stored history entries; the oldest
// are dropped first. Values below 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(s *FileStore) {
		if n >= 1 {
			s.maxEntries = n
		}
	}
}

// FileStore keeps each collection in its own JSON file under dir. Writes go
// to a temporary file that is renamed into place. It is safe for concurrent
// use.
type FileStore struct {
	dir        string
	fs         afero.Fs
	now        NowFunc
	newID      func() string
	maxEntries int
	mu         sync.Mutex
}

// Compile-time check: *FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
// The OS filesystem is used unless WithFs is given.
func NewFileStore(dir string, options ...Option) (*FileStore, error) {
	s := &FileStore{
		dir:        dir,
		fs:         afero.NewOsFs(),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		maxEntries: DefaultMaxEntries,
	}
	for _, option := range options {
		option(s)
	}

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %q: %w", dir, err)
	}
	return s, nil
}

// SaveHistoryEntry prepends a new entry and returns it.
func (s *FileStore) SaveHistoryEntry(ctx context.Context, expression string, result float64, displayResult string) (entry HistoryEntry, err error) {
	_, span := startSpan(ctx, "store.save_history_entry")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readHistory()
	if err != nil {
		return HistoryEntry{}, err
	}

	entry = HistoryEntry{
		ID:            s.newID(),
		Expression:    expression,
		Result:        result,
		Timestamp:     s.now(),
		DisplayResult: displayResult,
	}

	entries = append([]HistoryEntry{entry}, entries...)
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}

	if err := s.writeJSON(historyFile, entries); err != nil {
		return HistoryEntry{}, err
	}
	span.SetAttributes(attribute.String("history.id", entry.ID))
	return entry, nil
}

// History returns all entries, newest first. The slice is a copy.
func (s *FileStore) History(ctx context.Context) (entries []HistoryEntry, err error) {
	_, span := startSpan(ctx, "store.history")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err = s.readHistory()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("history.count", len(entries)))
	return entries, nil
}

// HistoryEntry returns the entry with the given id.
func (s *FileStore) HistoryEntry(ctx context.Context, id string) (entry HistoryEntry, err error) {
	_, span := startSpan(ctx, "store.history_entry")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readHistory()
	if err != nil {
		return HistoryEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return HistoryEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// DeleteHistoryEntry removes one entry.
func (s *FileStore) DeleteHistoryEntry(ctx context.Context, id string) (err error) {
	_, span := startSpan(ctx, "store.delete_history_entry")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readHistory()
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.writeJSON(historyFile, kept)
}

// PurgeOlderThan removes entries older than retentionDays and returns how
// many were removed. A non-positive retention removes nothing.
func (s *FileStore) PurgeOlderThan(ctx context.Context, retentionDays int) (removed int, err error) {
	_, span := startSpan(ctx, "store.purge_older_than")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("history.retention_days", retentionDays))

	if retentionDays <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readHistory()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}

	if err := s.writeJSON(historyFile, kept); err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("history.removed", removed))
	return removed, nil
}

// LoadSettings returns the saved settings, or DefaultSettings when none have
// been saved. Fields missing from the file keep their defaults.
func (s *FileStore) LoadSettings(ctx context.Context) (settings Settings, err error) {
	_, span := startSpan(ctx, "store.load_settings")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	settings = DefaultSettings()
	if _, err := s.readJSON(settingsFile, &settings); err != nil {
		return DefaultSettings(), err
	}
	return settings, nil
}

// SaveSettings validates and stores settings.
func (s *FileStore) SaveSettings(ctx context.Context, settings Settings) (err error) {
	_, span := startSpan(ctx, "store.save_settings")
	defer func() { endSpan(span, err) }()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("store: invalid settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(settingsFile, settings)
}

type balanceRecord struct {
	Balance   float64   `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastBalance returns the last saved balance, or 0 when none was saved.
func (s *FileStore) LastBalance(ctx context.Context) (balance float64, err error) {
	_, span := startSpan(ctx, "store.last_balance")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec balanceRecord
	if _, err := s.readJSON(balanceFile, &rec); err != nil {
		return 0, err
	}
	return rec.Balance, nil
}

func (s *FileStore) SaveLastBalance(ctx context.Context, balance float64) (err error) {
	_, span := startSpan(ctx, "store.save_last_balance")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(balanceFile, balanceRecord{Balance: balance, UpdatedAt: s.now()})
}

// readHistory must be called with s.mu held.
func (s *FileStore) readHistory() ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if _, err := s.readJSON(historyFile, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// readJSON decodes name into v. It reports false without error when the
// file does not exist.
func (s *FileStore) readJSON(name string, v any) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("store: decode %q: %w", path, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %q: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: rename %q: %w", tmp, err)
	}
	return nil
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
