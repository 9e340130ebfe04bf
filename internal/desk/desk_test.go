package desk

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"checkbook-calc/internal/calculator"
	"checkbook-calc/internal/observability"
	"checkbook-calc/internal/store"
)

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore("/data", store.WithFs(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return st
}

func newTestDesk(t *testing.T, opts ...Option) (*Desk, *store.FileStore) {
	t.Helper()
	st := newTestStore(t)
	d := New(context.Background(), st, opts...)
	t.Cleanup(d.Close)
	return d, st
}

func pressSeq(t *testing.T, d *Desk, seq string) View {
	t.Helper()
	keys, err := ParseSequence(seq)
	if err != nil {
		t.Fatalf("parsing %q: %v", seq, err)
	}
	v := d.View()
	for _, k := range keys {
		if v, err = d.Press(context.Background(), k); err != nil {
			t.Fatalf("pressing %s: %v", k, err)
		}
	}
	return v
}

// failingStore fails every call.
type failingStore struct{}

var errDisk = errors.New("disk on fire")

func (failingStore) SaveHistoryEntry(context.Context, string, float64, string) (store.HistoryEntry, error) {
	return store.HistoryEntry{}, errDisk
}
func (failingStore) DeleteHistoryEntry(context.Context, string) error { return errDisk }
func (failingStore) PurgeOlderThan(context.Context, int) (int, error) { return 0, errDisk }
func (failingStore) History(context.Context) ([]store.HistoryEntry, error) { return nil, errDisk }
func (failingStore) HistoryEntry(context.Context, string) (store.HistoryEntry, error) {
	return store.HistoryEntry{}, errDisk
}
func (failingStore) LoadSettings(context.Context) (store.Settings, error) {
	return store.Settings{}, errDisk
}
func (failingStore) SaveSettings(context.Context, store.Settings) error { return errDisk }
func (failingStore) LastBalance(context.Context) (float64, error) { return 0, errDisk }
func (failingStore) SaveLastBalance(context.Context, float64) error { return errDisk }

func TestNewUsesStoredSettings(t *testing.T) {
	st := newTestStore(t)
	s := store.DefaultSettings()
	s.Mode = calculator.Scientific
	if err := st.SaveSettings(context.Background(), s); err != nil {
		t.Fatalf("saving settings: %v", err)
	}

	d := New(context.Background(), st)
	defer d.Close()

	if got := pressSeq(t, d, "10/3="); got.State.Display != "3.33333333" {
		t.Fatalf("expected scientific result, got %q", got.State.Display)
	}
}

func TestEqualsPersistsHistoryAndBalance(t *testing.T) {
	d, st := newTestDesk(t)

	v := pressSeq(t, d, "5+3=")
	if v.Recorded == nil || v.Recorded.Expression != "$5.00 + $3.00" {
		t.Fatalf("expected a recorded calculation, got %+v", v.Recorded)
	}

	d.Flush()

	entries, err := st.History(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 stored entry, got %v, %v", entries, err)
	}
	if entries[0].DisplayResult != "$8.00" || entries[0].Result != 8 {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	if got := d.LastBalance(context.Background()); got != 8 {
		t.Fatalf("expected last balance 8, got %v", got)
	}
}

func TestPersistenceKeepsOrder(t *testing.T) {
	d, _ := newTestDesk(t)

	for _, seq := range []string{"1+1=", "2+2=", "3+3="} {
		pressSeq(t, d, seq)
	}
	d.Flush()

	entries := d.History(context.Background())
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []float64{6, 4, 2}
	for i, e := range entries {
		if e.Result != want[i] {
			t.Fatalf("entry %d: expected %v, got %v", i, want[i], e.Result)
		}
	}
}

func TestUndoRestoresPreviousStates(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "12+3")

	v := d.Undo(ctx)
	if v.State.Display != "12" || v.State.Operation != calculator.OpAdd {
		t.Fatalf("expected pending 12 +, got %+v", v.State)
	}
	if v.Feedback == nil || v.Feedback.Message != "Undo: added 12" {
		t.Fatalf("unexpected feedback %+v", v.Feedback)
	}
	if !v.CanRedo {
		t.Fatal("expected redo to be available")
	}

	v = d.Redo(ctx)
	if v.State.Display != "3" {
		t.Fatalf("expected 3 after redo, got %q", v.State.Display)
	}
	if v.Feedback == nil || v.Feedback.Message != "Redo: 3" {
		t.Fatalf("unexpected feedback %+v", v.Feedback)
	}
}

func TestUndoSkipsNonUndoWorthyStates(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "5")
	// Decimal on "5" changes the display, a second decimal does not.
	pressSeq(t, d, "..")

	d.Undo(ctx)
	v := d.View()
	if v.State.Display != "5" {
		t.Fatalf("expected one undo to reach 5, got %q", v.State.Display)
	}
}

func TestErrorStatesAreNotRecorded(t *testing.T) {
	d, _ := newTestDesk(t)

	v := pressSeq(t, d, "5/0=")
	if !v.State.Error {
		t.Fatal("expected error state")
	}

	v = d.Undo(context.Background())
	if v.State.Error {
		t.Fatal("undo should leave the error state")
	}
	if v.State.Display != "5" || v.State.Operation != calculator.OpDivide {
		t.Fatalf("expected 5 ÷ pending after undo, got %+v", v.State)
	}
}

func TestRecoverFromError(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "5/0=")
	v := d.RecoverFromError(ctx)

	if v.State.Error {
		t.Fatal("expected recovery")
	}
	if v.State.PreviousValue == nil || *v.State.PreviousValue != 5 || v.State.Operation != calculator.OpDivide {
		t.Fatalf("expected pending 5 ÷ restored, got %+v", v.State)
	}

	v = pressSeq(t, d, "2=")
	if v.State.Display != "2.50" {
		t.Fatalf("expected 2.50 after recovery, got %q", v.State.Display)
	}
}

func TestRecoverOutsideErrorIsNoop(t *testing.T) {
	d, _ := newTestDesk(t)
	before := pressSeq(t, d, "42")

	after := d.RecoverFromError(context.Background())
	if !after.State.Equal(before.State) || after.Feedback != nil {
		t.Fatalf("expected no change, got %+v", after)
	}
}

func TestAllClearCanBeUndone(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "7*6")
	d.AllClear(ctx)

	v := d.Undo(ctx)
	if v.State.Display != "6" || v.State.Operation != calculator.OpMultiply {
		t.Fatalf("expected 7 × 6 pending, got %+v", v.State)
	}
}

func TestSelectHistoryEntry(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "100-25.5=")
	d.Flush()
	entries := d.History(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	pressSeq(t, d, "AC 2*")
	v := d.SelectHistoryEntry(ctx, entries[0])
	if v.State.Display != "74.50" {
		t.Fatalf("expected 74.50, got %q", v.State.Display)
	}

	v = d.Equals(ctx)
	if v.State.Display != "149.00" {
		t.Fatalf("expected 149.00, got %q", v.State.Display)
	}
}

func TestModeChangeResetsSessionAndHistory(t *testing.T) {
	d, st := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "5+3")

	s := store.DefaultSettings()
	s.Mode = calculator.Scientific
	if err := d.UpdateSettings(ctx, s); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	v := d.View()
	if v.State.Display != "0" || v.CanUndo || v.CanRedo {
		t.Fatalf("expected a fresh session, got %+v", v)
	}
	if v.Mode != calculator.Scientific {
		t.Fatalf("expected scientific mode, got %v", v.Mode)
	}

	saved, _ := st.LoadSettings(ctx)
	if saved.Mode != calculator.Scientific {
		t.Fatal("settings should have been saved")
	}
}

func TestCurrencyChangeKeepsSession(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "5+3")
	s := store.DefaultSettings()
	s.CurrencySymbol = "€"
	d.ApplySettings(ctx, s)

	v := pressSeq(t, d, "=")
	if v.State.Display != "8.00" {
		t.Fatalf("expected 8.00, got %q", v.State.Display)
	}
	if v.Recorded == nil || v.Recorded.Expression != "€5.00 + €3.00" {
		t.Fatalf("expected euro ledger line, got %+v", v.Recorded)
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	d, _ := newTestDesk(t)

	s := store.DefaultSettings()
	s.RetentionDays = 1
	if err := d.UpdateSettings(context.Background(), s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestFeedbackDismissTimer(t *testing.T) {
	d, _ := newTestDesk(t, WithFeedbackDismiss(10*time.Millisecond))

	pressSeq(t, d, "12")
	if v := d.Undo(context.Background()); v.Feedback == nil {
		t.Fatal("expected feedback right after undo")
	}

	deadline := time.Now().Add(time.Second)
	for d.View().Feedback != nil {
		if time.Now().After(deadline) {
			t.Fatal("feedback was not dismissed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUndoDepth(t *testing.T) {
	d, _ := newTestDesk(t, WithUndoDepth(3))
	ctx := context.Background()

	pressSeq(t, d, "12345")

	undos := 0
	for d.View().CanUndo {
		d.Undo(ctx)
		undos++
	}
	if undos != 2 {
		t.Fatalf("expected 2 undos with depth 3, got %d", undos)
	}
	if got := d.View().State.Display; got != "123" {
		t.Fatalf("expected oldest kept state 123, got %q", got)
	}
}

func TestStoreFailuresDegrade(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := observability.Logger
	observability.Logger = zap.New(core)
	t.Cleanup(func() { observability.Logger = prev })

	d := New(context.Background(), failingStore{})
	defer d.Close()
	ctx := context.Background()

	if d.Settings() != store.DefaultSettings() {
		t.Fatalf("expected default settings, got %+v", d.Settings())
	}

	v := pressSeq(t, d, "5+3=")
	if v.State.Display != "8.00" {
		t.Fatalf("calculation should succeed despite the store, got %q", v.State.Display)
	}
	d.Flush()

	if h := d.History(ctx); len(h) != 0 {
		t.Fatalf("expected empty history, got %v", h)
	}
	if b := d.LastBalance(ctx); b != 0 {
		t.Fatalf("expected zero balance, got %v", b)
	}
	if n, _, err := d.PurgeHistory(ctx, 30); n != 0 || !errors.Is(err, errDisk) {
		t.Fatalf("expected nothing purged and the store error, got %d, %v", n, err)
	}

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	joined := strings.Join(messages, "\n")
	for _, want := range []string{"loading settings failed", "saving history entry failed", "saving last balance failed", "purging history failed"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected warning %q, got:\n%s", want, joined)
		}
	}
}

func TestEventsAfterCloseStillPersist(t *testing.T) {
	st := newTestStore(t)
	d := New(context.Background(), st)
	d.Close()
	d.Close()

	pressSeq(t, d, "2*2=")
	entries, _ := st.History(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected synchronous save after close, got %d entries", len(entries))
	}
}

func TestInvalidDigit(t *testing.T) {
	d, _ := newTestDesk(t)

	if _, err := d.Digit(context.Background(), "12"); err == nil {
		t.Fatal("expected error for multi-character digit")
	}
}

func TestUpdateSettingsReturnsSaveFailure(t *testing.T) {
	d := New(context.Background(), failingStore{})
	defer d.Close()

	s := store.DefaultSettings()
	s.Mode = calculator.Scientific
	if err := d.UpdateSettings(context.Background(), s); !errors.Is(err, errDisk) {
		t.Fatalf("expected the store error, got %v", err)
	}
	if d.View().Mode != calculator.Scientific {
		t.Fatal("settings should apply even when saving fails")
	}
}

func TestPurgeHistoryUsesStoredRetention(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	pressSeq(t, d, "1+1=")
	d.Flush()

	removed, days, err := d.PurgeHistory(ctx, 0)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if days != 30 || removed != 0 {
		t.Fatalf("expected default retention 30 and nothing removed, got %d days, %d removed", days, removed)
	}
	if len(d.History(ctx)) != 1 {
		t.Fatal("fresh entries must survive the purge")
	}
}

func TestFlushWhileEventsArrive(t *testing.T) {
	d, _ := newTestDesk(t)
	ctx := context.Background()

	keys, err := ParseSequence("1+1=")
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	const presses = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < presses; i++ {
			for _, k := range keys {
				if _, err := d.Press(ctx, k); err != nil {
					t.Errorf("pressing %s: %v", k, err)
					return
				}
			}
		}
	}()
	for i := 0; i < presses; i++ {
		d.Flush()
	}
	<-done
	d.Flush()

	if got := len(d.History(ctx)); got != presses {
		t.Fatalf("expected %d entries, got %d", presses, got)
	}
}
