package undo

import (
	"testing"

	"checkbook-calc/internal/calculator"
	"checkbook-calc/internal/session"
)

func display(d string) session.State {
	return session.State{Display: d}
}

// restoreInto returns a restore callback that records what it was given.
func restoreInto(dst *session.State) func(session.State) {
	return func(s session.State) { *dst = s }
}

func TestNewManager(t *testing.T) {
	m := NewManager(session.Initial())

	if m.CanUndo() || m.CanRedo() {
		t.Fatal("a new manager has nothing to undo or redo")
	}
	if m.Len() != 1 || m.Index() != 0 {
		t.Fatalf("expected one snapshot at index 0, got len %d index %d", m.Len(), m.Index())
	}
	if _, ok := m.Feedback(); ok {
		t.Fatal("a new manager has no feedback")
	}
}

func TestPushAfterUndoDiscardsRedoBranch(t *testing.T) {
	m := NewManager(session.Initial())
	m.Push(display("A"))
	m.Push(display("B"))

	var got session.State
	if !m.Undo(restoreInto(&got)) {
		t.Fatal("expected undo to succeed")
	}
	if got.Display != "A" {
		t.Fatalf("expected A, got %q", got.Display)
	}

	m.Push(display("C"))
	if m.CanRedo() {
		t.Fatal("B should have been discarded")
	}
	if !m.CanUndo() {
		t.Fatal("A should still be available")
	}
	if m.Current().Display != "C" {
		t.Fatalf("expected current C, got %q", m.Current().Display)
	}
}

func TestUndoRedo(t *testing.T) {
	m := NewManager(session.Initial())
	m.Push(display("1"))
	m.Push(display("12"))

	var got session.State
	m.Undo(restoreInto(&got))
	m.Undo(restoreInto(&got))
	if got.Display != "0" {
		t.Fatalf("expected initial display 0, got %q", got.Display)
	}
	if m.Undo(restoreInto(&got)) {
		t.Fatal("undo past the first snapshot should fail")
	}

	m.Redo(restoreInto(&got))
	m.Redo(restoreInto(&got))
	if got.Display != "12" {
		t.Fatalf("expected 12, got %q", got.Display)
	}
	if m.Redo(restoreInto(&got)) {
		t.Fatal("redo past the last snapshot should fail")
	}
}

func TestStackBound(t *testing.T) {
	m := NewManager(session.Initial())
	for i := 0; i < 25; i++ {
		m.Push(display(string(rune('a' + i))))
	}

	if m.Len() != DefaultMaxSize {
		t.Fatalf("expected %d snapshots, got %d", DefaultMaxSize, m.Len())
	}

	undos := 0
	for m.CanUndo() {
		if !m.Undo(func(session.State) {}) {
			t.Fatal("CanUndo was true but Undo failed")
		}
		undos++
	}
	if undos > DefaultMaxSize {
		t.Fatalf("expected at most %d undos, got %d", DefaultMaxSize, undos)
	}
	if got := m.Current().Display; got != "f" {
		t.Fatalf("expected oldest kept snapshot f, got %q", got)
	}
}

func TestWithMaxSize(t *testing.T) {
	m := NewManager(session.Initial(), WithMaxSize(3))
	for _, d := range []string{"1", "2", "3", "4"} {
		m.Push(display(d))
	}
	if m.Len() != 3 || m.Index() != 2 {
		t.Fatalf("expected len 3 index 2, got len %d index %d", m.Len(), m.Index())
	}

	ignored := NewManager(session.Initial(), WithMaxSize(0))
	if ignored.maxSize != DefaultMaxSize {
		t.Fatalf("non-positive size should be ignored, got %d", ignored.maxSize)
	}
}

func TestFeedbackMessages(t *testing.T) {
	five := 5.0
	m := NewManager(session.Initial())
	m.Push(session.State{Display: "5"})
	m.Push(session.State{Display: "5", PreviousValue: &five, Operation: calculator.OpAdd})
	m.Push(session.State{Display: "3", PreviousValue: &five, Operation: calculator.OpAdd})

	m.Undo(func(session.State) {})
	fb, ok := m.Feedback()
	if !ok || !fb.IsUndo || fb.Message != "Undo: added 5" {
		t.Fatalf("unexpected undo feedback %+v", fb)
	}

	m.Redo(func(session.State) {})
	fb, ok = m.Feedback()
	if !ok || fb.IsUndo || fb.Message != "Redo: 3" {
		t.Fatalf("unexpected redo feedback %+v", fb)
	}
}

func TestClearFeedbackIfIgnoresStaleSeq(t *testing.T) {
	m := NewManager(session.Initial())
	m.Push(display("1"))
	m.Push(display("2"))

	m.Undo(func(session.State) {})
	first, _ := m.Feedback()
	m.Undo(func(session.State) {})
	second, _ := m.Feedback()

	if second.Seq <= first.Seq {
		t.Fatalf("expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}
	if m.ClearFeedbackIf(first.Seq) {
		t.Fatal("stale seq should not clear newer feedback")
	}
	if !m.ClearFeedbackIf(second.Seq) {
		t.Fatal("current seq should clear feedback")
	}
	if _, ok := m.Feedback(); ok {
		t.Fatal("feedback should be gone")
	}

	m.ClearFeedback()
	m.ClearFeedback()
}

func TestClear(t *testing.T) {
	m := NewManager(session.Initial())
	m.Push(display("1"))
	m.Undo(func(session.State) {})

	m.Clear(display("9"))
	if m.CanUndo() || m.CanRedo() || m.Len() != 1 {
		t.Fatal("clear should leave a single snapshot")
	}
	if _, ok := m.Feedback(); ok {
		t.Fatal("clear should drop feedback")
	}
	if m.Current().Display != "9" {
		t.Fatalf("expected 9, got %q", m.Current().Display)
	}
}

func TestSnapshotsAreCopied(t *testing.T) {
	v := 1.0
	s := session.State{Display: "1", PreviousValue: &v}
	m := NewManager(session.Initial())
	m.Push(s)

	v = 2
	if got := m.Current(); *got.PreviousValue != 1 {
		t.Fatalf("stored snapshot aliased the caller's value: %v", *got.PreviousValue)
	}
}
