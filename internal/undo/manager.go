// Package undo keeps a bounded, linear history of calculator snapshots.
// Recording a new snapshot after stepping back discards the redo branch.
package undo

import (
	"checkbook-calc/internal/session"
)

// DefaultMaxSize is the number of snapshots kept when no size is configured.
const DefaultMaxSize = 20

// Feedback describes the most recent undo or redo for display.
type Feedback struct {
	Message string `json:"message"`
	IsUndo  bool   `json:"isUndo"`
	// Seq increases with every feedback the manager produces.
	Seq uint64 `json:"seq"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSize bounds the number of kept snapshots. Values below 1 are ignored.
func WithMaxSize(n int) Option {
	return func(m *Manager) {
		if n >= 1 {
			m.maxSize = n
		}
	}
}

// Manager is the undo/redo stack. It records exactly what it is given; the
// caller decides which states are worth recording (see session.UndoWorthy).
// It is not safe for concurrent use.
type Manager struct {
	stack    []session.State
	index    int
	maxSize  int
	feedback *Feedback
	seq      uint64
}

// NewManager returns a Manager seeded with initial.
func NewManager(initial session.State, opts ...Option) *Manager {
	m := &Manager{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(m)
	}
	m.stack = []session.State{initial.Clone()}
	return m
}

// Push records s after the current position, dropping any redo entries.
// When the stack exceeds its bound the oldest snapshot is evicted.
func (m *Manager) Push(s session.State) {
	m.stack = append(m.stack[:m.index+1], s.Clone())
	m.index = len(m.stack) - 1

	if len(m.stack) > m.maxSize {
		n := copy(m.stack, m.stack[1:])
		m.stack = m.stack[:n]
		m.index = m.maxSize - 1
	}
}

// Undo steps back one snapshot and passes it to restore. It reports false
// and does not call restore when there is nothing to undo.
func (m *Manager) Undo(restore func(session.State)) bool {
	if !m.CanUndo() {
		return false
	}
	m.index--
	target := m.stack[m.index]

	restore(target.Clone())
	m.setFeedback("Undo: "+target.Operation.Verb()+" "+target.Display, true)
	return true
}

// Redo steps forward one snapshot and passes it to restore. It reports false
// and does not call restore when there is nothing to redo.
func (m *Manager) Redo(restore func(session.State)) bool {
	if !m.CanRedo() {
		return false
	}
	m.index++
	target := m.stack[m.index]

	restore(target.Clone())
	m.setFeedback("Redo: "+target.Display, false)
	return true
}

func (m *Manager) CanUndo() bool { return m.index > 0 }

func (m *Manager) CanRedo() bool { return m.index < len(m.stack)-1 }

// Clear resets the stack to the single snapshot initial and drops feedback.
func (m *Manager) Clear(initial session.State) {
	m.stack = []session.State{initial.Clone()}
	m.index = 0
	m.feedback = nil
}

// Feedback returns the current feedback, if any.
func (m *Manager) Feedback() (Feedback, bool) {
	if m.feedback == nil {
		return Feedback{}, false
	}
	return *m.feedback, true
}

// ClearFeedback drops the current feedback. Calling it repeatedly is harmless.
func (m *Manager) ClearFeedback() {
	m.feedback = nil
}

// ClearFeedbackIf drops the feedback only if it is still the one numbered
// seq, so a dismiss timer cannot hide feedback produced after it was armed.
func (m *Manager) ClearFeedbackIf(seq uint64) bool {
	if m.feedback == nil || m.feedback.Seq != seq {
		return false
	}
	m.feedback = nil
	return true
}

// Len is the number of stored snapshots.
func (m *Manager) Len() int { return len(m.stack) }

// Index is the position of the current snapshot.
func (m *Manager) Index() int { return m.index }

// Current returns a copy of the snapshot at the current position.
func (m *Manager) Current() session.State { return m.stack[m.index].Clone() }

func (m *Manager) setFeedback(msg string, isUndo bool) {
	m.seq++
	m.feedback = &Feedback{Message: msg, IsUndo: isUndo, Seq: m.seq}
}
