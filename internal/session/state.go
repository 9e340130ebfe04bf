// Package session turns calculator key presses into a sequence of immutable
// State snapshots. Every transition is a pure function of the previous state;
// Machine is a small convenience wrapper that holds the current snapshot.
package session

import (
	"checkbook-calc/internal/calculator"
)

// State is one snapshot of an in-progress calculation.
type State struct {
	// Display is the raw text being edited, e.g. "5." or "-3". Never empty.
	Display string `json:"display"`
	// Expression traces the calculation, e.g. "5 + 3 = 8.00".
	Expression string `json:"expression"`
	// PreviousValue is the left operand held while an operator is pending.
	PreviousValue *float64 `json:"previousValue"`
	// Operation is the pending operator.
	Operation calculator.Operation `json:"operation"`
	// WaitingForOperand means the next digit replaces Display.
	WaitingForOperand bool   `json:"waitingForOperand"`
	Error             bool   `json:"error"`
	ErrorMessage      string `json:"errorMessage"`
}

// Initial returns the state of a freshly opened calculator.
func Initial() State {
	return State{Display: "0"}
}

// Clone returns a deep copy that shares no memory with s.
func (s State) Clone() State {
	if s.PreviousValue != nil {
		v := *s.PreviousValue
		s.PreviousValue = &v
	}
	return s
}

// Equal reports whether two snapshots hold identical values.
func (s State) Equal(o State) bool {
	return s.Display == o.Display &&
		s.Expression == o.Expression &&
		sameValue(s.PreviousValue, o.PreviousValue) &&
		s.Operation == o.Operation &&
		s.WaitingForOperand == o.WaitingForOperand &&
		s.Error == o.Error &&
		s.ErrorMessage == o.ErrorMessage
}

// DisplayValue is Display parsed as a number.
func (s State) DisplayValue() float64 {
	return calculator.GetDisplayValue(s.Display)
}

// UndoWorthy reports whether next should be recorded in undo history given
// the last recorded state prev: it must not be an error state, and its
// display, operation or previous value must differ from prev.
func UndoWorthy(prev, next State) bool {
	if next.Error {
		return false
	}
	return prev.Display != next.Display ||
		prev.Operation != next.Operation ||
		!sameValue(prev.PreviousValue, next.PreviousValue)
}

// Record is a completed calculation, produced by a successful equals press
// and handed to the history store by the caller.
type Record struct {
	Expression    string  `json:"expression"`
	Result        float64 `json:"result"`
	DisplayResult string  `json:"displayResult"`
}

func sameValue(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func valuePtr(v float64) *float64 {
	return &v
}
