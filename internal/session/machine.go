package session

import (
	"errors"
	"fmt"

	"checkbook-calc/internal/calculator"
)

// ErrInvalidDigit is returned for digit presses outside "0".."9".
var ErrInvalidDigit = errors.New("session: digit must be a single character 0-9")

// Machine holds the current State of one calculator together with the
// mode and currency its transitions use. It is not safe for concurrent use.
type Machine struct {
	state          State
	mode           calculator.Mode
	currencySymbol string
}

// NewMachine returns a Machine in the initial state.
func NewMachine(mode calculator.Mode, currencySymbol string) *Machine {
	return &Machine{
		state:          Initial(),
		mode:           mode,
		currencySymbol: currencySymbol,
	}
}

// State returns a copy of the current snapshot.
func (m *Machine) State() State { return m.state.Clone() }

func (m *Machine) Mode() calculator.Mode { return m.mode }

func (m *Machine) CurrencySymbol() string { return m.currencySymbol }

// SetMode changes rounding precision for subsequent calculations.
func (m *Machine) SetMode(mode calculator.Mode) { m.mode = mode }

func (m *Machine) SetCurrencySymbol(symbol string) { m.currencySymbol = symbol }

func (m *Machine) Digit(d string) (State, error) {
	if !isDigit(d) {
		return m.State(), fmt.Errorf("%w: %q", ErrInvalidDigit, d)
	}
	return m.apply(Digit(m.state, d)), nil
}

func (m *Machine) Decimal() State { return m.apply(Decimal(m.state)) }

func (m *Machine) Negate() State { return m.apply(Negate(m.state)) }

func (m *Machine) Operator(op calculator.Operation) State {
	return m.apply(Operator(m.state, op, m.mode))
}

// Equals resolves the pending operation and returns the ledger record of a
// successful calculation, or nil.
func (m *Machine) Equals() (State, *Record) {
	next, rec := Equals(m.state, m.mode, m.currencySymbol)
	return m.apply(next), rec
}

func (m *Machine) Backspace() State { return m.apply(Backspace(m.state)) }

func (m *Machine) Clear() State { return m.apply(Clear(m.state)) }

func (m *Machine) AllClear() State { return m.apply(AllClear(m.state)) }

func (m *Machine) SelectResult(result float64) State {
	return m.apply(SelectResult(m.state, result, m.mode))
}

// Restore replaces the current state wholesale. No validation is done.
func (m *Machine) Restore(snapshot State) State {
	return m.apply(snapshot)
}

func (m *Machine) apply(next State) State {
	m.state = next.Clone()
	return m.State()
}
