package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"checkbook-calc/internal/calculator"
)

// Digit handles a press of d, which must be a single character "0".."9".
// Any other input leaves the state unchanged.
func Digit(s State, d string) State {
	if !isDigit(d) {
		return s
	}

	if s.Error {
		next := Initial()
		next.Display = d
		return next
	}

	if s.WaitingForOperand {
		s.Display = d
		s.WaitingForOperand = false
		return s
	}

	candidate := s.Display + d
	if s.Display == "0" {
		candidate = d
	}
	if math.Abs(calculator.GetDisplayValue(candidate)) > calculator.MaxValue {
		return s
	}
	s.Display = candidate
	return s
}

// Decimal handles a press of the decimal point. A second point in the same
// operand is ignored.
func Decimal(s State) State {
	if s.Error {
		next := Initial()
		next.Display = "0."
		return next
	}

	if s.WaitingForOperand {
		s.Display = "0."
		s.WaitingForOperand = false
		return s
	}

	if strings.Contains(s.Display, ".") {
		return s
	}
	s.Display += "."
	return s
}

// Negate flips the sign of the displayed value. Zero stays "0".
func Negate(s State) State {
	if s.Error {
		return s
	}

	v := -s.DisplayValue()
	if v == 0 {
		s.Display = "0"
		return s
	}
	s.Display = strconv.FormatFloat(v, 'f', -1, 64)
	return s
}

// Operator handles a press of op. When an operator is already pending and a
// second operand has been typed, the pending calculation is evaluated first,
// so chains fold strictly left to right.
func Operator(s State, op calculator.Operation, mode calculator.Mode) State {
	if s.Error || op == calculator.OpNone {
		return s
	}

	if s.PreviousValue != nil && s.Operation != calculator.OpNone && !s.WaitingForOperand {
		result, err := calculator.Calculate(*s.PreviousValue, s.Operation, s.DisplayValue(), mode)
		if err != nil {
			return failed(s, err)
		}

		formatted := calculator.FormatForDisplay(result, mode, "")
		s.Display = formatted
		s.Expression = formatted + " " + op.Symbol()
		s.PreviousValue = valuePtr(result)
		s.Operation = op
		s.WaitingForOperand = true
		s.Error = false
		s.ErrorMessage = ""
		return s
	}

	s.PreviousValue = valuePtr(s.DisplayValue())
	s.Expression = s.Display + " " + op.Symbol()
	s.Operation = op
	s.WaitingForOperand = true
	return s
}

// Equals resolves the pending operation. On success it also returns the
// ledger Record for the completed calculation; the record is nil when
// nothing was calculated or the calculation failed.
func Equals(s State, mode calculator.Mode, currencySymbol string) (State, *Record) {
	if s.Error || s.Operation == calculator.OpNone || s.PreviousValue == nil {
		return s, nil
	}

	first := *s.PreviousValue
	second := s.DisplayValue()

	result, err := calculator.Calculate(first, s.Operation, second, mode)
	if err != nil {
		s = failed(s, err)
		s.WaitingForOperand = true
		return s, nil
	}

	rec := &Record{
		Expression:    calculator.FormatExpression(first, s.Operation, &second, currencySymbol),
		Result:        result,
		DisplayResult: calculator.FormatForDisplay(result, mode, currencySymbol),
	}

	formatted := calculator.FormatForDisplay(result, mode, "")
	s.Expression = fmt.Sprintf("%s %s = %s", s.Expression, s.Display, formatted)
	s.Display = formatted
	s.PreviousValue = valuePtr(result)
	s.Operation = calculator.OpNone
	s.WaitingForOperand = true
	return s, rec
}

// Backspace removes the last character of an operand being typed.
func Backspace(s State) State {
	if s.Error || s.WaitingForOperand {
		return s
	}

	display := s.Display
	if len(display) > 0 {
		display = display[:len(display)-1]
	}
	if display == "" || display == "-" {
		display = "0"
	}
	s.Display = display
	return s
}

// Clear discards only the operand being typed; the pending operation and
// expression survive.
func Clear(s State) State {
	s.Display = "0"
	s.WaitingForOperand = true
	s.Error = false
	s.ErrorMessage = ""
	return s
}

// AllClear resets to the initial state.
func AllClear(State) State {
	return Initial()
}

// SelectResult puts a past result on the display so it can be used as the
// next operand. A pending operation is kept.
func SelectResult(s State, result float64, mode calculator.Mode) State {
	s.Display = calculator.FormatForDisplay(result, mode, "")
	s.WaitingForOperand = true
	s.Error = false
	s.ErrorMessage = ""
	return s
}

// failed moves s into the error state with the engine's message.
func failed(s State, err error) State {
	s.Display = "0"
	s.Expression = ""
	s.Error = true
	s.ErrorMessage = err.Error()
	return s
}

func isDigit(d string) bool {
	return len(d) == 1 && d[0] >= '0' && d[0] <= '9'
}
