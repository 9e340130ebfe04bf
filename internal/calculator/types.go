package calculator

import (
	"errors"
	"fmt"
	"strings"
)

// Operation is a pending binary operator. The zero value means no operation.
type Operation int

const (
	OpNone Operation = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

// Symbol returns the glyph shown on keys and in expressions.
func (op Operation) Symbol() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "×"
	case OpDivide:
		return "÷"
	default:
		return ""
	}
}

// Verb describes the operation in past tense, used for undo feedback.
func (op Operation) Verb() string {
	switch op {
	case OpAdd:
		return "added"
	case OpSubtract:
		return "subtracted"
	case OpMultiply:
		return "multiplied by"
	case OpDivide:
		return "divided by"
	default:
		return "changed to"
	}
}

// String returns the wire name ("add", "subtract", ...) or "" for OpNone.
func (op Operation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	default:
		return ""
	}
}

func (op Operation) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

func (op *Operation) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*op = OpNone
		return nil
	}
	parsed, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// ParseOperation accepts wire names, presentation glyphs and the ASCII
// keyboard forms "*" and "/".
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "+":
		return OpAdd, nil
	case "subtract", "-", "−":
		return OpSubtract, nil
	case "multiply", "×", "*", "x":
		return OpMultiply, nil
	case "divide", "÷", "/":
		return OpDivide, nil
	}
	return OpNone, fmt.Errorf("unknown operation %q", s)
}

// Mode selects rounding precision and currency display.
type Mode int

const (
	Checkbook Mode = iota
	Scientific
)

// Decimals returns the number of decimal places the mode rounds to.
func (m Mode) Decimals() int {
	if m == Scientific {
		return 8
	}
	return 2
}

func (m Mode) String() string {
	if m == Scientific {
		return "scientific"
	}
	return "checkbook"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode parses "checkbook" or "scientific". An empty string is Checkbook.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "checkbook":
		return Checkbook, nil
	case "scientific":
		return Scientific, nil
	}
	return Checkbook, fmt.Errorf("unknown calculator mode %q", s)
}

// Code classifies engine failures.
type Code int

const (
	DivideByZero Code = iota + 1
	ResultTooLarge
	ComputationFailed
)

func (c Code) String() string {
	switch c {
	case DivideByZero:
		return "divide_by_zero"
	case ResultTooLarge:
		return "result_too_large"
	case ComputationFailed:
		return "computation_failed"
	default:
		return "unknown"
	}
}

// Error is returned by Calculate. Its message is written for end users.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same Code, so errors.Is works against the
// package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrDivideByZero = &Error{
		Code:    DivideByZero,
		Message: "Cannot divide by zero. Press C to start fresh or undo.",
	}
	ErrResultTooLarge = &Error{
		Code:    ResultTooLarge,
		Message: "Result too large. The maximum value is 999,999,999.99. Press C to start fresh or undo.",
	}
	ErrComputationFailed = &Error{
		Code:    ComputationFailed,
		Message: "Calculation failed. Please restart the calculator.",
	}
)

// ---------------------------------------------------------------------------
// HTTP request / response bodies
// ---------------------------------------------------------------------------

// CalcRequest is the JSON body for binary operations (add, subtract, multiply, divide).
type CalcRequest struct {
	A    float64 `json:"a"`
	B    float64 `json:"b"`
	Mode Mode    `json:"mode"`
	// CurrencySymbol prefixes the ledger line; empty means "$".
	CurrencySymbol string `json:"currency_symbol"`
}

func (r CalcRequest) currency() string {
	if r.CurrencySymbol == "" {
		return DefaultCurrencySymbol
	}
	return r.CurrencySymbol
}

// CalcResponse is the JSON response for the binary operation endpoints.
type CalcResponse struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	Mode      Mode    `json:"mode"`
	Result    float64 `json:"result"`
	Display   string  `json:"display"`
	Ledger    string  `json:"ledger"`
}

// ChainStep describes a single step in a chained calculation.
type ChainStep struct {
	Op    Operation `json:"op"`    // "add", "subtract", "multiply", "divide"
	Value float64   `json:"value"` // the operand applied with the running total
}

// ChainRequest is the JSON body for POST /calculator/chain.
type ChainRequest struct {
	Initial        float64     `json:"initial"` // starting value
	Steps          []ChainStep `json:"steps"`
	Mode           Mode        `json:"mode"`
	CurrencySymbol string      `json:"currency_symbol"`
}

func (r ChainRequest) currency() string {
	if r.CurrencySymbol == "" {
		return DefaultCurrencySymbol
	}
	return r.CurrencySymbol
}

// ChainResponse is the JSON response for POST /calculator/chain.
type ChainResponse struct {
	Initial float64       `json:"initial"`
	Steps   []ChainResult `json:"steps"`
	Result  float64       `json:"result"`
	Display string        `json:"display"`
}

// ChainResult records one executed step.
type ChainResult struct {
	Op     Operation `json:"op"`
	Value  float64   `json:"value"`
	Result float64   `json:"result"`
	Ledger string    `json:"ledger"`
}

// ModeInfo describes one mode's rounding rules for GET /calculator/modes.
type ModeInfo struct {
	Mode     Mode    `json:"mode"`
	Decimals int     `json:"decimals"`
	Currency bool    `json:"currency"`
	MaxValue float64 `json:"max_value"`
	Example  string  `json:"example"`
}
