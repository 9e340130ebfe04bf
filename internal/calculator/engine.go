package calculator

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxValue is the largest magnitude a result may have.
	MaxValue = 999999999.99

	// MaxDisplayLength is the longest numeric string shown before truncation.
	MaxDisplayLength = 15

	// Ellipsis is appended to truncated display strings.
	Ellipsis = "…"

	// DefaultCurrencySymbol is the ledger currency prefix.
	DefaultCurrencySymbol = "$"

	// ledgerDecimals is the fixed precision of history expressions.
	ledgerDecimals = 2
)

// Calculate applies op to first and second, rounds to the mode's precision
// and range-checks the rounded value. OpNone yields (0, nil).
//
// Failures are returned as *Error and the result is always 0 alongside them.
func Calculate(first float64, op Operation, second float64, mode Mode) (result float64, err error) {
	if op == OpNone {
		return 0, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = 0, ErrComputationFailed
		}
	}()

	var raw float64
	switch op {
	case OpAdd:
		raw = first + second
	case OpSubtract:
		raw = first - second
	case OpMultiply:
		raw = first * second
	case OpDivide:
		if second == 0 {
			return 0, ErrDivideByZero
		}
		raw = first / second
	default:
		return 0, ErrComputationFailed
	}

	if math.IsNaN(raw) {
		return 0, ErrComputationFailed
	}
	if math.IsInf(raw, 0) {
		return 0, ErrResultTooLarge
	}

	rounded := RoundToMode(raw, mode)
	if math.Abs(rounded) > MaxValue {
		return 0, ErrResultTooLarge
	}

	return rounded, nil
}

// RoundToMode rounds value to the mode's decimal places, halves away from
// zero. Rounding works on the shortest decimal form of value, so 3.145
// rounds to 3.15 even though its binary form is slightly below it.
func RoundToMode(value float64, mode Mode) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	rounded, _ := decimal.NewFromFloat(value).Round(int32(mode.Decimals())).Float64()
	if rounded == 0 {
		// Avoid surfacing -0.
		return 0
	}
	return rounded
}

// FormatForDisplay renders value fixed to the mode's decimal places.
// Strings longer than MaxDisplayLength are cut and suffixed with Ellipsis.
// The currency symbol is only applied in Checkbook mode.
func FormatForDisplay(value float64, mode Mode, currencySymbol string) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}

	s := fixed(value, mode.Decimals())
	if len(s) > MaxDisplayLength {
		s = s[:MaxDisplayLength] + Ellipsis
	}

	if currencySymbol != "" && mode == Checkbook {
		s = currencySymbol + s
	}
	return s
}

// FormatExpression renders a ledger line such as "$5.00 + $3.00". It always
// uses two decimals regardless of calculator mode. second is only rendered
// when op is set and second is non-nil.
func FormatExpression(first float64, op Operation, second *float64, currencySymbol string) string {
	var b strings.Builder
	b.WriteString(currencySymbol)
	b.WriteString(fixed(first, ledgerDecimals))

	if op != OpNone && second != nil {
		b.WriteString(" ")
		b.WriteString(op.Symbol())
		b.WriteString(" ")
		b.WriteString(currencySymbol)
		b.WriteString(fixed(*second, ledgerDecimals))
	}
	return b.String()
}

// IsValidNumber reports whether s parses to a finite number.
func IsValidNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// GetDisplayValue parses display text. Empty input, a lone "-" and anything
// unparseable or non-finite yield 0. A truncated display ("…" suffix) parses
// as its visible digits; truncation only ever cuts fraction digits because
// MaxValue fits in MaxDisplayLength.
func GetDisplayValue(display string) float64 {
	display = strings.TrimSuffix(strings.TrimSpace(display), Ellipsis)
	if display == "" || display == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(display, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// IsInteger reports whether value is finite and has no fractional part.
func IsInteger(value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return value == math.Trunc(value)
}

// DecimalPlaces counts the digits after the decimal point in the shortest
// representation of value. 1.5e-7 has 8.
func DecimalPlaces(value float64) int {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	s := strconv.FormatFloat(value, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")

	fraction := 0
	if _, frac, ok := strings.Cut(mantissa, "."); ok {
		fraction = len(frac)
	}

	shift, err := strconv.Atoi(exp)
	if err != nil {
		return fraction
	}

	places := fraction - shift
	if places < 0 {
		return 0
	}
	return places
}

func fixed(value float64, places int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	s := decimal.NewFromFloat(value).StringFixed(int32(places))
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		return s[1:]
	}
	return s
}
