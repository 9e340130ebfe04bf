package desk

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"checkbook-calc/internal/calculator"
)

// ErrUnknownKey is returned for key names ParseKey does not recognise.
var ErrUnknownKey = errors.New("desk: unknown key")

// KeyKind identifies a calculator button.
type KeyKind int

const (
	KeyDigit KeyKind = iota
	KeyDecimal
	KeyNegate
	KeyOperator
	KeyEquals
	KeyBackspace
	KeyClear
	KeyAllClear
	KeyUndo
	KeyRedo
	KeyRecover
)

// Key is one button press.
type Key struct {
	Kind  KeyKind
	Digit string               // KeyDigit only
	Op    calculator.Operation // KeyOperator only
}

func (k Key) String() string {
	switch k.Kind {
	case KeyDigit:
		return k.Digit
	case KeyDecimal:
		return "."
	case KeyNegate:
		return "neg"
	case KeyOperator:
		return k.Op.Symbol()
	case KeyEquals:
		return "="
	case KeyBackspace:
		return "back"
	case KeyClear:
		return "C"
	case KeyAllClear:
		return "AC"
	case KeyUndo:
		return "undo"
	case KeyRedo:
		return "redo"
	case KeyRecover:
		return "recover"
	}
	return fmt.Sprintf("Key(%d)", k.Kind)
}

var namedKeys = map[string]Key{
	".":         {Kind: KeyDecimal},
	",":         {Kind: KeyDecimal},
	"neg":       {Kind: KeyNegate},
	"negate":    {Kind: KeyNegate},
	"+/-":       {Kind: KeyNegate},
	"±":         {Kind: KeyNegate},
	"=":         {Kind: KeyEquals},
	"equals":    {Kind: KeyEquals},
	"enter":     {Kind: KeyEquals},
	"back":      {Kind: KeyBackspace},
	"backspace": {Kind: KeyBackspace},
	"⌫":         {Kind: KeyBackspace},
	"c":         {Kind: KeyClear},
	"clear":     {Kind: KeyClear},
	"ac":        {Kind: KeyAllClear},
	"allclear":  {Kind: KeyAllClear},
	"esc":       {Kind: KeyAllClear},
	"undo":      {Kind: KeyUndo},
	"redo":      {Kind: KeyRedo},
	"recover":   {Kind: KeyRecover},
}

// ParseKey maps a key name to a Key. Digits, operator names and glyphs
// ("+", "-", "*", "x", "×", "/", "÷", "add", ...) and the names in
// namedKeys are accepted, case-insensitively.
func ParseKey(name string) (Key, error) {
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		return Key{Kind: KeyDigit, Digit: name}, nil
	}

	lower := strings.ToLower(strings.TrimSpace(name))
	if k, ok := namedKeys[lower]; ok {
		return k, nil
	}
	if op, err := calculator.ParseOperation(lower); err == nil && op != calculator.OpNone {
		return Key{Kind: KeyOperator, Op: op}, nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}

// ParseKeys parses every name, stopping at the first unknown one.
func ParseKeys(names []string) ([]Key, error) {
	keys := make([]Key, 0, len(names))
	for _, name := range names {
		k, err := ParseKey(name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// ParseSequence reads a typed key sequence such as "12.5 x 4 =" or
// "100-25.50=". Words that name a key ("undo", "AC", "neg") are taken
// whole; anything else is read one character at a time.
func ParseSequence(input string) ([]Key, error) {
	var keys []Key
	for _, word := range strings.Fields(input) {
		if len([]rune(word)) > 1 {
			if k, err := ParseKey(word); err == nil {
				keys = append(keys, k)
				continue
			}
		}
		for _, r := range word {
			if unicode.IsSpace(r) {
				continue
			}
			k, err := ParseKey(string(r))
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
	}
	return keys, nil
}
