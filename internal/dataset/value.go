package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// Value is a single field: a number, a piece of text, or missing.
// Missing is distinct from empty text and from zero.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsMissing() bool { return v.kind == KindMissing }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsText() bool { return v.kind == KindText }
func (v Value) Num() float64 { return v.num }
func (v Value) RawText() string { return v.text }

// IsBlank reports whether the value is missing or whitespace-only text.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindMissing:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	}
	return false
}

// String renders the value for display and frequency keys. Missing renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	}
	return ""
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindText:
		return v.text == o.text
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*v = Missing()
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*v = Text(str)
	case s == "true" || s == "false":
		*v = Text(s)
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("unsupported field value %s", s)
		}
		*v = Number(f)
	}
	return nil
}
