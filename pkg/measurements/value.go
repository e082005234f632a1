package measurements

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is an optional measurement reading. The zero Value is absent.
// Absent means the source never reported the field; a present Value always
// holds a finite number once it came through FromFloat.
type Value struct {
	v  float64
	ok bool
}

// Some returns a present value.
func Some(v float64) Value {
	return Value{v: v, ok: true}
}

// None returns an absent value.
func None() Value {
	return Value{}
}

// FromFloat converts a decoded number into a Value, mapping NaN and
// infinities to absent. Parsers use it so that invalid sentinels never
// reach the merge step.
func FromFloat(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None()
	}
	return Some(v)
}

// FromPtr converts a nullable float into a Value.
func FromPtr(p *float64) Value {
	if p == nil {
		return None()
	}
	return FromFloat(*p)
}

// Get returns the number and whether it is present.
func (v Value) Get() (float64, bool) {
	return v.v, v.ok
}

// IsSet reports whether the value is present.
func (v Value) IsSet() bool {
	return v.ok
}

// IsNaN reports a present value holding NaN, which is never a valid input.
func (v Value) IsNaN() bool {
	return v.ok && math.IsNaN(v.v)
}

// Or returns the value or def when absent.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

// Ptr returns a pointer copy of the value, or nil when absent.
func (v Value) Ptr() *float64 {
	if !v.ok {
		return nil
	}
	f := v.v
	return &f
}

// String renders the value, or an empty string when absent.
func (v Value) String() string {
	if !v.ok {
		return ""
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// MarshalJSON encodes absent values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

// UnmarshalJSON decodes null as absent.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = None()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// MarshalYAML encodes absent values as null.
func (v Value) MarshalYAML() (any, error) {
	if !v.ok {
		return nil, nil
	}
	return v.v, nil
}

// UnmarshalYAML decodes null, ~ and empty scalars as absent.
func (v *Value) UnmarshalYAML(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch s {
	case "", "null", "~", "Null", "NULL":
		*v = None()
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*v = Some(f)
	return nil
}
