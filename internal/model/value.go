package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a single parameter value: either a scalar or a fixed-length
// bracket vector. The zero Value is the scalar 0. Values are immutable;
// Bracket copies on the way in and out.
type Value struct {
	scalar  float64
	bracket []float64
}

// Scalar returns a scalar Value.
func Scalar(f float64) Value {
	return Value{scalar: f}
}

// Bracket returns a bracket Value holding a copy of vs.
func Bracket(vs []float64) Value {
	b := make([]float64, len(vs))
	copy(b, vs)
	return Value{bracket: b}
}

// IsBracket reports whether the value is a bracket vector.
func (v Value) IsBracket() bool {
	return v.bracket != nil
}

// Len returns the element count: 1 for scalars, the vector length for brackets.
func (v Value) Len() int {
	if v.bracket != nil {
		return len(v.bracket)
	}
	return 1
}

// Scalar returns the scalar value. For brackets it returns the first element.
func (v Value) Scalar() float64 {
	if v.bracket != nil {
		if len(v.bracket) == 0 {
			return 0
		}
		return v.bracket[0]
	}
	return v.scalar
}

// Bracket returns a copy of the bracket elements, or nil for scalars.
func (v Value) Bracket() []float64 {
	if v.bracket == nil {
		return nil
	}
	b := make([]float64, len(v.bracket))
	copy(b, v.bracket)
	return b
}

// Map returns a new Value with f applied to every element.
func (v Value) Map(f func(float64) float64) Value {
	if v.bracket == nil {
		return Value{scalar: f(v.scalar)}
	}
	b := make([]float64, len(v.bracket))
	for i, e := range v.bracket {
		b[i] = f(e)
	}
	return Value{bracket: b}
}

// Equal reports whether two values have the same shape and elements.
func (v Value) Equal(o Value) bool {
	if (v.bracket == nil) != (o.bracket == nil) {
		return false
	}
	if v.bracket == nil {
		return v.scalar == o.scalar
	}
	if len(v.bracket) != len(o.bracket) {
		return false
	}
	for i := range v.bracket {
		if v.bracket[i] != o.bracket[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	if v.bracket == nil {
		return formatFloat(v.scalar)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range v.bracket {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatFloat(e))
	}
	sb.WriteByte(']')
	return sb.String()
}

// MarshalJSON emits a bare number for scalars and an array for brackets.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.bracket != nil {
		return json.Marshal(v.bracket)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts a bare number or an array of numbers.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var vs []float64
		if err := json.Unmarshal(b, &vs); err != nil {
			return err
		}
		*v = Value{bracket: vs}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Value{scalar: f}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
