package models

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind tags the dynamic type held by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a single table cell.
type Value struct {
	Kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

// NullValue returns the null cell.
func NullValue() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, s: s} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{Kind: KindInt, i: i} }

// FloatValue wraps a float. NaN is stored as null.
func FloatValue(f float64) Value {
	if math.IsNaN(f) {
		return NullValue()
	}
	return Value{Kind: KindFloat, f: f}
}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, b: b} }

// ValueOf converts a Go value as returned by database/sql drivers.
func ValueOf(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case string:
		return StringValue(x)
	case []byte:
		return StringValue(string(x))
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(int64(x))
	case int8:
		return IntValue(int64(x))
	case int16:
		return IntValue(int64(x))
	case int32:
		return IntValue(int64(x))
	case int64:
		return IntValue(x)
	case uint8:
		return IntValue(int64(x))
	case uint16:
		return IntValue(int64(x))
	case uint32:
		return IntValue(int64(x))
	case uint64:
		if x > math.MaxInt64 {
			return FloatValue(float64(x))
		}
		return IntValue(int64(x))
	case float32:
		return FloatValue(float64(x))
	case float64:
		return FloatValue(x)
	case fmt.Stringer:
		return StringValue(x.String())
	default:
		return StringValue(fmt.Sprint(x))
	}
}

// IsNull reports whether the cell is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Str returns the string payload; ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.s, v.Kind == KindString }

// Int returns the integer payload; ok is false for other kinds.
func (v Value) Int() (int64, bool) { return v.i, v.Kind == KindInt }

// Float returns the float payload; ok is false for other kinds.
func (v Value) Float() (float64, bool) { return v.f, v.Kind == KindFloat }

// Bool returns the boolean payload; ok is false for other kinds.
func (v Value) Bool() (bool, bool) { return v.b, v.Kind == KindBool }

// Interface returns the payload as a plain Go value, nil for null.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// Key returns a string that is unique per (kind, payload), for grouping.
func (v Value) Key() string {
	return v.Kind.String() + ":" + v.String()
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	default:
		return "None"
	}
}
