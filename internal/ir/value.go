package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface for every value that crosses the dispatch
// boundary: operation arguments, results, and event payloads.
// Only Null, String, Int, Float, Bool, Array and Object implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is the JSON null value. Void operations return Null.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text value.
type String string

func (String) irValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) irValue() {}

// Float is a floating point value.
// NaN and infinities are rejected at serialization boundaries.
type Float float64

func (Float) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// Pair is a key-value pair for typed Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is a shorthand for Pair.
// Example: NewObject(O("track", Int(1)), O("count", Int(2)))
func O(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject creates an Object from key-value pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order
// for characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// AsFloat returns the numeric value of an Int or Float.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// TypeName returns a short name for the dynamic type of v, used in
// shape errors and event payloads.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case Null:
		return "null"
	case String:
		return "text"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Clone returns a deep copy of v. Scalars are returned as-is; arrays and
// objects are copied recursively so the copy shares no backing storage.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		if val == nil {
			return Object(nil)
		}
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// CloneArray deep-copies an argument list.
func CloneArray(arr []Value) Array {
	out := make(Array, len(arr))
	for i, v := range arr {
		out[i] = Clone(v)
	}
	return out
}

// Equal reports structural equality. Int and Float never compare equal
// to each other, even when numerically identical.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// FromGo converts a native Go value into a Value.
// Accepts Value, nil, string, bool, all int widths, float32/float64,
// json.Number, []any, []Value and map[string]any.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return numberValue(string(val))
	case []Value:
		return Array(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Value back into plain Go values (nil, string, bool,
// int64, float64, []any, map[string]any).
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// numberValue parses a JSON number literal. Literals with a fraction or
// exponent become Float; all others must fit in int64.
func numberValue(s string) (Value, error) {
	if strings.ContainsAny(s, ".eE") {
		var f float64
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", s, err)
		}
		return Float(f), nil
	}
	n, err := json.Number(s).Int64()
	if err != nil {
		return nil, fmt.Errorf("number out of int64 range: %s", s)
	}
	return Int(n), nil
}

// UnmarshalValue decodes JSON into a Value. Numbers keep their lexical
// kind: 2 decodes as Int, 2.0 as Float.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return FromGo(raw)
}

// UnmarshalArgs decodes a JSON array into an argument list.
func UnmarshalArgs(data []byte) (Array, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON array, got %s", TypeName(v))
	}
	return arr, nil
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Object:
		*obj = val
		return nil
	case Null:
		*obj = nil
		return nil
	default:
		return fmt.Errorf("expected JSON object, got %s", TypeName(v))
	}
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Array:
		*arr = val
		return nil
	case Null:
		*arr = nil
		return nil
	default:
		return fmt.Errorf("expected JSON array, got %s", TypeName(v))
	}
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

// MarshalJSON implements json.Marshaler for Float so integral floats keep
// their fractional marker through encoding/json.
func (f Float) MarshalJSON() ([]byte, error) {
	return marshalCanonicalFloat(float64(f))
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	return MarshalCanonical(v)
}

// Validate reports whether v can be serialized: no nil entries and no
// NaN or infinite floats anywhere in the tree.
func Validate(v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("nil value")
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return fmt.Errorf("non-finite float %v", float64(val))
		}
	case Array:
		for i, elem := range val {
			if err := Validate(elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
	case Object:
		for _, k := range val.SortedKeys() {
			if err := Validate(val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
	}
	return nil
}
