package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing the values a reasoning chain can carry.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray, and IRObject implement this.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
// Using an explicit type ensures all IRValues satisfy the sealed interface.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a finite floating point value.
// NaN and infinities are rejected at every construction and encoding boundary.
type IRFloat float64

func (IRFloat) irValue() {}

// MarshalJSON implements json.Marshaler for IRFloat using the canonical number form.
func (f IRFloat) MarshalJSON() ([]byte, error) {
	return marshalCanonicalFloat(float64(f))
}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair for ergonomic construction.
// Example: NewIRObjectFromPairs(O("offset", IRInt(4)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Clone returns a deep copy of v. Scalars are returned as-is; arrays and objects
// are copied recursively so that no step can observe another step's mutations.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	case nil:
		return IRNull{}
	default:
		return val
	}
}

// Number returns the IR form of a finite float. An integral value inside the
// int64 range is an IRInt, anything else an IRFloat. Both forms encode to the
// same canonical bytes, and the integer form is what a decoder reads back, so
// values built in memory and values read from disk behave alike.
func Number(f float64) IRValue {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return IRInt(int64(f))
	}
	return IRFloat(f)
}

// Normalize returns a deep copy of v with every finite IRFloat in its Number
// form. Non-finite floats are kept so that encoding still rejects them.
func Normalize(v IRValue) IRValue {
	switch val := v.(type) {
	case IRFloat:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return val
		}
		return Number(float64(val))
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			out[k] = Normalize(elem)
		}
		return out
	case nil:
		return IRNull{}
	default:
		return val
	}
}

// NormalizeObject is Normalize for objects.
func NormalizeObject(obj IRObject) IRObject {
	if obj == nil {
		return IRObject{}
	}
	return Normalize(obj).(IRObject)
}

// CloneObject is Clone for objects.
func CloneObject(obj IRObject) IRObject {
	if obj == nil {
		return IRObject{}
	}
	return Clone(obj).(IRObject)
}

// FromGo converts an arbitrary Go value into an IRValue.
//
// Supported inputs are IR values, nil, bool, string, all integer widths, finite
// floats, []any, map[string]any, and anything encoding/json can marshal (structs,
// typed slices and maps). Non-finite floats and unsupported values produce an
// *EncodingError.
func FromGo(v any) (IRValue, error) {
	return fromGo(v, "$")
}

func fromGo(v any, path string) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRNull, IRString, IRInt, IRBool:
		return val.(IRValue), nil
	case IRFloat:
		return floatToIR(float64(val), path)
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := fromGo(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = irElem
		}
		return out, nil
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := fromGo(elem, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = irElem
		}
		return out, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint:
		return uintToIR(uint64(val), path)
	case uint64:
		return uintToIR(val, path)
	case float32:
		return floatToIR(float64(val), path)
	case float64:
		return floatToIR(val, path)
	case json.Number:
		return numberToIR(val, path)
	case []any:
		out := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := fromGo(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = irElem
		}
		return out, nil
	case map[string]any:
		out := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := fromGo(elem, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = irElem
		}
		return out, nil
	default:
		return fromReflect(v, path)
	}
}

func uintToIR(u uint64, path string) (IRValue, error) {
	if u > math.MaxInt64 {
		return nil, newEncodingError(path, fmt.Sprintf("unsigned integer %d overflows int64", u))
	}
	return IRInt(int64(u)), nil
}

func floatToIR(f float64, path string) (IRValue, error) {
	if err := checkFinite(f, path); err != nil {
		return nil, err
	}
	return Number(f), nil
}

func checkFinite(f float64, path string) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return newEncodingError(path, fmt.Sprintf("non-finite number %v has no canonical form", f))
	}
	return nil
}

// numberToIR keeps integer literals exact and routes everything else through float64.
func numberToIR(n json.Number, path string) (IRValue, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return IRInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, newEncodingError(path, fmt.Sprintf("invalid number %q: %v", s, err))
	}
	return floatToIR(f, path)
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys (RFC 8785 ordering).
// NOTE: This is NOT the hashing form - use MarshalCanonical for content-addressed identity.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return marshalCanonicalObject(obj, "$")
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	return marshalCanonicalArray(arr, "$")
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected JSON array, got %T", v)
	}
	*arr = a
	return nil
}

// UnmarshalIRValue decodes JSON into an IRValue.
// Integer literals stay IRInt (no float64 precision loss above 2^53), other numbers
// become IRFloat, null becomes IRNull.
func UnmarshalIRValue(data []byte) (IRValue, error) {
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

// Value is a JSON-friendly holder for an IRValue field inside a struct.
// encoding/json cannot decode into an interface type, so wire structs embed Value.
type Value struct {
	IRValue
}

// V wraps an IRValue for use in wire structs.
func V(v IRValue) Value {
	return Value{IRValue: v}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IRValue == nil {
		return []byte("null"), nil
	}
	return MarshalCanonical(v.IRValue)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	val, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	v.IRValue = val
	return nil
}

// Get returns the wrapped value, substituting IRNull for a missing one.
func (v Value) Get() IRValue {
	if v.IRValue == nil {
		return IRNull{}
	}
	return v.IRValue
}
