package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed identity computation.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped), no \u escaping of non-ASCII
//  3. Strings are NFC normalized
//  4. Floats use the ES6 shortest round-trip form; NaN and Inf are rejected
//
// Every failure is returned as an *EncodingError.
func MarshalCanonical(v any) ([]byte, error) {
	irv, err := FromGo(v)
	if err != nil {
		return nil, err
	}
	return marshalCanonicalValue(irv, "$")
}

// MustMarshalCanonical is like MarshalCanonical but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMarshalCanonical(v any) []byte {
	b, err := MarshalCanonical(v)
	if err != nil {
		panic(err)
	}
	return b
}

func marshalCanonicalValue(v IRValue, path string) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return marshalCanonicalString(string(val), path)
	case IRInt:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case IRFloat:
		b, err := marshalCanonicalFloat(float64(val))
		if err != nil {
			return nil, newEncodingError(path, err.Error())
		}
		return b, nil
	case IRBool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case IRArray:
		return marshalCanonicalArray(val, path)
	case IRObject:
		return marshalCanonicalObject(val, path)
	default:
		return nil, newEncodingError(path, fmt.Sprintf("unsupported IR type %T", v))
	}
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// RFC 8785: only the quote, backslash and control characters (U+0000-U+001F)
// are escaped; everything else, U+2028/U+2029 included, is written as UTF-8.
func marshalCanonicalString(s, path string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, newEncodingError(path, "string is not valid UTF-8")
	}
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	buf.Grow(len(normalized) + 2)
	buf.WriteByte('"')
	for _, r := range normalized {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return buf.Bytes(), nil
}

// marshalCanonicalFloat renders a finite float in the RFC 8785 number form.
func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v has no canonical form", f)
	}
	if f == 0 {
		// -0 and 0 serialize identically
		return []byte("0"), nil
	}
	// jcs canonicalizes whole documents; wrap the number in an array and unwrap it.
	doc := []byte("[" + strconv.FormatFloat(f, 'g', -1, 64) + "]")
	out, err := jcs.Transform(doc)
	if err != nil {
		return nil, fmt.Errorf("canonicalize number %v: %w", f, err)
	}
	return bytes.TrimSuffix(bytes.TrimPrefix(out, []byte("[")), []byte("]")), nil
}

// marshalCanonicalArray marshals an array to canonical JSON.
func marshalCanonicalArray(arr IRArray, path string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonicalValue(elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalCanonicalObject marshals an object to canonical JSON with RFC 8785 key ordering.
// Keys are NFC-normalized before sorting; two keys that normalize to the same
// name have no canonical form.
func marshalCanonicalObject(obj IRObject, path string) ([]byte, error) {
	type member struct{ name, key string }
	members := make([]member, 0, len(obj))
	seen := make(map[string]string, len(obj))
	for k := range obj {
		if !utf8.ValidString(k) {
			return nil, newEncodingError(path, "object key is not valid UTF-8")
		}
		name := norm.NFC.String(k)
		if other, dup := seen[name]; dup {
			return nil, newEncodingError(path, fmt.Sprintf("object keys %q and %q collide on %q after normalization", other, k, name))
		}
		seen[name] = k
		members = append(members, member{name: name, key: k})
	}

	// CRITICAL: RFC 8785 UTF-16 code unit ordering, over the names as written
	slices.SortFunc(members, func(a, b member) int { return compareKeysRFC8785(a.name, b.name) })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(m.name, path)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonicalValue(obj[m.key], path+"."+m.name)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// fromReflect handles values that are not covered by FromGo's fast paths:
// named scalar kinds, typed slices and maps, pointers, and structs.
func fromReflect(v any, path string) (IRValue, error) {
	rv := reflect.ValueOf(v)
	if rv.Type().Implements(jsonMarshalerType) {
		return fromJSON(v, path)
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		return fromGo(rv.Elem().Interface(), path)
	case reflect.String:
		return IRString(rv.String()), nil
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IRInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintToIR(rv.Uint(), path)
	case reflect.Float32, reflect.Float64:
		return floatToIR(rv.Float(), path)
	case reflect.Slice:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// encoding/json renders []byte as base64 text
			return fromJSON(v, path)
		}
		fallthrough
	case reflect.Array:
		out := make(IRArray, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := fromGo(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		out := make(IRObject, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := canonicalMapKey(iter.Key(), path)
			if err != nil {
				return nil, err
			}
			if _, dup := out[key]; dup {
				return nil, newEncodingError(path, fmt.Sprintf("map keys collide on %q after canonicalization", key))
			}
			elem, err := fromGo(iter.Value().Interface(), path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = elem
		}
		return out, nil
	case reflect.Struct:
		return fromJSON(v, path)
	default:
		return nil, newEncodingError(path, fmt.Sprintf("unsupported type %T", v))
	}
}

// canonicalMapKey renders a map key as an object member name.
// Keys without a total canonical ordering (NaN, booleans, composites) are fatal.
func canonicalMapKey(k reflect.Value, path string) (string, error) {
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return "", newEncodingError(path, "nil map key")
		}
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		b, err := marshalCanonicalFloat(k.Float())
		if err != nil {
			return "", newEncodingError(path, "map key "+err.Error())
		}
		return string(b), nil
	default:
		return "", newEncodingError(path, fmt.Sprintf("map key of type %s has no canonical ordering", k.Type()))
	}
}

// fromJSON round-trips v through encoding/json, keeping integers exact.
func fromJSON(v any, path string) (IRValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, newEncodingError(path, err.Error())
	}
	irv, err := UnmarshalIRValue(data)
	if err != nil {
		return nil, newEncodingError(path, err.Error())
	}
	return irv, nil
}
