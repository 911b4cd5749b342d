package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf8"
)

// ErrUnsupportedValue is returned when a Go value has no JSON-like representation.
var ErrUnsupportedValue = errors.New("unsupported value")

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON-like value: null, bool, number, string, list or map.
// The zero Value is null. Numbers keep their decimal literal so 42 stays 42.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents, or the number literal
	list []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a number value for an integer.
func Int(i int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(i, 10)} }

// Number returns a number value from a JSON number literal.
func Number(n json.Number) (Value, error) {
	if _, err := strconv.ParseFloat(string(n), 64); err != nil || !json.Valid([]byte(n)) {
		return Value{}, fmt.Errorf("%w: invalid number %q", ErrUnsupportedValue, string(n))
	}
	return Value{kind: KindNumber, s: string(n)}, nil
}

// List returns a list value holding copies of items.
func List(items ...Value) Value {
	l := make([]Value, len(items))
	for i, it := range items {
		l[i] = it.Clone()
	}
	return Value{kind: KindList, list: l}
}

// Map returns a map value holding copies of m.
func Map(m map[string]Value) Value {
	c := make(map[string]Value, len(m))
	for k, v := range m {
		c[k] = v.Clone()
	}
	return Value{kind: KindMap, m: c}
}

// ValueOf converts a Go value into a Value. It accepts what encoding/json
// produces when decoding into any, plain Go scalars, slices, string-keyed
// maps and Values.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v.Clone(), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		return Number(v)
	case float64:
		return floatValue(v)
	case float32:
		return floatValue(float64(v))
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Value{kind: KindNumber, s: strconv.FormatUint(uint64(v), 10)}, nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		return Value{kind: KindNumber, s: strconv.FormatUint(v, 10)}, nil
	case []any:
		l := make([]Value, len(v))
		for i, it := range v {
			iv, err := ValueOf(it)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			l[i] = iv
		}
		return Value{kind: KindList, list: l}, nil
	case []Value:
		return List(v...), nil
	case []string:
		l := make([]Value, len(v))
		for i, s := range v {
			l[i] = String(s)
		}
		return Value{kind: KindList, list: l}, nil
	case map[string]any:
		m := make(map[string]Value, len(v))
		for k, it := range v {
			iv, err := ValueOf(it)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = iv
		}
		return Value{kind: KindMap, m: m}, nil
	case map[string]Value:
		return Map(v), nil
	case map[string]string:
		m := make(map[string]Value, len(v))
		for k, s := range v {
			m[k] = String(s)
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedValue, reflect.TypeOf(x))
	}
}

func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %v is not representable in JSON", ErrUnsupportedValue, f)
	}
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}, nil
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string contents when v is a string.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// BoolValue returns the boolean when v is a bool.
func (v Value) BoolValue() (bool, bool) {
	return v.b, v.kind == KindBool
}

// NumberValue returns the number literal when v is a number.
func (v Value) NumberValue() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

// Items returns a copy of the list elements when v is a list.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return List(v.list...).list, true
}

// Fields returns a copy of the map entries when v is a map.
func (v Value) Fields() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return Map(v.m).m, true
}

// Get returns the entry for key when v is a map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	e, ok := v.m[key]
	return e.Clone(), ok
}

// Len returns the number of elements of a list or map, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Interface converts v back into plain Go values: nil, bool, json.Number,
// string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.s)
	case KindString:
		return v.s
	case KindList:
		l := make([]any, len(v.list))
		for i, it := range v.list {
			l[i] = it.Interface()
		}
		return l
	case KindMap:
		m := make(map[string]any, len(v.m))
		for k, it := range v.m {
			m[k] = it.Interface()
		}
		return m
	}
	return nil
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		l := make([]Value, len(v.list))
		for i, it := range v.list {
			l[i] = it.Clone()
		}
		return Value{kind: KindList, list: l}
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, it := range v.m {
			m[k] = it.Clone()
		}
		return Value{kind: KindMap, m: m}
	}
	return v
}

// Equal reports whether v and o hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber, KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, a := range v.m {
			b, ok := o.m[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Text returns the raw contents of a string value and the canonical JSON
// encoding of every other kind.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.s
	}
	b, _ := v.MarshalJSON()
	return string(b)
}

// String implements fmt.Stringer with the canonical JSON encoding.
func (v Value) String() string {
	b, _ := v.MarshalJSON()
	return string(b)
}

// MarshalJSON encodes v as canonical JSON: sorted map keys, no
// insignificant whitespace, no HTML escaping. Strings and keys must be
// valid UTF-8.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.s)
	case KindString:
		return encodeString(buf, v.s)
	case KindList:
		buf.WriteByte('[')
		for i, it := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.m[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedValue, v.kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	// encoding/json would replace invalid bytes with U+FFFD.
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: invalid UTF-8 in %q", ErrUnsupportedValue, s)
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates each value with a newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	parsed, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes a JSON document into a Value.
func ParseValue(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

// MustParseValue is like ParseValue but panics on error. Intended for tests
// and package-level literals.
func MustParseValue(s string) Value {
	v, err := ParseValue([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}
