package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the concrete type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
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
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged-variant representation of a graph property value.
// Graph properties are dynamically typed at the source; every component
// that touches properties switches on Kind instead of reflecting on
// interface{} payloads.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

// Properties is a property map keyed by property name.
type Properties map[string]Value

// Constructors

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Int(i int64) Value            { return Value{kind: KindInt, i: i} }
func Float(f float64) Value        { return Value{kind: KindFloat, f: f} }
func String(s string) Value        { return Value{kind: KindString, s: s} }
func List(vs []Value) Value        { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Typed accessors. Each returns the zero value when the Kind does not match.

func (v Value) BoolVal() bool            { return v.b }
func (v Value) IntVal() int64            { return v.i }
func (v Value) FloatVal() float64        { return v.f }
func (v Value) StringVal() string        { return v.s }
func (v Value) ListVal() []Value         { return v.list }
func (v Value) MapVal() map[string]Value { return v.m }

// FromAny converts a dynamically typed value, as produced by the Neo4j
// driver or encoding/json, into a Value. Unrecognized types degrade to
// their string form rather than failing, because one odd property must
// not abort a whole export.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return String(t.String())
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = FromAny(e)
		}
		return List(list)
	case []string:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = String(e)
		}
		return List(list)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value back to the dynamically typed form the driver
// expects as a query parameter.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON writes the native JSON form of the variant.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON reads a JSON value, preserving the int/float distinction
// that a plain interface{} decode would lose.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := decodeRaw(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func decodeRaw(data []byte) (Value, error) {
	trimmed := firstByte(data)
	switch trimmed {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return Value{}, err
		}
		list := make([]Value, len(raw))
		for i, r := range raw {
			e, err := decodeRaw(r)
			if err != nil {
				return Value{}, err
			}
			list[i] = e
		}
		return List(list), nil
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, len(raw))
		for k, r := range raw {
			e, err := decodeRaw(r)
			if err != nil {
				return Value{}, err
			}
			m[k] = e
		}
		return Map(m), nil
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return Value{}, err
		}
		if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := num.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	}
}

func firstByte(data []byte) byte {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}

// FromAnyMap converts a driver property map into Properties.
func FromAnyMap(m map[string]any) Properties {
	if m == nil {
		return Properties{}
	}
	out := make(Properties, len(m))
	for k, x := range m {
		out[k] = FromAny(x)
	}
	return out
}

// ToAnyMap converts Properties into the parameter form the driver expects.
func (p Properties) ToAnyMap() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.ToAny()
	}
	return out
}
