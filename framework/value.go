package framework

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind enumerates the closed set of parameter value shapes.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a tool parameter value. The zero value is the empty string.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	flag bool
	list []string
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: KindInt, num: i} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{kind: KindFloat, flt: f} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// ListValue wraps a list of strings. The slice is copied.
func ListValue(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Kind reports which variant is active.
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string payload when the value is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer payload. Floats with no fractional part convert.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.num, true
	case KindFloat:
		if v.flt == float64(int64(v.flt)) {
			return int64(v.flt), true
		}
	}
	return 0, false
}

// AsFloat returns the numeric payload as a float.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.flt, true
	case KindInt:
		return float64(v.num), true
	}
	return 0, false
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// AsList returns a copy of the list payload.
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Text renders the value the way a tool would consume it as plain text.
// Lists are joined with ", ".
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return v.str
	}
}

// String implements fmt.Stringer.
func (v Value) String() string { return v.Text() }

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt
	case KindBool:
		return v.flag == o.flag
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return v.str == o.str
	}
}

// MarshalJSON encodes the value as its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.num)
	case KindFloat:
		return json.Marshal(v.flt)
	case KindBool:
		return json.Marshal(v.flag)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON decodes any JSON scalar or string array into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueOf converts a loosely typed Go value (as produced by JSON or YAML
// decoding) into a Value.
func ValueOf(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return StringValue(""), nil
	case Value:
		return t, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t)), nil
		}
		return FloatValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case []string:
		return ListValue(t), nil
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, fmt.Sprint(item))
		}
		return ListValue(items), nil
	default:
		return Value{}, fmt.Errorf("unsupported parameter value %T", raw)
	}
}

// Params is the decoded argument bag for a single tool invocation.
type Params map[string]Value

// ParamsFromMap converts loosely typed input into Params.
func ParamsFromMap(raw map[string]interface{}) (Params, error) {
	out := make(Params, len(raw))
	for k, v := range raw {
		val, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the textual form of key or an empty string.
func (p Params) String(key string) string {
	if v, ok := p[key]; ok {
		return v.Text()
	}
	return ""
}

// Bool returns the boolean at key, accepting textual booleans, or def.
func (p Params) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(v.Text())); err == nil {
		return b
	}
	return def
}

// Int returns the integer at key or def.
func (p Params) Int(key string, def int64) int64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	if i, ok := v.AsInt(); ok {
		return i
	}
	if i, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 64); err == nil {
		return i
	}
	return def
}

// List returns the list at key. A string value yields a single-item list.
func (p Params) List(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	if l, ok := v.AsList(); ok {
		return l
	}
	if s := v.Text(); s != "" {
		return []string{s}
	}
	return nil
}

// Keys returns the sorted parameter names.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Interface converts the params into plain Go values for JSON or logging.
func (p Params) Interface() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		switch v.Kind() {
		case KindInt:
			out[k], _ = v.AsInt()
		case KindFloat:
			out[k], _ = v.AsFloat()
		case KindBool:
			out[k], _ = v.AsBool()
		case KindList:
			out[k], _ = v.AsList()
		default:
			out[k] = v.Text()
		}
	}
	return out
}
