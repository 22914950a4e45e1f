// Package jsonval provides tolerant access to loosely-typed JSON documents.
// The speech service varies property casing between API versions and renders
// numeric fields as integers, floats, or decimals, so every read goes through
// fallible accessors that coerce where safe and report absence otherwise.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value wraps one node of a decoded JSON document. The zero Value behaves
// like an absent field: every accessor reports not-ok.
type Value struct {
	v any
}

// Parse decodes a JSON document. Numbers are kept as json.Number so integer,
// float, and decimal renderings survive untouched until accessed.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, fmt.Errorf("decode json: %w", err)
	}
	return Value{v: v}, nil
}

// Field looks up an object member by name. The exact name wins; when it is
// missing, the first case-insensitive match is used (the service has been
// observed to flip between offsetInTicks and OffsetInTicks). Returns the zero
// Value when the node is not an object or no key matches.
func (v Value) Field(name string) Value {
	m, ok := v.v.(map[string]any)
	if !ok {
		return Value{}
	}
	if val, ok := m[name]; ok {
		return Value{v: val}
	}
	for k, val := range m {
		if strings.EqualFold(k, name) {
			return Value{v: val}
		}
	}
	return Value{}
}

// AsString returns the node as a string. Non-string kinds report not-ok.
func (v Value) AsString() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

// AsNumber returns the node's raw JSON number.
func (v Value) AsNumber() (json.Number, bool) {
	n, ok := v.v.(json.Number)
	return n, ok
}

// AsInt64 coerces a JSON number to int64. Integer, float, and decimal
// renderings of the same value (42, 42.0, 42.0000) all coerce to 42;
// fractional parts truncate.
func (v Value) AsInt64() (int64, bool) {
	n, ok := v.v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// AsFloat64 coerces a JSON number to float64.
func (v Value) AsFloat64() (float64, bool) {
	n, ok := v.v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsBool returns the node as a bool.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.v.(bool)
	return b, ok
}

// AsArray returns the node's elements wrapped as Values.
func (v Value) AsArray() ([]Value, bool) {
	raw, ok := v.v.([]any)
	if !ok {
		return nil, false
	}
	vals := make([]Value, len(raw))
	for i, e := range raw {
		vals[i] = Value{v: e}
	}
	return vals, true
}

// AsObject returns the node's members wrapped as Values.
func (v Value) AsObject() (map[string]Value, bool) {
	raw, ok := v.v.(map[string]any)
	if !ok {
		return nil, false
	}
	vals := make(map[string]Value, len(raw))
	for k, e := range raw {
		vals[k] = Value{v: e}
	}
	return vals, true
}

// IsNull reports whether the node is JSON null or absent entirely.
func (v Value) IsNull() bool {
	return v.v == nil
}
