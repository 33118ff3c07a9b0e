// Package codec converts between wire payloads and the structured values
// the ledger works with.
//
// A Value is one of: nil, bool, string, Number, []Value or *Object.
// Numbers keep their decimal literal so amounts survive a round trip
// through either wire format without float rounding.
package codec

import (
	"encoding/json"
	"strconv"
)

// Value is a decoded wire value.
type Value = any

// Number is a decimal literal such as "5.75" or "417".
type Number string

// Int returns a Number holding an integer.
func Int(i int64) Number {
	return Number(strconv.FormatInt(i, 10))
}

// IsInteger reports whether the literal fits an int64 with no fraction or exponent.
func (n Number) IsInteger() bool {
	_, err := strconv.ParseInt(string(n), 10, 64)
	return err == nil
}

// Valid reports whether the literal is a JSON number. Magnitude is not
// checked, so "1e400" is valid even though it overflows a float64.
func (n Number) Valid() bool {
	if n == "" {
		return false
	}
	if c := n[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	if c := n[len(n)-1]; c < '0' || c > '9' {
		return false
	}
	return json.Valid([]byte(n))
}

func (n Number) String() string {
	return string(n)
}

// Object is a mapping that remembers key insertion order.
// Setting an existing key replaces its value in place.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set stores v under key and returns the object for chaining.
func (o *Object) Set(key string, v Value) *Object {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	return o
}

// Get returns the value for key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key exists, even if its value is nil.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Delete removes key, keeping the order of the remaining keys.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns a shallow copy.
func (o *Object) Clone() *Object {
	c := NewObject()
	if o == nil {
		return c
	}
	for _, k := range o.keys {
		c.Set(k, o.values[k])
	}
	return c
}

// Equal reports whether a and b hold the same value. Object key order is significant.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case []Value:
		bv, ok := b.([]Value)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, k := range av.keys {
			if bv.keys[i] != k || !Equal(av.values[k], bv.values[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Text renders a scalar as plain text: strings as-is, numbers as their
// literal, booleans as true/false, nil as "". Composite values render as JSON.
func Text(v Value) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case Number:
		return string(tv)
	case bool:
		return strconv.FormatBool(tv)
	default:
		b, err := encodeJSON(tv)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// normalize maps Go numeric types callers commonly pass onto Number.
func normalize(v Value) (Value, bool) {
	switch tv := v.(type) {
	case nil, bool, string, Number, []Value, *Object:
		return v, true
	case int:
		return Int(int64(tv)), true
	case int64:
		return Int(tv), true
	case float64:
		return Number(strconv.FormatFloat(tv, 'f', -1, 64)), true
	case json.Number:
		return Number(tv), true
	default:
		return nil, false
	}
}
