// Package value is a small JSON-value sum type used to walk YAML and JSON
// documents fetched from repositories. Decoded documents are converted once
// with From and then inspected through Lookup or a Visitor, never through
// raw map[string]any assertions.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is one of Object, Array or Scalar.
type Value interface {
	sealed()
}

// Object is a mapping node.
type Object map[string]Value

// Array is a sequence node.
type Array []Value

// Scalar is a leaf: string, bool, number or nil.
type Scalar struct {
	V any
}

func (Object) sealed() {}
func (Array) sealed()  {}
func (Scalar) sealed() {}

// Null is the nil scalar.
var Null = Scalar{}

// From converts decoded JSON/YAML data into a Value. Mapping keys that are not
// strings are formatted with %v.
func From(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case map[string]any:
		o := make(Object, len(x))
		for k, e := range x {
			o[k] = From(e)
		}
		return o
	case map[any]any:
		o := make(Object, len(x))
		for k, e := range x {
			o[fmt.Sprint(k)] = From(e)
		}
		return o
	case []any:
		a := make(Array, len(x))
		for i, e := range x {
			a[i] = From(e)
		}
		return a
	case []map[string]any:
		a := make(Array, len(x))
		for i, e := range x {
			a[i] = From(e)
		}
		return a
	case []string:
		a := make(Array, len(x))
		for i, e := range x {
			a[i] = Scalar{V: e}
		}
		return a
	default:
		return Scalar{V: x}
	}
}

// Native converts a Value back into plain Go data suitable for encoding.
func Native(v Value) any {
	switch x := v.(type) {
	case Object:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = Native(e)
		}
		return m
	case Array:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = Native(e)
		}
		return s
	case Scalar:
		return x.V
	default:
		return nil
	}
}

// Get returns the child at key.
func (o Object) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// Keys returns the object keys in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup follows a dotted path through objects. Numeric segments index into
// arrays, and -1 addresses the last element.
func Lookup(v Value, path string) (Value, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case Object:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return nil, false
			}
			if i < 0 {
				i += len(node)
			}
			if i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the scalar string at path.
func String(v Value, path string) (string, bool) {
	found, ok := Lookup(v, path)
	if !ok {
		return "", false
	}
	s, ok := found.(Scalar)
	if !ok {
		return "", false
	}
	str, ok := s.V.(string)
	return str, ok
}

// Truthy follows the usual dynamic-language rules: nil, false, zero, empty
// string and empty containers are false.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case Object:
		return len(x) > 0
	case Array:
		return len(x) > 0
	case Scalar:
		switch s := x.V.(type) {
		case nil:
			return false
		case bool:
			return s
		case string:
			return s != ""
		default:
			f, ok := Number(x)
			return !ok || f != 0
		}
	default:
		return false
	}
}

// Number returns the numeric value of a scalar, accepting every integer and
// float kind that the JSON and YAML decoders produce.
func Number(s Scalar) (float64, bool) {
	switch n := s.V.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
