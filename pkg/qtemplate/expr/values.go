package expr

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// List is the value of a [...] collection literal.
type List []any

// Tuple is the value of a (...) collection literal.
type Tuple []any

// Context maps names to the values and widgets in scope for an expression.
type Context map[string]any

// With returns a copy of the context with name bound to value.
// The receiver is never modified.
func (c Context) With(name string, value any) Context {
	sub := make(Context, len(c)+1)
	for k, v := range c {
		sub[k] = v
	}
	sub[name] = value
	return sub
}

// Merge returns a copy of the context with every entry of other added.
func (c Context) Merge(other map[string]any) Context {
	sub := make(Context, len(c)+len(other))
	for k, v := range c {
		sub[k] = v
	}
	for k, v := range other {
		sub[k] = v
	}
	return sub
}

// Keys returns the names in scope, sorted.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Args unpacks an evaluated value into positional arguments. Lists and
// tuples spread into several arguments; anything else becomes one.
func Args(v any) []any {
	switch val := v.(type) {
	case List:
		return []any(val)
	case Tuple:
		return []any(val)
	case []any:
		return val
	}
	return []any{v}
}

// Sequence returns the elements of a list-like value.
func Sequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case List:
		return []any(val), true
	case Tuple:
		return []any(val), true
	case []any:
		return val, true
	case nil:
		return nil, false
	case string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

// TypeName returns a short lowercase type name for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "none"
	case bool:
		return "bool"
	case string:
		return "string"
	case List, []any:
		return "list"
	case Tuple:
		return "tuple"
	}
	if _, ok := toInt(v); ok {
		return "int"
	}
	if _, ok := toFloat(v); ok {
		return "float"
	}
	return reflect.TypeOf(v).String()
}

// Truthy reports whether v counts as true in a logical-or chain.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if i, ok := toInt(v); ok {
		return i != 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// ToString renders a value the way interpolation and string concatenation see it.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	}
	if seq, ok := Sequence(v); ok {
		parts := make([]string, len(seq))
		for i, item := range seq {
			parts[i] = ToString(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

// ToInt converts integer-like and whole float values to int.
func ToInt(v any) (int, bool) {
	if i, ok := toInt(v); ok {
		return int(i), true
	}
	if f, ok := toFloat(v); ok {
		return int(f), true
	}
	if s, ok := v.(string); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// ToFloat converts any numeric value to float64.
func ToFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

// Equal compares two evaluated values, treating all integer kinds alike.
func Equal(a, b any) bool {
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return ai == bi
		}
	}
	return reflect.DeepEqual(a, b)
}
