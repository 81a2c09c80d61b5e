package expr

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

// Attrer is implemented by values that expose named children to dotted
// paths, such as the store root and widgets.
type Attrer interface {
	Attr(name string) (any, bool)
}

// Lookup returns the child of obj named key. Maps are indexed by key,
// sequences by integer position (negative counts from the end), structs by
// exported field or method name.
func Lookup(obj any, key string) (any, bool) {
	switch o := obj.(type) {
	case nil:
		return nil, false
	case Attrer:
		return o.Attr(key)
	case Context:
		v, ok := o[key]
		return v, ok
	case map[string]any:
		v, ok := o[key]
		return v, ok
	}
	if seq, ok := Sequence(obj); ok {
		i, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		if i < 0 {
			i += len(seq)
		}
		if i < 0 || i >= len(seq) {
			return nil, false
		}
		return seq[i], true
	}
	return reflectLookup(reflect.ValueOf(obj), key)
}

func reflectLookup(rv reflect.Value, key string) (any, bool) {
	for _, name := range []string{key, exported(key)} {
		if m := rv.MethodByName(name); m.IsValid() {
			return m.Interface(), true
		}
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Struct:
		for _, name := range []string{key, exported(key)} {
			f, ok := rv.Type().FieldByName(name)
			if ok && f.IsExported() {
				return rv.FieldByIndex(f.Index).Interface(), true
			}
		}
	}
	return nil, false
}

func exported(name string) string {
	r, n := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[n:]
}

// Keys lists the names reachable from obj for error hints.
func Keys(obj any) []string {
	var keys []string
	switch o := obj.(type) {
	case Context:
		return o.Keys()
	case map[string]any:
		for k := range o {
			keys = append(keys, k)
		}
	case interface{ Keys() []string }:
		return o.Keys()
	default:
		rv := reflect.ValueOf(obj)
		for rv.Kind() == reflect.Ptr && !rv.IsNil() {
			rv = rv.Elem()
		}
		if rv.Kind() == reflect.Struct {
			for i := 0; i < rv.NumField(); i++ {
				if f := rv.Type().Field(i); f.IsExported() {
					keys = append(keys, f.Name)
				}
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Resolve walks a dotted path starting from root. The first segment of
// path is looked up in root itself.
func Resolve(root any, path string) (any, error) {
	cur := root
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		next, ok := Lookup(cur, seg)
		if !ok {
			err := terrors.New("UNDEF-0001", map[string]any{
				"Name": seg,
				"Path": path,
			})
			return nil, err.WithSuggestion(seg, Keys(cur))
		}
		if i < len(segments)-1 {
			if fn, ok := callable(next); ok && !isContainer(next) {
				v, err := invoke(fn)
				if err != nil {
					return nil, fmt.Errorf("resolving %s: %w", path, err)
				}
				next = v
			}
		}
		cur = next
	}
	return cur, nil
}

func isContainer(v any) bool {
	switch v.(type) {
	case Attrer, Context, map[string]any:
		return true
	}
	return false
}

// IsCallable reports whether v is a function taking no arguments.
func IsCallable(v any) bool {
	_, ok := callable(v)
	return ok
}

func callable(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() || rv.Type().NumIn() != 0 {
		return reflect.Value{}, false
	}
	return rv, true
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func invoke(fn reflect.Value) (any, error) {
	out := fn.Call(nil)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if fn.Type().Out(0) == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if fn.Type().Out(len(out)-1) == errorType && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

// Call invokes v when it is a zero-argument function and returns v unchanged otherwise.
func Call(v any) (any, error) {
	if fn, ok := callable(v); ok {
		return invoke(fn)
	}
	return v, nil
}
