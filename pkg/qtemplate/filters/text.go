package filters

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
)

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

func items(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func defaultValue(value any, args ...string) (any, error) {
	if value == nil {
		return arg(args, 0, ""), nil
	}
	return value, nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	}
	if f, err := toFloat(v); err == nil {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

func invert(value any, _ ...string) (any, error) {
	return !truthy(value), nil
}

func join(value any, args ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	list, ok := items(value)
	if !ok {
		return nil, fmt.Errorf("cannot join %T", value)
	}
	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = str(item)
	}
	return strings.Join(parts, arg(args, 0, ",")), nil
}

func length(value any, _ ...string) (any, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		return len([]rune(v)), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return nil, fmt.Errorf("%T has no length", value)
}

func lower(value any, _ ...string) (any, error) {
	return strings.ToLower(str(value)), nil
}

func upper(value any, _ ...string) (any, error) {
	return strings.ToUpper(str(value)), nil
}

func title(value any, _ ...string) (any, error) {
	return cases.Title(currentTag()).String(str(value)), nil
}

// pluralize picks the singular or plural suffix from "one,many".
func pluralize(value any, args ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	one, many, ok := strings.Cut(arg(args, 0, ",s"), ",")
	if !ok {
		one, many = "", one
	}
	count := 0
	if list, ok := items(value); ok {
		count = len(list)
	} else if s, ok := value.(string); ok {
		count = len(s)
	} else {
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		count = int(f)
	}
	if count == 1 {
		return one, nil
	}
	return many, nil
}

func formatStr(value any, args ...string) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("format_str requires a format")
	}
	return fmt.Sprintf(args[0], value), nil
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// markdown converts value to HTML rich text for labels.
func markdown(value any, _ ...string) (any, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(str(value)), &buf); err != nil {
		return nil, err
	}
	return strings.TrimSpace(buf.String()), nil
}
