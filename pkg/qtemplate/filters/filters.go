// Package filters provides the named value filters applied inside
// {{ path|filter:arg }} placeholders.
package filters

import (
	"fmt"
	"sort"
	"sync"
)

// Func transforms a value. Filters receive at most one argument from
// markup; the argument is always passed as a string.
type Func func(value any, args ...string) (any, error)

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// Register adds or replaces a filter.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup returns the filter registered under name.
func Lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names returns every registered filter name, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs the named filter.
func Apply(name string, value any, args ...string) (any, error) {
	fn, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown filter: %s", name)
	}
	return fn(value, args...)
}

func arg(args []string, i int, def string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return def
}

func init() {
	for name, fn := range map[string]Func{
		"bytes_to_str":          bytesToStr,
		"megabytes_to_str":      megabytesToStr,
		"milliseconds_to_str":   millisecondsToStr,
		"seconds_to_str":        secondsToStr,
		"seconds_to_str_short":  secondsToStrShort,
		"celsius_to_fahrenheit": celsiusToFahrenheit,
		"fahrenheit_to_celsius": fahrenheitToCelsius,
		"degrees_to_direction":  degreesToDirection,
		"round":                 round,
		"to_int":                toInteger,
		"to_fraction":           toFraction,
		"int_comma":             intComma,
		"humanize_bytes":        humanizeBytes,
		"default":               defaultValue,
		"invert":                invert,
		"join":                  join,
		"length":                length,
		"lower":                 lower,
		"upper":                 upper,
		"title":                 title,
		"pluralize":             pluralize,
		"format_str":            formatStr,
		"markdown":              markdown,
		"format_date":           formatDate,
		"format_timestamp":      formatTimestamp,
		"time_ago":              timeAgo,
		"timestamp_ago":         timestampAgo,
		"naturaltime":           naturalTime,
	} {
		registry[name] = fn
	}
}
