package expr

import (
	"regexp"
	"strings"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/filters"
)

var placeholder = regexp.MustCompile(`\{\{(.+?)\}\}`)

// Interpolate replaces every {{ path|filter:arg }} placeholder in text.
func Interpolate(text string, ctx Context) (string, error) {
	e := &evaluator{ctx: ctx}
	return e.interpolate(text)
}

func (e *evaluator) interpolate(text string) (string, error) {
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if firstErr != nil {
			return m
		}
		v, err := e.placeholder(m[2 : len(m)-2])
		if err != nil {
			firstErr = err
			return m
		}
		return ToString(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (e *evaluator) placeholder(inner string) (any, error) {
	parts, ok := splitTop(inner, '|')
	if !ok {
		return nil, terrors.New("PARSE-0009", map[string]any{"Expr": inner})
	}
	value, err := e.placeholderValue(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	if e.call {
		if value, err = Call(value); err != nil {
			return nil, err
		}
	}
	for _, f := range parts[1:] {
		name, arg, hasArg := strings.Cut(strings.TrimSpace(f), ":")
		name = strings.TrimSpace(name)
		var args []string
		if hasArg {
			arg = strings.TrimSpace(arg)
			if s, ok := unquote(arg); ok {
				arg = s
			}
			args = append(args, arg)
		}
		fn, ok := filters.Lookup(name)
		if !ok {
			err := terrors.New("UNDEF-0002", map[string]any{"Name": name})
			return nil, err.WithSuggestion(name, filters.Names())
		}
		if value, err = fn(value, args...); err != nil {
			return nil, terrors.Wrap("OP-0003", err, map[string]any{"Name": name})
		}
	}
	if value == nil {
		return "", nil
	}
	return value, nil
}

// placeholderValue resolves the path part of a placeholder. Missing paths
// render as nil rather than failing.
func (e *evaluator) placeholderValue(src string) (any, error) {
	if !pathPattern.MatchString(src) || intPattern.MatchString(src) || floatPattern.MatchString(src) {
		return e.eval(src)
	}
	switch strings.ToLower(src) {
	case "true", "yes", "false", "no", "none", "null":
		return e.eval(src)
	}
	v, err := Resolve(e.ctx, src)
	if terrors.Is(err, "UNDEF-0001") {
		return nil, nil
	}
	return v, err
}
