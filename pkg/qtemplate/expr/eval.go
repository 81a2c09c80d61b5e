// Package expr evaluates the attribute expressions used in widget markup.
//
// Expressions are deliberately small: literals, dotted paths into a context,
// [list] and (tuple) literals, and the binary operators ||, &, | and + folded
// left to right without precedence. Quoted strings may embed
// {{ path|filter:arg }} placeholders.
package expr

import (
	"regexp"
	"strconv"
	"strings"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

// DefaultPrefix marks dependency tokens in an expression.
const DefaultPrefix = "data."

var (
	intPattern   = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	pathPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
)

// Option configures a single evaluation.
type Option func(*evaluator)

// WithCall makes a callable path result be invoked and its return value used.
func WithCall() Option {
	return func(e *evaluator) { e.call = true }
}

// WithRegister reports every dependency token under prefix to fn before
// evaluating. An empty prefix means DefaultPrefix.
func WithRegister(prefix string, fn func(token string)) Option {
	return func(e *evaluator) {
		e.prefix = prefix
		e.register = fn
	}
}

type evaluator struct {
	ctx      Context
	call     bool
	prefix   string
	register func(token string)
}

// Evaluate interprets src against ctx.
func Evaluate(src string, ctx Context, opts ...Option) (any, error) {
	e := &evaluator{ctx: ctx}
	for _, opt := range opts {
		opt(e)
	}
	if e.register != nil {
		for _, token := range Dependencies(src, e.prefix) {
			e.register(token)
		}
	}
	return e.eval(src)
}

func (e *evaluator) eval(src string) (any, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return "", nil
	}

	if (s[0] == '[' || s[0] == '(') && closing(s, 0) == len(s)-1 {
		return e.collection(s)
	}

	operands, ops, ok := splitOperators(s)
	if !ok {
		return nil, terrors.New("PARSE-0009", map[string]any{"Expr": s})
	}
	if len(ops) > 0 {
		return e.chain(operands, ops)
	}
	return e.atom(s)
}

func (e *evaluator) collection(s string) (any, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	var items []any
	if inner != "" {
		parts, ok := splitTop(inner, ',')
		if !ok {
			return nil, terrors.New("PARSE-0009", map[string]any{"Expr": s})
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			v, err := e.eval(part)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
	}
	if items == nil {
		items = []any{}
	}
	if s[0] == '(' {
		return Tuple(items), nil
	}
	return List(items), nil
}

func (e *evaluator) chain(operands, ops []string) (any, error) {
	acc, err := e.operand(operands[0], ops[0])
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		if op == "||" && Truthy(acc) {
			continue
		}
		right, err := e.operand(operands[i+1], op)
		if err != nil {
			return nil, err
		}
		if op == "||" {
			acc = right
			continue
		}
		acc, err = apply(op, acc, right)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (e *evaluator) operand(src, op string) (any, error) {
	if strings.TrimSpace(src) == "" {
		return nil, terrors.New("OP-0002", map[string]any{"Op": op})
	}
	return e.eval(src)
}

func (e *evaluator) atom(s string) (any, error) {
	if s[0] == '"' || s[0] == '\'' {
		if body, ok := unquote(s); ok {
			if strings.Contains(body, "{{") {
				return e.interpolate(body)
			}
			return body, nil
		}
	}

	switch strings.ToLower(s) {
	case "true", "yes":
		return true, nil
	case "false", "no":
		return false, nil
	case "none", "null":
		return nil, nil
	}

	if intPattern.MatchString(s) {
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
	}
	if floatPattern.MatchString(s) || intPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}

	if pathPattern.MatchString(s) {
		first, _, _ := strings.Cut(s, ".")
		if _, ok := e.ctx[first]; ok {
			v, err := Resolve(e.ctx, s)
			if err != nil {
				return nil, err
			}
			if e.call {
				return Call(v)
			}
			return v, nil
		}
	}
	return s, nil
}
