package qtemplate

import (
	"sort"
	"strings"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/markup"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// Attributes the builder handles itself rather than through a setter.
var builderAttrs = []string{"id", "class", "padding", "spacing", "layout"}

// apply is a setter bound to one widget.
type apply func(args []any) error

// skipAttr reports attributes consumed before construction or reserved
// for annotations.
func skipAttr(name string) bool {
	return name == "args" || name == "cell" || strings.HasPrefix(name, "_")
}

func (t *Tree) applyAttrs(el *markup.Element, w widget.Widget, typ *widget.Type, ctx expr.Context) error {
	for _, a := range el.Attrs {
		if skipAttr(a.Name) {
			continue
		}
		set, err := t.setterFor(el, w, typ, a.Name)
		if err != nil {
			return t.errorAt(el, err)
		}
		if err := t.bind(w, spread(set), a.Value, ctx); err != nil {
			return t.errorAt(el, err)
		}
	}
	return nil
}

// spread adapts a setter to take one evaluated value, unpacking lists and
// tuples into separate arguments.
func spread(set apply) func(any) error {
	return func(v any) error { return set(expr.Args(v)) }
}

// bind evaluates src, passes the value to fn and registers fn once per
// store token the expression reads.
func (t *Tree) bind(w widget.Widget, fn func(any) error, src string, ctx expr.Context) error {
	var tokens []string
	value, err := expr.Evaluate(src, ctx, expr.WithCall(), expr.WithRegister(t.prefix, func(token string) {
		tokens = append(tokens, token)
	}))
	if err != nil {
		return err
	}
	if err := fn(value); err != nil {
		return err
	}
	id := w.Core().ID()
	for _, token := range tokens {
		t.store.Register(t, id, token, fn, src, ctx)
	}
	return nil
}

func (t *Tree) setterFor(el *markup.Element, w widget.Widget, typ *widget.Type, name string) (apply, error) {
	b := w.Core()
	switch name {
	case "id":
		return func(args []any) error {
			id := expr.ToString(firstArg(args))
			b.SetObjectName(id)
			t.IDs[id] = w
			return nil
		}, nil
	case "class":
		return func(args []any) error {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = expr.ToString(a)
			}
			b.SetProperty("class", strings.Join(parts, " "))
			return nil
		}, nil
	case "padding":
		return t.needLayout(el, b, name, func(l widget.Layout, args []any) error {
			m, err := widget.Margins(name, args)
			if err == nil {
				l.SetContentsMargins(m[0], m[1], m[2], m[3])
			}
			return err
		}), nil
	case "spacing":
		return t.needLayout(el, b, name, widget.LayoutAttrs["spacing"]), nil
	case "layout":
		return func(args []any) error {
			l, err := widget.NewLayout(expr.ToString(firstArg(args)))
			if err != nil {
				return err
			}
			b.SetLayout(l)
			if t.margins != nil {
				l.SetContentsMargins(t.margins[0], t.margins[1], t.margins[2], t.margins[3])
			}
			if t.spacing != nil {
				l.SetSpacing(*t.spacing)
			}
			return nil
		}, nil
	}
	if sub, ok := strings.CutPrefix(name, "layout."); ok {
		set, ok := widget.LayoutAttrs[sub]
		if !ok {
			return nil, unknownAttr(el.Tag, name, layoutAttrNames())
		}
		return t.needLayout(el, b, name, set), nil
	}
	set, ok := typ.Attrs[name]
	if !ok {
		return nil, unknownAttr(el.Tag, name, append(typ.AttrNames(), builderAttrs...))
	}
	return func(args []any) error { return set(w, args) }, nil
}

// needLayout defers to set once the widget has a layout. The check runs
// on every application because a binding may outlive a layout change.
func (t *Tree) needLayout(el *markup.Element, b *widget.Base, attr string, set widget.LayoutSetter) apply {
	return func(args []any) error {
		l := b.Layout()
		if l == nil {
			return terrors.New("PARSE-0010", map[string]any{"Attr": attr, "Tag": el.Tag})
		}
		return set(l, args)
	}
}

func unknownAttr(tag, attr string, candidates []string) error {
	err := terrors.New("PARSE-0002", map[string]any{"Attr": attr, "Tag": tag})
	return err.WithSuggestion(attr, candidates)
}

func layoutAttrNames() []string {
	names := make([]string, 0, len(widget.LayoutAttrs))
	for name := range widget.LayoutAttrs {
		names = append(names, "layout."+name)
	}
	sort.Strings(names)
	return names
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

// evalArgs evaluates the named attribute as positional arguments. An
// absent attribute means no arguments.
func (t *Tree) evalArgs(el *markup.Element, name string, ctx expr.Context) ([]any, error) {
	src, ok := el.Attr(name)
	if !ok {
		return nil, nil
	}
	v, err := expr.Evaluate(src, ctx, expr.WithCall())
	if err != nil {
		return nil, t.errorAt(el, err)
	}
	return expr.Args(v), nil
}
