package qtemplate

import (
	"regexp"
	"sort"
	"strings"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/markup"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

func (t *Tree) walkChildren(el *markup.Element, parent widget.Widget, ctx expr.Context) error {
	for _, child := range el.Children {
		if err := t.walk(child, parent, ctx); err != nil {
			return err
		}
	}
	return nil
}

// walk builds one element under parent. Registered tags win, then Set,
// then add<Tag> on the parent, then Connect.
func (t *Tree) walk(el *markup.Element, parent widget.Widget, ctx expr.Context) error {
	if kind, ok := t.tags.Resolve(el.Tag); ok {
		switch k := kind.(type) {
		case WidgetTag:
			return t.construct(el, k.Type, parent, ctx)
		case BehaviorTag:
			return t.behavior(el, k, parent, ctx)
		case ControlTag:
			switch k {
			case ControlSet:
				return t.applyAttrs(el, parent, t.typeOf(parent), ctx)
			case ControlConnect:
				return t.connect(el, parent, ctx)
			case ControlRepeater:
				return t.repeater(el, parent, ctx)
			case ControlSpacing, ControlStretch:
				return t.layoutItem(el, k, parent, ctx)
			}
		}
	}
	if strings.EqualFold(el.Tag, "set") {
		return t.applyAttrs(el, parent, t.typeOf(parent), ctx)
	}
	if ok, err := t.add(el, parent, ctx); ok {
		return err
	}
	return t.errorAt(el, t.unknownTag(el.Tag, parent.Core().Kind()))
}

func (t *Tree) unknownTag(tag, parent string) error {
	err := terrors.New("PARSE-0001", map[string]any{"Tag": tag, "Parent": parent})
	return err.WithSuggestion(tag, t.tags.Names())
}

// construct builds a widget, applies its attributes, places it in the
// parent's layout and walks its children.
func (t *Tree) construct(el *markup.Element, typ *widget.Type, parent widget.Widget, ctx expr.Context) error {
	args, err := t.evalArgs(el, "args", ctx)
	if err != nil {
		return err
	}
	w, err := typ.New(args)
	if err != nil {
		return t.errorAt(el, terrors.Wrap("PARSE-0007", err, map[string]any{"Tag": el.Tag}))
	}
	t.track(w, typ)
	if err := t.applyAttrs(el, w, typ, ctx); err != nil {
		return err
	}
	cell, err := t.evalArgs(el, "cell", ctx)
	if err != nil {
		return err
	}
	if l := parent.Core().Layout(); l != nil {
		if err := l.AddWidget(w, cell...); err != nil {
			return t.errorAt(el, err)
		}
	} else {
		widget.SetParent(w, parent)
	}
	return t.walkChildren(el, w, ctx)
}

func (t *Tree) behavior(el *markup.Element, tag BehaviorTag, parent widget.Widget, ctx expr.Context) error {
	args, err := t.evalArgs(el, "args", ctx)
	if err != nil {
		return err
	}
	b := &Behavior{
		Tree:    t,
		Element: el,
		Parent:  parent,
		Context: ctx,
		Args:    args,
		Attrs:   map[string]any{},
	}
	for _, a := range el.Attrs {
		if skipAttr(a.Name) {
			continue
		}
		v, err := expr.Evaluate(a.Value, ctx, expr.WithCall())
		if err != nil {
			return t.errorAt(el, err)
		}
		b.Attrs[a.Name] = v
	}
	if err := tag.Apply(b); err != nil {
		return t.errorAt(el, err)
	}
	return nil
}

// add calls the parent's add<Tag> adder, falling back to its layout. It
// reports false when neither has one.
func (t *Tree) add(el *markup.Element, parent widget.Widget, ctx expr.Context) (bool, error) {
	name := el.Tag
	if rest, ok := strings.CutPrefix(name, "add"); ok && rest != "" {
		name = rest
	}
	adder, ok := t.typeOf(parent).Adders[name]
	layoutAdder, layoutOK := widget.LayoutAdders[name]
	if !ok && !layoutOK {
		return false, nil
	}
	args, err := t.evalArgs(el, "args", ctx)
	if err != nil {
		return true, err
	}
	if ok {
		if err := adder(parent, args); err != nil {
			return true, t.errorAt(el, err)
		}
		return true, nil
	}
	l := parent.Core().Layout()
	if l == nil {
		return true, t.errorAt(el, terrors.New("PARSE-0010", map[string]any{"Attr": "add" + name, "Tag": parent.Core().Kind()}))
	}
	if err := layoutAdder(l, args); err != nil {
		return true, t.errorAt(el, err)
	}
	return true, nil
}

func (t *Tree) layoutItem(el *markup.Element, kind ControlTag, parent widget.Widget, ctx expr.Context) error {
	name := "Spacing"
	if kind == ControlStretch {
		name = "Stretch"
	}
	l := parent.Core().Layout()
	if l == nil {
		return t.errorAt(el, terrors.New("PARSE-0010", map[string]any{"Attr": name, "Tag": parent.Core().Kind()}))
	}
	args, err := t.evalArgs(el, "args", ctx)
	if err != nil {
		return err
	}
	if err := widget.LayoutAdders[name](l, args); err != nil {
		return t.errorAt(el, err)
	}
	return nil
}

// connect wires each attribute of a Connect element. The attribute name is
// a signal of the parent, or an event handler ending in Event which is
// wrapped so the existing handler runs first.
func (t *Tree) connect(el *markup.Element, parent widget.Widget, ctx expr.Context) error {
	b := parent.Core()
	for _, a := range el.Attrs {
		if strings.HasPrefix(a.Name, "_") {
			continue
		}
		fn, err := t.callback(a.Value, ctx)
		if err != nil {
			return t.errorAt(el, err)
		}
		path := a.Value
		slot, err := widget.Slot(fn, func(err error) {
			t.log.Warnf("%s: callback %s: %v", t.name(), path, err)
		})
		if err != nil {
			return t.errorAt(el, terrors.New("TYPE-0003", map[string]any{"Path": path}))
		}
		if sig, ok := b.Signal(a.Name); ok {
			sig.Connect(slot)
			continue
		}
		if strings.HasSuffix(a.Name, "Event") {
			original, _ := b.EventHandler(a.Name)
			b.SetEventHandler(a.Name, func(ev *widget.Event) {
				if original != nil {
					original(ev)
				}
				slot(ev)
			})
			continue
		}
		err = terrors.New("PARSE-0005", map[string]any{"Signal": a.Name, "Tag": b.Kind()}).
			WithSuggestion(a.Name, b.SignalNames())
		return t.errorAt(el, err)
	}
	return nil
}

// callback resolves a dotted path on the callback object, then in ctx.
func (t *Tree) callback(path string, ctx expr.Context) (any, error) {
	path = strings.TrimSpace(path)
	fn, err := expr.Resolve(t.callbacks, path)
	if err != nil {
		fn, err = expr.Resolve(ctx, path)
	}
	if err != nil || fn == nil {
		return nil, terrors.New("UNDEF-0003", map[string]any{"Path": path})
	}
	return fn, nil
}

var (
	repeatPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s+in\s+(.+)$`)
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// repeater binds the iterable of a Repeater element. Every evaluation
// rebuilds the parent's children from scratch, once per item.
func (t *Tree) repeater(el *markup.Element, parent widget.Widget, ctx expr.Context) error {
	src, ok := el.Attr("for")
	if !ok {
		return t.errorAt(el, terrors.New("PARSE-0003", map[string]any{"Tag": el.Tag, "Attr": "for"}))
	}
	name, hasVar := el.Attr("var")
	if !hasVar {
		m := repeatPattern.FindStringSubmatch(src)
		if m == nil {
			return t.errorAt(el, terrors.New("PARSE-0006", map[string]any{"Expr": src}))
		}
		name, src = m[1], m[2]
	}
	name = strings.TrimSpace(name)
	if !identPattern.MatchString(name) {
		return t.errorAt(el, terrors.New("PARSE-0006", map[string]any{"Expr": src}))
	}
	rebuild := func(v any) error {
		return t.repeat(el, parent, ctx, name, v)
	}
	if err := t.bind(parent, rebuild, src, ctx); err != nil {
		return t.errorAt(el, err)
	}
	return nil
}

func (t *Tree) repeat(el *markup.Element, parent widget.Widget, ctx expr.Context, name string, v any) error {
	items, err := iterate(v)
	if err != nil {
		return err
	}
	ids := widget.DestroyChildren(parent)
	t.store.Unregister(t, ids...)
	t.forget(ids)
	if l := parent.Core().Layout(); l != nil {
		l.Clear()
	}
	for _, item := range items {
		if err := t.walkChildren(el, parent, ctx.With(name, item)); err != nil {
			return err
		}
	}
	return nil
}

// iterate returns the items a repeater walks: the elements of a sequence,
// 0..n-1 for an integer n, or the sorted keys of a map.
func iterate(v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	if seq, ok := expr.Sequence(v); ok {
		return seq, nil
	}
	switch val := v.(type) {
	case bool:
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, _ := expr.ToInt(val)
		items := make([]any, 0, max(n, 0))
		for i := 0; i < n; i++ {
			items = append(items, i)
		}
		return items, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = k
		}
		return items, nil
	}
	return nil, terrors.New("TYPE-0002", map[string]any{"Got": expr.TypeName(v)})
}
