package widget

import (
	"fmt"
	"sort"
	"strings"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
)

// Constructor builds a widget from the evaluated args attribute. It must
// accept nil args, which is how prototypes are built at registration.
type Constructor func(args []any) (Widget, error)

// Setter applies one markup attribute to a widget. Lists and tuples in
// markup arrive as multiple args.
type Setter func(w Widget, args []any) error

// Adder implements an add<Tag> child element on a parent widget.
type Adder func(parent Widget, args []any) error

// Capabilities. A widget type gets the matching attribute when its
// prototype implements the interface.
type (
	TextSetter        interface{ SetText(string) }
	AlignmentSetter   interface{ SetAlignment(int) }
	WordWrapSetter    interface{ SetWordWrap(bool) }
	ValueSetter       interface{ SetValue(int) }
	FormatSetter      interface{ SetFormat(string) }
	CheckableSetter   interface{ SetCheckable(bool) }
	CheckedSetter     interface{ SetChecked(bool) }
	PlaceholderSetter interface{ SetPlaceholderText(string) }
	SourceSetter      interface{ SetSource(string) }
	IndexSetter       interface{ SetCurrentIndex(int) }
	RangeSetter       interface {
		SetMinimum(int)
		SetMaximum(int)
	}
	ValuesSetter interface{ SetValues([]float64) }

	// AttrProvider lets a widget type declare attributes beyond the
	// standard capabilities.
	AttrProvider interface{ Attrs() map[string]Setter }
	// AdderProvider declares add<Tag> children.
	AdderProvider interface{ Adders() map[string]Adder }
)

// Type is a registered widget tag: its constructor and the attributes,
// adders and signals resolved from its prototype.
type Type struct {
	Name    string
	New     Constructor
	Attrs   map[string]Setter
	Adders  map[string]Adder
	Signals []string
}

// AttrNames returns the attribute names of t, sorted.
func (t *Type) AttrNames() []string {
	names := make([]string, 0, len(t.Attrs))
	for name := range t.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewType builds the attribute table for a constructor by probing a
// prototype instance.
func NewType(name string, ctor Constructor) (*Type, error) {
	proto, err := ctor(nil)
	if err != nil {
		return nil, fmt.Errorf("widget %s: building prototype: %w", name, err)
	}
	return typeOf(name, ctor, proto), nil
}

// TypeFor builds the attribute table of an existing widget, such as a
// tree's root. The returned type has no constructor.
func TypeFor(w Widget) *Type {
	return typeOf(w.Core().Kind(), nil, w.Core().Self())
}

func typeOf(name string, ctor Constructor, proto Widget) *Type {
	t := &Type{
		Name:    name,
		New:     ctor,
		Attrs:   BaseAttrs(),
		Adders:  map[string]Adder{},
		Signals: proto.Core().SignalNames(),
	}
	for attr, set := range capabilityAttrs(proto) {
		t.Attrs[attr] = set
	}
	if p, ok := proto.(AttrProvider); ok {
		for attr, set := range p.Attrs() {
			t.Attrs[attr] = set
		}
	}
	if p, ok := proto.(AdderProvider); ok {
		for tag, add := range p.Adders() {
			t.Adders[tag] = add
		}
	}
	return t
}

func capabilityAttrs(proto Widget) map[string]Setter {
	attrs := map[string]Setter{}
	if _, ok := proto.(TextSetter); ok {
		attrs["text"] = func(w Widget, args []any) error {
			s, err := stringArg("text", args)
			if err == nil {
				w.(TextSetter).SetText(s)
			}
			return err
		}
	}
	if _, ok := proto.(AlignmentSetter); ok {
		attrs["alignment"] = func(w Widget, args []any) error {
			n, err := intArg("alignment", args)
			if err == nil {
				w.(AlignmentSetter).SetAlignment(n)
			}
			return err
		}
	}
	if _, ok := proto.(WordWrapSetter); ok {
		attrs["wordWrap"] = func(w Widget, args []any) error {
			v, err := boolArg("wordWrap", args)
			if err == nil {
				w.(WordWrapSetter).SetWordWrap(v)
			}
			return err
		}
	}
	if _, ok := proto.(ValueSetter); ok {
		attrs["value"] = func(w Widget, args []any) error {
			n, err := intArg("value", args)
			if err == nil {
				w.(ValueSetter).SetValue(n)
			}
			return err
		}
	}
	if _, ok := proto.(FormatSetter); ok {
		attrs["format"] = func(w Widget, args []any) error {
			s, err := stringArg("format", args)
			if err == nil {
				w.(FormatSetter).SetFormat(s)
			}
			return err
		}
	}
	if _, ok := proto.(CheckableSetter); ok {
		attrs["checkable"] = func(w Widget, args []any) error {
			v, err := boolArg("checkable", args)
			if err == nil {
				w.(CheckableSetter).SetCheckable(v)
			}
			return err
		}
	}
	if _, ok := proto.(CheckedSetter); ok {
		attrs["checked"] = func(w Widget, args []any) error {
			v, err := boolArg("checked", args)
			if err == nil {
				w.(CheckedSetter).SetChecked(v)
			}
			return err
		}
	}
	if _, ok := proto.(PlaceholderSetter); ok {
		attrs["placeholderText"] = func(w Widget, args []any) error {
			s, err := stringArg("placeholderText", args)
			if err == nil {
				w.(PlaceholderSetter).SetPlaceholderText(s)
			}
			return err
		}
	}
	if _, ok := proto.(SourceSetter); ok {
		attrs["source"] = func(w Widget, args []any) error {
			s, err := stringArg("source", args)
			if err == nil {
				w.(SourceSetter).SetSource(s)
			}
			return err
		}
	}
	if _, ok := proto.(IndexSetter); ok {
		attrs["currentIndex"] = func(w Widget, args []any) error {
			n, err := intArg("currentIndex", args)
			if err == nil {
				w.(IndexSetter).SetCurrentIndex(n)
			}
			return err
		}
	}
	if _, ok := proto.(RangeSetter); ok {
		attrs["minimum"] = func(w Widget, args []any) error {
			n, err := intArg("minimum", args)
			if err == nil {
				w.(RangeSetter).SetMinimum(n)
			}
			return err
		}
		attrs["maximum"] = func(w Widget, args []any) error {
			n, err := intArg("maximum", args)
			if err == nil {
				w.(RangeSetter).SetMaximum(n)
			}
			return err
		}
		attrs["range"] = func(w Widget, args []any) error {
			lo, hi, err := intPair("range", args)
			if err == nil {
				w.(RangeSetter).SetMinimum(lo)
				w.(RangeSetter).SetMaximum(hi)
			}
			return err
		}
	}
	if _, ok := proto.(ValuesSetter); ok {
		attrs["values"] = func(w Widget, args []any) error {
			vals := make([]float64, 0, len(args))
			for _, a := range args {
				if seq, ok := expr.Sequence(a); ok && len(args) == 1 {
					for _, item := range seq {
						f, ok := expr.ToFloat(item)
						if !ok {
							return typeError("values", "number", item)
						}
						vals = append(vals, f)
					}
					continue
				}
				f, ok := expr.ToFloat(a)
				if !ok {
					return typeError("values", "number", a)
				}
				vals = append(vals, f)
			}
			w.(ValuesSetter).SetValues(vals)
			return nil
		}
	}
	return attrs
}

// BaseAttrs returns the attributes every widget accepts.
func BaseAttrs() map[string]Setter {
	return map[string]Setter{
		"objectName": func(w Widget, args []any) error {
			s, err := stringArg("objectName", args)
			if err == nil {
				w.Core().SetObjectName(s)
			}
			return err
		},
		"toolTip": func(w Widget, args []any) error {
			s, err := stringArg("toolTip", args)
			if err == nil {
				w.Core().SetToolTip(s)
			}
			return err
		},
		"visible": func(w Widget, args []any) error {
			v, err := boolArg("visible", args)
			if err == nil {
				w.Core().SetVisible(v)
			}
			return err
		},
		"enabled": func(w Widget, args []any) error {
			v, err := boolArg("enabled", args)
			if err == nil {
				w.Core().SetEnabled(v)
			}
			return err
		},
		"minimumWidth":  sizeSetter("minimumWidth", 0, false, true),
		"minimumHeight": sizeSetter("minimumHeight", 1, false, true),
		"maximumWidth":  sizeSetter("maximumWidth", 0, true, false),
		"maximumHeight": sizeSetter("maximumHeight", 1, true, false),
		"fixedWidth":    sizeSetter("fixedWidth", 0, true, true),
		"fixedHeight":   sizeSetter("fixedHeight", 1, true, true),
		"minimumSize": func(w Widget, args []any) error {
			a, b, err := intPair("minimumSize", args)
			if err == nil {
				w.Core().SetMinimumSize(a, b)
			}
			return err
		},
		"maximumSize": func(w Widget, args []any) error {
			a, b, err := intPair("maximumSize", args)
			if err == nil {
				w.Core().SetMaximumSize(a, b)
			}
			return err
		},
		"fixedSize": func(w Widget, args []any) error {
			a, b, err := intPair("fixedSize", args)
			if err == nil {
				w.Core().SetMinimumSize(a, b)
				w.Core().SetMaximumSize(a, b)
			}
			return err
		},
		"size": func(w Widget, args []any) error {
			a, b, err := intPair("size", args)
			if err == nil {
				w.Core().Resize(a, b)
			}
			return err
		},
		"pos": func(w Widget, args []any) error {
			a, b, err := intPair("pos", args)
			if err == nil {
				w.Core().Move(a, b)
			}
			return err
		},
		"property": func(w Widget, args []any) error {
			if len(args) != 2 {
				return countError("property", "2", len(args))
			}
			w.Core().SetProperty(expr.ToString(args[0]), args[1])
			return nil
		},
	}
}

func sizeSetter(attr string, axis int, setMax, setMin bool) Setter {
	return func(w Widget, args []any) error {
		n, err := intArg(attr, args)
		if err != nil {
			return err
		}
		b := w.Core()
		if setMin {
			lo := b.minSize
			lo[axis] = n
			b.SetMinimumSize(lo[0], lo[1])
		}
		if setMax {
			hi := b.maxSize
			hi[axis] = n
			b.SetMaximumSize(hi[0], hi[1])
		}
		return nil
	}
}

// Registry maps tag names to widget types.
type Registry struct {
	types map[string]*Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]*Type{}}
}

// Register adds a widget type under name, replacing any existing one.
func (r *Registry) Register(name string, ctor Constructor) (*Type, error) {
	t, err := NewType(name, ctor)
	if err != nil {
		return nil, err
	}
	r.types[name] = t
	return t, nil
}

// MustRegister is Register for package initialisation.
func (r *Registry) MustRegister(name string, ctor Constructor) *Type {
	t, err := r.Register(name, ctor)
	if err != nil {
		panic(err)
	}
	return t
}

func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Names returns all registered tag names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toInt(v any) (int, error) {
	if n, ok := expr.ToInt(v); ok {
		return n, nil
	}
	return 0, typeError("value", "int", v)
}

// kindName is passed to typeError in place of a value when the mismatch
// is about a kind rather than a value's type.
type kindName string

func typeError(attr, expected string, got any) error {
	gotName := expr.TypeName(got)
	if k, ok := got.(kindName); ok {
		gotName = string(k)
	}
	return terrors.New("TYPE-0001", map[string]any{
		"Attr":     attr,
		"Expected": expected,
		"Got":      gotName,
	})
}

func countError(attr, want string, got int) error {
	return terrors.New("TYPE-0004", map[string]any{
		"Attr": attr,
		"Want": want,
		"Got":  got,
	})
}

func oneArg(attr string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, countError(attr, "1", len(args))
	}
	return args[0], nil
}

func stringArg(attr string, args []any) (string, error) {
	if len(args) != 1 {
		return "", countError(attr, "1", len(args))
	}
	return expr.ToString(args[0]), nil
}

func intArg(attr string, args []any) (int, error) {
	v, err := oneArg(attr, args)
	if err != nil {
		return 0, err
	}
	n, ok := expr.ToInt(v)
	if !ok {
		return 0, typeError(attr, "int", v)
	}
	return n, nil
}

func boolArg(attr string, args []any) (bool, error) {
	v, err := oneArg(attr, args)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
		return false, typeError(attr, "bool", v)
	}
	if n, ok := expr.ToInt(v); ok {
		return n != 0, nil
	}
	return false, typeError(attr, "bool", v)
}

func intPair(attr string, args []any) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, countError(attr, "2", len(args))
	}
	a, ok := expr.ToInt(args[0])
	if !ok {
		return 0, 0, typeError(attr, "int", args[0])
	}
	b, ok := expr.ToInt(args[1])
	if !ok {
		return 0, 0, typeError(attr, "int", args[1])
	}
	return a, b, nil
}
