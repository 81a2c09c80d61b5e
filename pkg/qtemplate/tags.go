package qtemplate

import (
	"sort"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/markup"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// TagKind is what a markup tag name resolves to: a WidgetTag, a
// BehaviorTag or a ControlTag.
type TagKind interface {
	tagKind()
}

// WidgetTag constructs a widget and adds it to the parent's layout.
type WidgetTag struct {
	Type *widget.Type
}

// BehaviorTag modifies its parent without creating a widget.
type BehaviorTag struct {
	Name  string
	Apply func(b *Behavior) error
}

// Behavior is passed to a BehaviorTag when its element is walked.
type Behavior struct {
	Tree    *Tree
	Element *markup.Element
	Parent  widget.Widget
	Context expr.Context
	Args    []any
	Attrs   map[string]any
}

// ControlTag is one of the builder's own tags.
type ControlTag int

const (
	ControlSet ControlTag = iota
	ControlConnect
	ControlRepeater
	ControlSpacing
	ControlStretch
)

func (WidgetTag) tagKind()   {}
func (BehaviorTag) tagKind() {}
func (ControlTag) tagKind()  {}

var controlNames = map[string]ControlTag{
	"Set":      ControlSet,
	"Connect":  ControlConnect,
	"Repeater": ControlRepeater,
	"Spacing":  ControlSpacing,
	"Stretch":  ControlStretch,
}

// Tags resolves tag names. Widget types are inspected once, at registration.
type Tags struct {
	kinds map[string]TagKind
}

// NewTags returns a table holding the control tags and every widget type
// in reg.
func NewTags(reg *widget.Registry) *Tags {
	t := &Tags{kinds: map[string]TagKind{}}
	for name, c := range controlNames {
		t.kinds[name] = c
	}
	if reg != nil {
		for _, name := range reg.Names() {
			typ, _ := reg.Lookup(name)
			t.kinds[name] = WidgetTag{Type: typ}
		}
	}
	return t
}

// DefaultTags holds the built-in widget vocabulary and behaviors.
func DefaultTags() *Tags {
	t := NewTags(widget.Builtins())
	t.RegisterBehavior("DropShadow", dropShadow)
	return t
}

// RegisterWidget adds a widget tag.
func (t *Tags) RegisterWidget(name string, ctor widget.Constructor) error {
	typ, err := widget.NewType(name, ctor)
	if err != nil {
		return err
	}
	t.kinds[name] = WidgetTag{Type: typ}
	return nil
}

// RegisterBehavior adds a behavior tag.
func (t *Tags) RegisterBehavior(name string, apply func(*Behavior) error) {
	t.kinds[name] = BehaviorTag{Name: name, Apply: apply}
}

// Resolve returns the kind registered for tag.
func (t *Tags) Resolve(tag string) (TagKind, bool) {
	k, ok := t.kinds[tag]
	return k, ok
}

// Names returns every registered tag name, sorted.
func (t *Tags) Names() []string {
	names := make([]string, 0, len(t.kinds))
	for name := range t.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dropShadow records a shadow (x, y, blur, opacity) on the parent and
// widens the grandparent's margins so the shadow is not clipped.
func dropShadow(b *Behavior) error {
	vals := []int{0, 0, 0, 255}
	for i := 0; i < len(b.Args) && i < 4; i++ {
		n, ok := expr.ToInt(b.Args[i])
		if !ok {
			return terrors.New("TYPE-0001", map[string]any{
				"Attr":     "DropShadow",
				"Expected": "int",
				"Got":      expr.TypeName(b.Args[i]),
			})
		}
		vals[i] = n
	}
	b.Parent.Core().SetProperty("dropShadow", expr.Tuple{vals[0], vals[1], vals[2], vals[3]})
	if gp := b.Parent.Core().Parent(); gp != nil {
		if l := gp.Core().Layout(); l != nil {
			m := max(vals[0], vals[1]) + vals[2]
			l.SetContentsMargins(m, m, m, m)
		}
	}
	return nil
}
