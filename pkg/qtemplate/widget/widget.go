// Package widget is a headless widget host. It models the parts of a GUI
// toolkit the template engine needs: a widget tree with layouts, object
// names, properties, signals and event handlers. A real toolkit binding
// implements the same Widget interface.
package widget

import (
	"sort"
	"sync/atomic"
)

// ID identifies a widget instance. IDs are never reused within a process.
type ID uint64

var nextID atomic.Uint64

func newID() ID {
	return ID(nextID.Add(1))
}

// Widget is implemented by every widget. Concrete widgets embed *Base.
type Widget interface {
	Core() *Base
}

// Base holds the state shared by all widgets.
type Base struct {
	id         ID
	kind       string
	objectName string
	props      map[string]any
	layout     Layout
	parent     Widget
	self       Widget
	children   []Widget
	signals    map[string]*Signal
	handlers   map[string]EventHandler
	visible    bool
	enabled    bool
	destroyed  bool
	toolTip    string
	x, y       int
	width      int
	height     int
	minSize    [2]int
	maxSize    [2]int
}

// NewBase creates the shared state for a widget of the given kind. Call
// Bind with the concrete widget before adding it to a tree.
func NewBase(kind string) *Base {
	b := &Base{
		id:       newID(),
		kind:     kind,
		props:    map[string]any{},
		signals:  map[string]*Signal{},
		handlers: map[string]EventHandler{},
		visible:  true,
		enabled:  true,
		maxSize:  [2]int{maxSize, maxSize},
	}
	b.self = b
	for _, name := range StandardEvents {
		b.handlers[name] = func(*Event) {}
	}
	return b
}

const maxSize = 16777215

// Bind records the concrete widget that embeds b so that tree walks
// return it instead of the bare Base.
func (b *Base) Bind(w Widget) *Base {
	b.self = w
	return b
}

// Core returns b. It lets *Base satisfy Widget for embedding types.
func (b *Base) Core() *Base { return b }

// Self returns the concrete widget embedding b.
func (b *Base) Self() Widget { return b.self }

func (b *Base) ID() ID            { return b.id }
func (b *Base) Kind() string      { return b.kind }
func (b *Base) Parent() Widget    { return b.parent }
func (b *Base) IsDestroyed() bool { return b.destroyed }

// Children returns a copy of the widget's direct children.
func (b *Base) Children() []Widget {
	out := make([]Widget, len(b.children))
	copy(out, b.children)
	return out
}

// ObjectName is the name used to find the widget and to match style rules.
func (b *Base) ObjectName() string        { return b.objectName }
func (b *Base) SetObjectName(name string) { b.objectName = name }

// Property returns a dynamic property.
func (b *Base) Property(name string) (any, bool) {
	v, ok := b.props[name]
	return v, ok
}

// SetProperty sets a dynamic property such as the style class.
func (b *Base) SetProperty(name string, value any) {
	b.props[name] = value
}

// PropertyNames returns the names of all dynamic properties, sorted.
func (b *Base) PropertyNames() []string {
	names := make([]string, 0, len(b.props))
	for name := range b.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Base) Layout() Layout { return b.layout }

// SetLayout installs l as the widget's layout. Widgets already in a
// previous layout are moved into the new one.
func (b *Base) SetLayout(l Layout) {
	if b.layout != nil {
		for _, w := range b.layout.Widgets() {
			_ = l.AddWidget(w)
		}
	}
	b.layout = l
	l.SetOwner(b)
}

func (b *Base) IsVisible() bool       { return b.visible }
func (b *Base) SetVisible(v bool)     { b.visible = v }
func (b *Base) Show()                 { b.visible = true }
func (b *Base) Hide()                 { b.visible = false }
func (b *Base) IsEnabled() bool       { return b.enabled }
func (b *Base) SetEnabled(v bool)     { b.enabled = v }
func (b *Base) ToolTip() string       { return b.toolTip }
func (b *Base) SetToolTip(tip string) { b.toolTip = tip }

// Pos returns the widget position relative to its parent or the desktop.
func (b *Base) Pos() (x, y int) { return b.x, b.y }
func (b *Base) Move(x, y int)   { b.x, b.y = x, y }

func (b *Base) Size() (w, h int) { return b.width, b.height }

// Resize sets the size, clamped to the minimum and maximum sizes.
func (b *Base) Resize(w, h int) {
	b.width = clamp(w, b.minSize[0], b.maxSize[0])
	b.height = clamp(h, b.minSize[1], b.maxSize[1])
}

func (b *Base) SetMinimumSize(w, h int) {
	b.minSize = [2]int{w, h}
	b.Resize(b.width, b.height)
}

func (b *Base) SetMaximumSize(w, h int) {
	b.maxSize = [2]int{w, h}
	b.Resize(b.width, b.height)
}

func (b *Base) MinimumSize() (int, int) { return b.minSize[0], b.minSize[1] }
func (b *Base) MaximumSize() (int, int) { return b.maxSize[0], b.maxSize[1] }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (b *Base) addChild(w Widget) {
	if p := w.Core().parent; p != nil {
		p.Core().removeChild(w)
	}
	w.Core().parent = b.self
	b.children = append(b.children, w)
}

func (b *Base) removeChild(w Widget) {
	for i, c := range b.children {
		if c.Core() == w.Core() {
			b.children = append(b.children[:i], b.children[i+1:]...)
			break
		}
	}
	if b.layout != nil {
		b.layout.RemoveWidget(w)
	}
	w.Core().parent = nil
}

// SetParent attaches w to parent without placing it in a layout.
func SetParent(w, parent Widget) {
	if parent == nil {
		if p := w.Core().parent; p != nil {
			p.Core().removeChild(w)
		}
		return
	}
	parent.Core().addChild(w)
}

// Destroy detaches w from its parent and tears down w and all of its
// descendants. It returns the IDs of every destroyed widget.
func Destroy(w Widget) []ID {
	b := w.Core()
	if p := b.parent; p != nil {
		p.Core().removeChild(w)
	}
	var ids []ID
	Walk(w, func(d Widget) bool {
		db := d.Core()
		db.destroyed = true
		for _, s := range db.signals {
			s.DisconnectAll()
		}
		ids = append(ids, db.id)
		return true
	})
	return ids
}

// DestroyChildren destroys every child of w and returns their IDs.
func DestroyChildren(w Widget) []ID {
	var ids []ID
	for _, c := range w.Core().Children() {
		ids = append(ids, Destroy(c)...)
	}
	return ids
}

// Walk visits w and its descendants depth first. Returning false from fn
// skips the node's children.
func Walk(w Widget, fn func(Widget) bool) {
	if !fn(w.Core().self) {
		return
	}
	for _, c := range w.Core().Children() {
		Walk(c, fn)
	}
}

// Find returns the first descendant of w (or w itself) with the given
// object name.
func Find(w Widget, name string) Widget {
	var found Widget
	Walk(w, func(d Widget) bool {
		if found != nil {
			return false
		}
		if d.Core().objectName == name {
			found = d
			return false
		}
		return true
	})
	return found
}
