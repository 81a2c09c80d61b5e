// Package qtemplate builds widget trees from markup and keeps them bound
// to a reactive store.
//
// A Tree owns an existing root widget. Build walks a markup document,
// applying the root element's attributes to the root and constructing
// every child element below it. Attribute expressions that reference the
// store (data.cpu.percent) are registered so the attribute is re-applied
// whenever the value changes.
package qtemplate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sambeau/pkmeter/pkg/pklog"
	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/markup"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// Tree is a widget tree built from markup.
type Tree struct {
	// IDs maps id attributes to the widgets that carry them.
	IDs map[string]widget.Widget

	root      widget.Widget
	rootType  *widget.Type
	store     *store.Store
	tags      *Tags
	callbacks any
	extra     map[string]any
	prefix    string
	margins   *[4]int
	spacing   *int
	log       pklog.Logger
	file      string

	mu    sync.RWMutex
	live  map[widget.ID]widget.Widget
	types map[widget.ID]*widget.Type
}

// Option configures a Tree.
type Option func(*Tree)

// WithStore sets the store bindings are registered in.
func WithStore(s *store.Store) Option {
	return func(t *Tree) { t.store = s }
}

// WithTags replaces the tag vocabulary.
func WithTags(tags *Tags) Option {
	return func(t *Tree) { t.tags = tags }
}

// WithCallbacks sets the object Connect paths are resolved against. It
// defaults to the root widget.
func WithCallbacks(obj any) Option {
	return func(t *Tree) { t.callbacks = obj }
}

// WithContext adds names to the expression context.
func WithContext(extra map[string]any) Option {
	return func(t *Tree) {
		for k, v := range extra {
			t.extra[k] = v
		}
	}
}

// WithPrefix sets the dependency prefix. The context name of the store is
// the prefix without its trailing dot.
func WithPrefix(prefix string) Option {
	return func(t *Tree) {
		if prefix != "" && !strings.HasSuffix(prefix, ".") {
			prefix += "."
		}
		t.prefix = prefix
	}
}

// WithLayoutDefaults sets the margins and spacing applied whenever a
// layout attribute creates a layout.
func WithLayoutDefaults(margins [4]int, spacing int) Option {
	return func(t *Tree) {
		t.margins = &margins
		t.spacing = &spacing
	}
}

// WithLogger sets the build logger.
func WithLogger(l pklog.Logger) Option {
	return func(t *Tree) { t.log = pklog.OrDiscard(l) }
}

// WithFile names the markup source in error messages.
func WithFile(name string) Option {
	return func(t *Tree) { t.file = name }
}

// New returns a tree rooted at root.
func New(root widget.Widget, opts ...Option) *Tree {
	t := &Tree{
		IDs:    map[string]widget.Widget{},
		root:   root,
		extra:  map[string]any{},
		prefix: expr.DefaultPrefix,
		log:    pklog.Discard,
		live:   map[widget.ID]widget.Widget{},
		types:  map[widget.ID]*widget.Type{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.store == nil {
		t.store = store.New(store.WithLogger(t.log))
	}
	if t.tags == nil {
		t.tags = DefaultTags()
	}
	if t.callbacks == nil {
		t.callbacks = root
	}
	t.rootType = widget.TypeFor(root)
	return t
}

// Root returns the root widget.
func (t *Tree) Root() widget.Widget { return t.root }

// Store returns the store bindings are registered in.
func (t *Tree) Store() *store.Store { return t.store }

// Context returns the base expression context: the store under its data
// name, self, ids, the widget constants and any extra names.
func (t *Tree) Context() expr.Context {
	ctx := expr.Context(widget.Constants())
	ctx["self"] = t.root
	ctx["ids"] = idTable{t}
	if name := strings.TrimSuffix(t.prefix, "."); name != "" {
		ctx[name] = t.store
	}
	return ctx.Merge(t.extra)
}

// Build walks doc. The root element's attributes are applied to the root
// widget and its children are built beneath it. ctx adds names for this
// build only. The first error aborts the build.
func (t *Tree) Build(doc *markup.Element, ctx expr.Context) (widget.Widget, error) {
	if doc == nil {
		return nil, terrors.New("PARSE-0008", nil).WithFile(t.file)
	}
	if _, ok := t.tags.Resolve(doc.Tag); !ok {
		return nil, t.errorAt(doc, t.unknownTag(doc.Tag, "template"))
	}
	t.track(t.root, t.rootType)
	bctx := t.Context().Merge(ctx)
	if err := t.applyAttrs(doc, t.root, t.rootType, bctx); err != nil {
		return nil, err
	}
	if err := t.walkChildren(doc, t.root, bctx); err != nil {
		return nil, err
	}
	t.log.Debugf("built %s: %d widgets, %d bindings", t.name(), t.Len(), t.store.Count())
	return t.root, nil
}

// Load parses the markup file at path and builds it.
func (t *Tree) Load(path string, ctx expr.Context) (widget.Widget, error) {
	doc, err := markup.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if t.file == "" {
		t.file = path
	}
	return t.Build(doc, ctx)
}

// Alive reports whether id is a live widget of this tree.
func (t *Tree) Alive(id widget.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.live[id]
	return ok && !w.Core().IsDestroyed()
}

// Len returns the number of live widgets, including the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.live)
}

// Close removes the tree's bindings and destroys everything below the root.
func (t *Tree) Close() {
	t.store.UnregisterOwner(t)
	t.forget(widget.DestroyChildren(t.root))
	if l := t.root.Core().Layout(); l != nil {
		l.Clear()
	}
	t.IDs = map[string]widget.Widget{}
}

func (t *Tree) track(w widget.Widget, typ *widget.Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := w.Core().ID()
	t.live[id] = w
	t.types[id] = typ
}

func (t *Tree) forget(ids []widget.ID) {
	t.mu.Lock()
	for _, id := range ids {
		delete(t.live, id)
		delete(t.types, id)
	}
	t.mu.Unlock()
	for name, w := range t.IDs {
		if w.Core().IsDestroyed() {
			delete(t.IDs, name)
		}
	}
}

func (t *Tree) typeOf(w widget.Widget) *widget.Type {
	t.mu.RLock()
	typ, ok := t.types[w.Core().ID()]
	t.mu.RUnlock()
	if ok {
		return typ
	}
	return widget.TypeFor(w)
}

func (t *Tree) name() string {
	if t.file != "" {
		return t.file
	}
	return t.root.Core().Kind()
}

// errorAt attaches the element's line and the tree's file to err.
func (t *Tree) errorAt(el *markup.Element, err error) error {
	if te, ok := err.(*terrors.Error); ok {
		if te.Line == 0 {
			te = te.WithLine(el.Line)
		}
		if te.File == "" && t.file != "" {
			te = te.WithFile(t.file)
		}
		return te
	}
	if t.file != "" {
		return fmt.Errorf("%s: line %d: <%s>: %w", t.file, el.Line, el.Tag, err)
	}
	return fmt.Errorf("line %d: <%s>: %w", el.Line, el.Tag, err)
}

// idTable exposes Tree.IDs to expressions as ids.<name>.
type idTable struct{ t *Tree }

func (ids idTable) Attr(name string) (any, bool) {
	w, ok := ids.t.IDs[name]
	return w, ok
}
