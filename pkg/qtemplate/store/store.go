// Package store holds the application's live data tree and the bindings
// that re-apply widget attributes when a value under a path changes.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sambeau/pkmeter/pkg/pklog"
	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// ErrNotMapping is returned when a path descends through a non-map value.
var ErrNotMapping = errors.New("not a mapping")

// Owner is the tree that created a registration. The store asks it
// whether a registration's widget still exists before replaying.
type Owner interface {
	Alive(id widget.ID) bool
}

// Registration binds an expression to a widget. When a value under Token
// changes the expression is re-evaluated in Context and the result passed
// to Callback.
type Registration struct {
	Owner    Owner
	Widget   widget.ID
	Token    string
	Callback func(value any) error
	Expr     string
	Context  expr.Context
}

// Store is a nested map addressed by dotted paths.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
	regs map[string][]*Registration
	log  pklog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report replay failures.
func WithLogger(l pklog.Logger) Option {
	return func(s *Store) { s.log = pklog.OrDiscard(l) }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data: map[string]any{},
		regs: map[string][]*Registration{},
		log:  pklog.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func splitPath(path string) ([]string, error) {
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, terrors.New("STORE-0002", map[string]any{"Path": path})
		}
	}
	return segs, nil
}

// SetValue stores value at path, creating intermediate maps, then replays
// every registration whose token overlaps path. Replay failures are
// returned together as a *ReplayError after all registrations have run.
func (s *Store) SetValue(path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	node := s.data
	for i, seg := range segs[:len(segs)-1] {
		next, ok := node[seg]
		if !ok {
			child := map[string]any{}
			node[seg] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			s.mu.Unlock()
			return terrors.Wrap("STORE-0001", ErrNotMapping, map[string]any{
				"Path":    path,
				"Segment": strings.Join(segs[:i+1], "."),
			})
		}
		node = child
	}
	node[segs[len(segs)-1]] = value
	s.mu.Unlock()

	return s.replay(path)
}

// GetValue returns the value at path, or def when any segment is missing.
func (s *Store) GetValue(path string, def any) any {
	segs, err := splitPath(path)
	if err != nil {
		return def
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cur any = s.data
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		if cur, ok = m[seg]; !ok {
			return def
		}
	}
	return cur
}

// Lookup returns a top-level entry.
func (s *Store) Lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Attr makes the store usable as the root of data.* expressions.
func (s *Store) Attr(name string) (any, bool) { return s.Lookup(name) }

// Keys lists the top-level entries, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a deep copy of the stored maps.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.data)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			v = copyMap(child)
		}
		out[k] = v
	}
	return out
}

// Load sets every top-level entry of values, as if by SetValue.
func (s *Store) Load(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var errs []error
	for _, k := range keys {
		if err := s.SetValue(k, values[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Register records a binding of src to widget id under token.
func (s *Store) Register(owner Owner, id widget.ID, token string, cb func(any) error, src string, ctx expr.Context) *Registration {
	r := &Registration{
		Owner:    owner,
		Widget:   id,
		Token:    token,
		Callback: cb,
		Expr:     src,
		Context:  ctx,
	}
	s.mu.Lock()
	s.regs[token] = append(s.regs[token], r)
	s.mu.Unlock()
	return r
}

// Unregister removes the registrations owner made for the given widgets.
func (s *Store) Unregister(owner Owner, ids ...widget.ID) {
	if len(ids) == 0 {
		return
	}
	dead := make(map[widget.ID]bool, len(ids))
	for _, id := range ids {
		dead[id] = true
	}
	s.remove(func(r *Registration) bool { return r.Owner == owner && dead[r.Widget] })
}

// UnregisterOwner removes every registration made by owner.
func (s *Store) UnregisterOwner(owner Owner) {
	s.remove(func(r *Registration) bool { return r.Owner == owner })
}

func (s *Store) remove(drop func(*Registration) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, regs := range s.regs {
		kept := regs[:0:0]
		for _, r := range regs {
			if !drop(r) {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(s.regs, token)
		} else {
			s.regs[token] = kept
		}
	}
}

// Registrations returns the registrations under token in append order.
func (s *Store) Registrations(token string) []*Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Registration(nil), s.regs[token]...)
}

// Count returns the total number of registrations.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, regs := range s.regs {
		n += len(regs)
	}
	return n
}

// Matches reports whether a change at path affects token: they are equal,
// or one is a dotted ancestor of the other.
func Matches(token, path string) bool {
	return token == path ||
		strings.HasPrefix(path, token+".") ||
		strings.HasPrefix(token, path+".")
}

func (s *Store) replay(path string) error {
	s.mu.RLock()
	var tokens []string
	for token := range s.regs {
		if Matches(token, path) {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	var pending []*Registration
	for _, token := range tokens {
		pending = append(pending, s.regs[token]...)
	}
	s.mu.RUnlock()

	var (
		errs  []error
		stale []*Registration
	)
	for _, r := range pending {
		if r.Owner != nil && !r.Owner.Alive(r.Widget) {
			stale = append(stale, r)
			continue
		}
		value, err := expr.Evaluate(r.Expr, r.Context, expr.WithCall())
		if err == nil {
			err = r.Callback(value)
		}
		if err != nil {
			s.log.Warnf("binding %q (token %s): %v", r.Expr, r.Token, err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Expr, err))
		}
	}

	if len(stale) > 0 {
		drop := make(map[*Registration]bool, len(stale))
		for _, r := range stale {
			drop[r] = true
		}
		s.remove(func(r *Registration) bool { return drop[r] })
	}

	if len(errs) > 0 {
		return &ReplayError{Path: path, Errors: errs}
	}
	return nil
}

// ReplayError collects the binding failures from one SetValue.
type ReplayError struct {
	Path   string
	Errors []error
}

func (e *ReplayError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("updating %s: %d binding(s) failed: %s", e.Path, len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ReplayError) Unwrap() []error { return e.Errors }
