package widget

import (
	"fmt"
	"reflect"
	"sort"
)

// Signal is a named notification a widget emits, such as clicked.
type Signal struct {
	name  string
	slots []func(args ...any)
}

func (s *Signal) Name() string { return s.name }

// Connect appends a slot. Slots run in connection order.
func (s *Signal) Connect(slot func(args ...any)) {
	s.slots = append(s.slots, slot)
}

// Emit calls every connected slot with args.
func (s *Signal) Emit(args ...any) {
	for _, slot := range append([]func(args ...any){}, s.slots...) {
		slot(args...)
	}
}

// DisconnectAll removes every slot.
func (s *Signal) DisconnectAll() { s.slots = nil }

// Connections returns the number of connected slots.
func (s *Signal) Connections() int { return len(s.slots) }

// DefineSignal creates the named signal if it does not exist yet.
func (b *Base) DefineSignal(name string) *Signal {
	if s, ok := b.signals[name]; ok {
		return s
	}
	s := &Signal{name: name}
	b.signals[name] = s
	return s
}

// Signal returns the named signal.
func (b *Base) Signal(name string) (*Signal, bool) {
	s, ok := b.signals[name]
	return s, ok
}

// SignalNames lists the widget's signals, sorted.
func (b *Base) SignalNames() []string {
	names := make([]string, 0, len(b.signals))
	for name := range b.signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Event is delivered to event handlers.
type Event struct {
	Type     string
	X, Y     int
	GlobalX  int
	GlobalY  int
	Button   int
	Delta    int
	Accepted bool
}

// Mouse buttons.
const (
	NoButton = iota
	LeftButton
	RightButton
	MiddleButton
)

// EventHandler handles one kind of event.
type EventHandler func(*Event)

// StandardEvents are the handlers every widget has.
var StandardEvents = []string{
	"mousePressEvent",
	"mouseReleaseEvent",
	"mouseMoveEvent",
	"mouseDoubleClickEvent",
	"wheelEvent",
	"enterEvent",
	"leaveEvent",
	"resizeEvent",
	"showEvent",
	"hideEvent",
	"closeEvent",
}

// EventHandler returns the handler installed for name.
func (b *Base) EventHandler(name string) (EventHandler, bool) {
	h, ok := b.handlers[name]
	return h, ok
}

// SetEventHandler replaces the handler for name.
func (b *Base) SetEventHandler(name string, h EventHandler) {
	b.handlers[name] = h
}

// HandleEvent dispatches ev to the handler for name. It reports whether
// a handler exists.
func (b *Base) HandleEvent(name string, ev *Event) bool {
	h, ok := b.handlers[name]
	if !ok {
		return false
	}
	if ev.Type == "" {
		ev.Type = name
	}
	h(ev)
	return true
}

// Slot adapts an arbitrary Go function into a signal slot. Arguments are
// passed positionally, truncated to the function's arity; missing
// arguments are zero values. Results are ignored except a non-nil error,
// which is passed to onErr.
func Slot(fn any, onErr func(error)) (func(args ...any), error) {
	switch f := fn.(type) {
	case func(args ...any):
		return f, nil
	case func():
		return func(...any) { f() }, nil
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%T is not a function", fn)
	}
	ft := rv.Type()
	return func(args ...any) {
		in := make([]reflect.Value, 0, ft.NumIn())
		n := ft.NumIn()
		if ft.IsVariadic() {
			n--
		}
		for i := 0; i < n; i++ {
			want := ft.In(i)
			if i < len(args) && args[i] != nil {
				av := reflect.ValueOf(args[i])
				if av.Type().AssignableTo(want) {
					in = append(in, av)
					continue
				}
				if av.Type().ConvertibleTo(want) {
					in = append(in, av.Convert(want))
					continue
				}
			}
			in = append(in, reflect.Zero(want))
		}
		var out []reflect.Value
		if ft.IsVariadic() {
			in = append(in, reflect.MakeSlice(ft.In(n), 0, 0))
			out = rv.CallSlice(in)
		} else {
			out = rv.Call(in)
		}
		for _, o := range out {
			if err, ok := o.Interface().(error); ok && err != nil && onErr != nil {
				onErr(err)
			}
		}
	}, nil
}
