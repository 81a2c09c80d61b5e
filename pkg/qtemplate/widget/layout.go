package widget

import (
	"fmt"
	"strings"
)

// Layout arranges the children of a widget.
type Layout interface {
	Kind() string
	// AddWidget places w in the layout and makes it a child of the layout's
	// owner. Grid layouts take row and column (and optional spans) in args.
	AddWidget(w Widget, args ...any) error
	RemoveWidget(w Widget)
	Widgets() []Widget
	Items() []LayoutItem
	// Clear removes every item. Widgets keep their parent.
	Clear()
	AddSpacing(size int)
	AddStretch(factor int)
	AddStrut(size int)
	ContentsMargins() [4]int
	SetContentsMargins(left, top, right, bottom int)
	Spacing() int
	SetSpacing(spacing int)
	Alignment() int
	SetAlignment(align int)
	Owner() *Base
	SetOwner(b *Base)
}

// LayoutItem is one entry of a layout: a widget, spacing, stretch or strut.
type LayoutItem struct {
	Widget  Widget
	Spacing int
	Stretch int
	Strut   int
	Row     int
	Column  int
	RowSpan int
	ColSpan int
}

// Layout kinds.
const (
	VBox = "vbox"
	HBox = "hbox"
	Grid = "grid"
)

// NewLayout creates a layout by kind name (vbox, hbox or grid, case-insensitive).
func NewLayout(kind string) (Layout, error) {
	switch strings.ToLower(kind) {
	case VBox, "vboxlayout", "qvboxlayout":
		return &BoxLayout{direction: VBox}, nil
	case HBox, "hboxlayout", "qhboxlayout":
		return &BoxLayout{direction: HBox}, nil
	case Grid, "gridlayout", "qgridlayout":
		return &GridLayout{}, nil
	}
	return nil, fmt.Errorf("unknown layout %q", kind)
}

type layoutBase struct {
	owner   *Base
	items   []LayoutItem
	margins [4]int
	spacing int
	align   int
}

func (l *layoutBase) Owner() *Base            { return l.owner }
func (l *layoutBase) SetOwner(b *Base)        { l.owner = b }
func (l *layoutBase) ContentsMargins() [4]int { return l.margins }
func (l *layoutBase) Spacing() int            { return l.spacing }
func (l *layoutBase) SetSpacing(spacing int)  { l.spacing = spacing }
func (l *layoutBase) Alignment() int          { return l.align }
func (l *layoutBase) SetAlignment(align int)  { l.align = align }
func (l *layoutBase) Items() []LayoutItem     { return append([]LayoutItem(nil), l.items...) }
func (l *layoutBase) AddSpacing(size int)     { l.items = append(l.items, LayoutItem{Spacing: size}) }
func (l *layoutBase) AddStretch(factor int)   { l.items = append(l.items, LayoutItem{Stretch: factor}) }
func (l *layoutBase) AddStrut(size int)       { l.items = append(l.items, LayoutItem{Strut: size}) }

func (l *layoutBase) Clear() { l.items = nil }

func (l *layoutBase) SetContentsMargins(left, top, right, bottom int) {
	l.margins = [4]int{left, top, right, bottom}
}

func (l *layoutBase) Widgets() []Widget {
	var out []Widget
	for _, it := range l.items {
		if it.Widget != nil {
			out = append(out, it.Widget)
		}
	}
	return out
}

func (l *layoutBase) RemoveWidget(w Widget) {
	for i, it := range l.items {
		if it.Widget != nil && it.Widget.Core() == w.Core() {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *layoutBase) adopt(w Widget) {
	if l.owner != nil && w.Core().parent != l.owner.self {
		l.owner.addChild(w)
	}
}

// BoxLayout stacks widgets vertically or horizontally.
type BoxLayout struct {
	layoutBase
	direction string
}

func (l *BoxLayout) Kind() string { return l.direction }

func (l *BoxLayout) AddWidget(w Widget, args ...any) error {
	item := LayoutItem{Widget: w}
	if len(args) > 0 {
		stretch, err := toInt(args[0])
		if err != nil {
			return fmt.Errorf("stretch: %w", err)
		}
		item.Stretch = stretch
	}
	l.adopt(w)
	l.items = append(l.items, item)
	return nil
}

// GridLayout places widgets in rows and columns.
type GridLayout struct {
	layoutBase
	columnStretch map[int]int
	rowStretch    map[int]int
	hSpacing      int
	vSpacing      int
}

func (l *GridLayout) Kind() string { return Grid }

// AddWidget takes row, column and optional rowSpan, colSpan. Without a
// position the widget goes in a new row.
func (l *GridLayout) AddWidget(w Widget, args ...any) error {
	pos := []int{l.RowCount(), 0, 1, 1}
	for i := 0; i < len(args) && i < 4; i++ {
		n, err := toInt(args[i])
		if err != nil {
			return fmt.Errorf("grid position: %w", err)
		}
		pos[i] = n
	}
	l.adopt(w)
	l.items = append(l.items, LayoutItem{Widget: w, Row: pos[0], Column: pos[1], RowSpan: pos[2], ColSpan: pos[3]})
	return nil
}

// RowCount returns one more than the highest occupied row.
func (l *GridLayout) RowCount() int {
	n := 0
	for _, it := range l.items {
		if it.Widget != nil && it.Row+it.RowSpan > n {
			n = it.Row + it.RowSpan
		}
	}
	return n
}

func (l *GridLayout) SetColumnStretch(col, stretch int) {
	if l.columnStretch == nil {
		l.columnStretch = map[int]int{}
	}
	l.columnStretch[col] = stretch
}

func (l *GridLayout) SetRowStretch(row, stretch int) {
	if l.rowStretch == nil {
		l.rowStretch = map[int]int{}
	}
	l.rowStretch[row] = stretch
}

func (l *GridLayout) ColumnStretch(col int) int { return l.columnStretch[col] }
func (l *GridLayout) RowStretch(row int) int    { return l.rowStretch[row] }

func (l *GridLayout) SetHorizontalSpacing(n int) { l.hSpacing = n }
func (l *GridLayout) SetVerticalSpacing(n int)   { l.vSpacing = n }

// LayoutSetter applies a layout.<attr> value.
type LayoutSetter func(l Layout, args []any) error

// LayoutAttrs are the attributes available as layout.<attr> in markup.
var LayoutAttrs = map[string]LayoutSetter{
	"spacing": func(l Layout, args []any) error {
		n, err := intArg("layout.spacing", args)
		if err != nil {
			return err
		}
		l.SetSpacing(n)
		return nil
	},
	"contentsMargins": func(l Layout, args []any) error {
		m, err := Margins("layout.contentsMargins", args)
		if err != nil {
			return err
		}
		l.SetContentsMargins(m[0], m[1], m[2], m[3])
		return nil
	},
	"alignment": func(l Layout, args []any) error {
		n, err := intArg("layout.alignment", args)
		if err != nil {
			return err
		}
		l.SetAlignment(n)
		return nil
	},
	"columnStretch":     gridPair("layout.columnStretch", (*GridLayout).SetColumnStretch),
	"rowStretch":        gridPair("layout.rowStretch", (*GridLayout).SetRowStretch),
	"horizontalSpacing": gridInt("layout.horizontalSpacing", (*GridLayout).SetHorizontalSpacing),
	"verticalSpacing":   gridInt("layout.verticalSpacing", (*GridLayout).SetVerticalSpacing),
}

func gridPair(attr string, set func(*GridLayout, int, int)) LayoutSetter {
	return func(l Layout, args []any) error {
		g, ok := l.(*GridLayout)
		if !ok {
			return typeError(attr, "grid layout", kindName(l.Kind()+" layout"))
		}
		a, b, err := intPair(attr, args)
		if err != nil {
			return err
		}
		set(g, a, b)
		return nil
	}
}

func gridInt(attr string, set func(*GridLayout, int)) LayoutSetter {
	return func(l Layout, args []any) error {
		g, ok := l.(*GridLayout)
		if !ok {
			return typeError(attr, "grid layout", kindName(l.Kind()+" layout"))
		}
		n, err := intArg(attr, args)
		if err != nil {
			return err
		}
		set(g, n)
		return nil
	}
}

// LayoutAdders back the add<Tag> fallback to the parent's layout.
var LayoutAdders = map[string]func(l Layout, args []any) error{
	"Spacing": func(l Layout, args []any) error {
		n, err := intArg("addSpacing", args)
		if err == nil {
			l.AddSpacing(n)
		}
		return err
	},
	"Stretch": func(l Layout, args []any) error {
		n := 0
		if len(args) > 0 {
			var err error
			if n, err = intArg("addStretch", args); err != nil {
				return err
			}
		}
		l.AddStretch(n)
		return nil
	},
	"Strut": func(l Layout, args []any) error {
		n, err := intArg("addStrut", args)
		if err == nil {
			l.AddStrut(n)
		}
		return err
	},
}

// Margins expands one, two or four numbers into left, top, right, bottom.
// Two numbers are horizontal then vertical.
func Margins(attr string, args []any) ([4]int, error) {
	nums := make([]int, len(args))
	for i, a := range args {
		n, err := toInt(a)
		if err != nil {
			return [4]int{}, typeError(attr, "number", a)
		}
		nums[i] = n
	}
	switch len(nums) {
	case 1:
		return [4]int{nums[0], nums[0], nums[0], nums[0]}, nil
	case 2:
		return [4]int{nums[0], nums[1], nums[0], nums[1]}, nil
	case 4:
		return [4]int{nums[0], nums[1], nums[2], nums[3]}, nil
	}
	return [4]int{}, countError(attr, "1, 2 or 4", len(nums))
}
