package widget

import "github.com/sambeau/pkmeter/pkg/qtemplate/expr"

// Container is a plain widget that only holds a layout.
type Container struct {
	*Base
}

func NewContainer(kind string) *Container {
	c := &Container{Base: NewBase(kind)}
	c.Bind(c)
	return c
}

// Label shows plain or rich text.
type Label struct {
	*Base
	text     string
	align    int
	wordWrap bool
	format   string
}

func NewLabel(text string) *Label {
	l := &Label{Base: NewBase("Label"), text: text, format: "plain"}
	l.Bind(l)
	return l
}

func (l *Label) Text() string       { return l.text }
func (l *Label) SetText(s string)   { l.text = s }
func (l *Label) Alignment() int     { return l.align }
func (l *Label) SetAlignment(a int) { l.align = a }
func (l *Label) WordWrap() bool     { return l.wordWrap }
func (l *Label) SetWordWrap(v bool) { l.wordWrap = v }
func (l *Label) Format() string     { return l.format }
func (l *Label) SetFormat(f string) { l.format = f }

// Button is a push button. It emits clicked with its checked state.
type Button struct {
	*Base
	text      string
	checkable bool
	checked   bool
}

func NewButton(text string) *Button {
	b := &Button{Base: NewBase("Button"), text: text}
	b.Bind(b)
	b.DefineSignal("clicked")
	b.DefineSignal("pressed")
	b.DefineSignal("released")
	b.DefineSignal("toggled")
	return b
}

func (b *Button) Text() string        { return b.text }
func (b *Button) SetText(s string)    { b.text = s }
func (b *Button) IsCheckable() bool   { return b.checkable }
func (b *Button) SetCheckable(v bool) { b.checkable = v }
func (b *Button) IsChecked() bool     { return b.checked }

func (b *Button) SetChecked(v bool) {
	if !b.checkable || v == b.checked {
		return
	}
	b.checked = v
	b.signals["toggled"].Emit(v)
}

// Click simulates a user click.
func (b *Button) Click() {
	if !b.enabled {
		return
	}
	b.signals["pressed"].Emit()
	b.signals["released"].Emit()
	if b.checkable {
		b.SetChecked(!b.checked)
	}
	b.signals["clicked"].Emit(b.checked)
}

// CheckBox is a labelled toggle.
type CheckBox struct {
	*Base
	text    string
	checked bool
}

func NewCheckBox(text string) *CheckBox {
	c := &CheckBox{Base: NewBase("CheckBox"), text: text}
	c.Bind(c)
	c.DefineSignal("toggled")
	c.DefineSignal("stateChanged")
	return c
}

func (c *CheckBox) Text() string     { return c.text }
func (c *CheckBox) SetText(s string) { c.text = s }
func (c *CheckBox) IsChecked() bool  { return c.checked }

func (c *CheckBox) SetChecked(v bool) {
	if v == c.checked {
		return
	}
	c.checked = v
	c.signals["toggled"].Emit(v)
	state := 0
	if v {
		state = 2
	}
	c.signals["stateChanged"].Emit(state)
}

// LineEdit is a single line text input.
type LineEdit struct {
	*Base
	text        string
	placeholder string
}

func NewLineEdit(text string) *LineEdit {
	e := &LineEdit{Base: NewBase("LineEdit"), text: text}
	e.Bind(e)
	e.DefineSignal("textChanged")
	e.DefineSignal("editingFinished")
	return e
}

func (e *LineEdit) Text() string                { return e.text }
func (e *LineEdit) PlaceholderText() string     { return e.placeholder }
func (e *LineEdit) SetPlaceholderText(s string) { e.placeholder = s }

func (e *LineEdit) SetText(s string) {
	if s == e.text {
		return
	}
	e.text = s
	e.signals["textChanged"].Emit(s)
}

// FinishEditing simulates the user leaving the field.
func (e *LineEdit) FinishEditing() { e.signals["editingFinished"].Emit() }

// ComboBox is a drop-down list. Items are added with <Item args="'text'"/>.
type ComboBox struct {
	*Base
	items   []string
	current int
}

func NewComboBox() *ComboBox {
	c := &ComboBox{Base: NewBase("ComboBox"), current: -1}
	c.Bind(c)
	c.DefineSignal("currentIndexChanged")
	return c
}

func (c *ComboBox) Items() []string   { return append([]string(nil), c.items...) }
func (c *ComboBox) CurrentIndex() int { return c.current }

func (c *ComboBox) AddItem(text string) {
	c.items = append(c.items, text)
	if c.current < 0 {
		c.SetCurrentIndex(0)
	}
}

func (c *ComboBox) SetCurrentIndex(i int) {
	if i < -1 || i >= len(c.items) || i == c.current {
		return
	}
	c.current = i
	c.signals["currentIndexChanged"].Emit(i)
}

// CurrentText returns the selected item, or "" when nothing is selected.
func (c *ComboBox) CurrentText() string {
	if c.current < 0 {
		return ""
	}
	return c.items[c.current]
}

func (c *ComboBox) Adders() map[string]Adder {
	return map[string]Adder{
		"Item": func(parent Widget, args []any) error {
			s, err := stringArg("addItem", args)
			if err == nil {
				parent.(*ComboBox).AddItem(s)
			}
			return err
		},
	}
}

// ProgressBar shows a value within a range.
type ProgressBar struct {
	*Base
	value    int
	min, max int
	format   string
}

func NewProgressBar() *ProgressBar {
	p := &ProgressBar{Base: NewBase("ProgressBar"), max: 100, format: "%p%"}
	p.Bind(p)
	return p
}

func (p *ProgressBar) Value() int         { return p.value }
func (p *ProgressBar) SetValue(v int)     { p.value = clamp(v, p.min, p.max) }
func (p *ProgressBar) Minimum() int       { return p.min }
func (p *ProgressBar) Maximum() int       { return p.max }
func (p *ProgressBar) SetMinimum(v int)   { p.min = v }
func (p *ProgressBar) SetMaximum(v int)   { p.max = v }
func (p *ProgressBar) Format() string     { return p.format }
func (p *ProgressBar) SetFormat(f string) { p.format = f }

// SpinBox is a numeric input.
type SpinBox struct {
	*Base
	value    int
	min, max int
}

func NewSpinBox() *SpinBox {
	s := &SpinBox{Base: NewBase("SpinBox"), max: 99}
	s.Bind(s)
	s.DefineSignal("valueChanged")
	return s
}

func (s *SpinBox) Value() int       { return s.value }
func (s *SpinBox) Minimum() int     { return s.min }
func (s *SpinBox) Maximum() int     { return s.max }
func (s *SpinBox) SetMinimum(v int) { s.min = v }
func (s *SpinBox) SetMaximum(v int) { s.max = v }

func (s *SpinBox) SetValue(v int) {
	v = clamp(v, s.min, s.max)
	if v == s.value {
		return
	}
	s.value = v
	s.signals["valueChanged"].Emit(v)
}

// Image shows a picture loaded from a path.
type Image struct {
	*Base
	source string
	scaled bool
}

func NewImage(source string) *Image {
	i := &Image{Base: NewBase("Image"), source: source}
	i.Bind(i)
	return i
}

func (i *Image) Source() string       { return i.source }
func (i *Image) SetSource(s string)   { i.source = s }
func (i *Image) ScaledContents() bool { return i.scaled }

func (i *Image) Attrs() map[string]Setter {
	return map[string]Setter{
		"scaledContents": func(w Widget, args []any) error {
			v, err := boolArg("scaledContents", args)
			if err == nil {
				w.(*Image).scaled = v
			}
			return err
		},
	}
}

// LineChart plots a rolling series of values, newest last.
type LineChart struct {
	*Base
	values   []float64
	maxValue float64
	capacity int
}

func NewLineChart() *LineChart {
	c := &LineChart{Base: NewBase("LineChart"), capacity: 60}
	c.Bind(c)
	return c
}

func (c *LineChart) Values() []float64 { return append([]float64(nil), c.values...) }
func (c *LineChart) MaxValue() float64 { return c.maxValue }

func (c *LineChart) SetValues(v []float64) {
	if len(v) > c.capacity {
		v = v[len(v)-c.capacity:]
	}
	c.values = append([]float64(nil), v...)
}

// AddValue appends one sample, dropping the oldest past capacity.
func (c *LineChart) AddValue(v float64) {
	c.SetValues(append(c.values, v))
}

func (c *LineChart) Attrs() map[string]Setter {
	return map[string]Setter{
		"maxValue": func(w Widget, args []any) error {
			v, err := oneArg("maxValue", args)
			if err != nil {
				return err
			}
			f, ok := expr.ToFloat(v)
			if !ok {
				return typeError("maxValue", "number", v)
			}
			w.(*LineChart).maxValue = f
			return nil
		},
		"capacity": func(w Widget, args []any) error {
			n, err := intArg("capacity", args)
			if err == nil {
				c := w.(*LineChart)
				c.capacity = n
				c.SetValues(c.values)
			}
			return err
		},
	}
}

func textArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	return expr.ToString(args[0])
}

// Builtins returns a registry holding the standard widget vocabulary.
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister("Widget", func([]any) (Widget, error) { return NewContainer("Widget"), nil })
	r.MustRegister("Frame", func([]any) (Widget, error) { return NewContainer("Frame"), nil })
	r.MustRegister("Label", func(args []any) (Widget, error) { return NewLabel(textArg(args)), nil })
	r.MustRegister("Button", func(args []any) (Widget, error) { return NewButton(textArg(args)), nil })
	r.MustRegister("PushButton", func(args []any) (Widget, error) { return NewButton(textArg(args)), nil })
	r.MustRegister("CheckBox", func(args []any) (Widget, error) { return NewCheckBox(textArg(args)), nil })
	r.MustRegister("LineEdit", func(args []any) (Widget, error) { return NewLineEdit(textArg(args)), nil })
	r.MustRegister("ComboBox", func([]any) (Widget, error) { return NewComboBox(), nil })
	r.MustRegister("ProgressBar", func([]any) (Widget, error) { return NewProgressBar(), nil })
	r.MustRegister("SpinBox", func([]any) (Widget, error) { return NewSpinBox(), nil })
	r.MustRegister("Image", func(args []any) (Widget, error) { return NewImage(textArg(args)), nil })
	r.MustRegister("LineChart", func([]any) (Widget, error) { return NewLineChart(), nil })
	return r
}
