package qtemplate

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sambeau/pkmeter/pkg/pklog"
	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/markup"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

type testRoot struct {
	*widget.Base
	clicks int
	events []string
}

func newTestRoot() *testRoot {
	r := &testRoot{Base: widget.NewBase("TestRoot")}
	r.Bind(r)
	return r
}

func (r *testRoot) OnClick() { r.clicks++ }

func (r *testRoot) OnPress(ev *widget.Event) { r.events = append(r.events, ev.Type) }

func build(t *testing.T, src string, opts ...Option) (*Tree, *testRoot, error) {
	t.Helper()
	doc, err := markup.ParseString(src, "test.tmpl")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := newTestRoot()
	tree := New(root, opts...)
	_, err = tree.Build(doc, nil)
	return tree, root, err
}

func mustBuild(t *testing.T, src string, opts ...Option) (*Tree, *testRoot) {
	t.Helper()
	tree, root, err := build(t, src, opts...)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return tree, root
}

func TestBuildAppliesAttributesAndLayout(t *testing.T) {
	s := store.New()
	if err := s.SetValue("cpu.percent", 12); err != nil {
		t.Fatal(err)
	}
	tree, root := mustBuild(t, `
<Widget layout="vbox" padding="(1, 2)" toolTip="'cpu'" id="main">
  <Label id="title" text="'CPU {{ data.cpu.percent }}%'" />
  <ProgressBar id="bar" value="data.cpu.percent" />
  <Stretch />
</Widget>`, WithStore(s))

	if root.ToolTip() != "cpu" || root.ObjectName() != "main" {
		t.Errorf("root attrs: toolTip=%q name=%q", root.ToolTip(), root.ObjectName())
	}
	l := root.Layout()
	if l == nil || l.Kind() != widget.VBox {
		t.Fatalf("root layout = %v", l)
	}
	if got := l.ContentsMargins(); got != [4]int{1, 2, 1, 2} {
		t.Errorf("margins = %v", got)
	}
	if n := len(l.Items()); n != 3 {
		t.Errorf("layout items = %d, want 3", n)
	}
	title := tree.IDs["title"].(*widget.Label)
	bar := tree.IDs["bar"].(*widget.ProgressBar)
	if title.Text() != "CPU 12%" || bar.Value() != 12 {
		t.Errorf("initial: text=%q value=%d", title.Text(), bar.Value())
	}
	if title.Parent() != widget.Widget(root) {
		t.Error("label not parented to root")
	}
	if s.Count() != 2 {
		t.Errorf("bindings = %d, want 2", s.Count())
	}

	if err := s.SetValue("cpu.percent", 50); err != nil {
		t.Fatal(err)
	}
	if title.Text() != "CPU 50%" || bar.Value() != 50 {
		t.Errorf("after set: text=%q value=%d", title.Text(), bar.Value())
	}
	if err := s.SetValue("cpu", map[string]any{"percent": 7}); err != nil {
		t.Fatal(err)
	}
	if title.Text() != "CPU 7%" || bar.Value() != 7 {
		t.Errorf("after subtree set: text=%q value=%d", title.Text(), bar.Value())
	}
}

func TestLayoutDefaults(t *testing.T) {
	_, root := mustBuild(t, `<Widget layout="hbox" layout.spacing="4" />`,
		WithLayoutDefaults([4]int{30, 30, 30, 30}, 0))
	l := root.Layout()
	if l.ContentsMargins() != [4]int{30, 30, 30, 30} {
		t.Errorf("margins = %v", l.ContentsMargins())
	}
	if l.Spacing() != 4 {
		t.Errorf("spacing = %d, want 4", l.Spacing())
	}
}

func TestCustomPrefix(t *testing.T) {
	s := store.New()
	_ = s.SetValue("clock.time", "10:00")
	tree, _ := mustBuild(t, `
<Widget layout="vbox">
  <Label id="t" text="pk.clock.time" />
</Widget>`, WithStore(s), WithPrefix("pk"))
	label := tree.IDs["t"].(*widget.Label)
	_ = s.SetValue("clock.time", "10:01")
	if label.Text() != "10:01" {
		t.Errorf("text = %q", label.Text())
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
		line int
		hint string
	}{
		{"unknown attribute", "<Widget layout=\"vbox\">\n  <Label txet=\"'x'\" />\n</Widget>", "PARSE-0002", 2, "Did you mean `text`?"},
		{"unknown tag", "<Widget layout=\"vbox\">\n  <Lable />\n</Widget>", "PARSE-0001", 2, "Did you mean `Label`?"},
		{"unknown root", "<Widgit />", "PARSE-0001", 1, ""},
		{"unknown layout attribute", `<Widget layout="grid" layout.spacnig="1" />`, "PARSE-0002", 1, "Did you mean `layout.spacing`?"},
		{"padding without layout", `<Widget padding="4" />`, "PARSE-0010", 1, ""},
		{"stretch without layout", "<Widget>\n<Stretch />\n</Widget>", "PARSE-0010", 2, ""},
		{"unknown signal", "<Widget layout=\"vbox\">\n<Button>\n<Connect clikced=\"onClick\" />\n</Button>\n</Widget>", "PARSE-0005", 3, "Did you mean `clicked`?"},
		{"unknown callback", `<Widget><Connect mousePressEvent="nope" /></Widget>`, "UNDEF-0003", 1, ""},
		{"repeater without for", `<Widget><Repeater /></Widget>`, "PARSE-0003", 1, ""},
		{"bad repeater", `<Widget><Repeater for="data.rows" /></Widget>`, "PARSE-0006", 1, ""},
		{"repeat a string", `<Widget><Repeater for="x in 'abc'" /></Widget>`, "TYPE-0002", 1, ""},
		{"unresolved path", `<Widget layout="vbox"><Label text="data.nope" /></Widget>`, "UNDEF-0001", 1, ""},
		{"setter type", `<Widget layout="vbox"><ProgressBar value="'lots'" /></Widget>`, "TYPE-0001", 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := build(t, tt.src, WithFile("test.tmpl"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !terrors.Is(err, tt.code) {
				t.Fatalf("error %v, want code %s", err, tt.code)
			}
			var te *terrors.Error
			if !errors.As(err, &te) {
				t.Fatalf("not a structured error: %T", err)
			}
			if te.Line != tt.line {
				t.Errorf("line = %d, want %d", te.Line, tt.line)
			}
			if te.File != "test.tmpl" {
				t.Errorf("file = %q", te.File)
			}
			if tt.hint != "" && !strings.Contains(err.Error(), tt.hint) {
				t.Errorf("error %q lacks hint %q", err, tt.hint)
			}
		})
	}
}

func TestSetAndAdd(t *testing.T) {
	tree, _ := mustBuild(t, `
<Widget layout="vbox">
  <Label id="l">
    <Set text="'set'" wordWrap="true" />
  </Label>
  <ComboBox id="c">
    <Item args="'one'" />
    <addItem args="'two'" />
  </ComboBox>
  <Spacing args="6" />
</Widget>`)
	l := tree.IDs["l"].(*widget.Label)
	if l.Text() != "set" || !l.WordWrap() {
		t.Errorf("label text=%q wrap=%v", l.Text(), l.WordWrap())
	}
	c := tree.IDs["c"].(*widget.ComboBox)
	if !reflect.DeepEqual(c.Items(), []string{"one", "two"}) {
		t.Errorf("items = %v", c.Items())
	}
	items := tree.Root().Core().Layout().Items()
	if last := items[len(items)-1]; last.Spacing != 6 {
		t.Errorf("last item = %+v, want spacing 6", last)
	}
}

func TestConnect(t *testing.T) {
	tree, root := mustBuild(t, `
<Widget layout="vbox">
  <Button id="go" args="'Go'">
    <Connect clicked="onClick" mousePressEvent="onPress" />
  </Button>
</Widget>`)
	btn := tree.IDs["go"].(*widget.Button)
	if btn.Text() != "Go" {
		t.Errorf("constructor args: text = %q", btn.Text())
	}
	btn.Click()
	btn.Click()
	if root.clicks != 2 {
		t.Errorf("clicks = %d, want 2", root.clicks)
	}
	btn.HandleEvent("mousePressEvent", &widget.Event{})
	if !reflect.DeepEqual(root.events, []string{"mousePressEvent"}) {
		t.Errorf("events = %v", root.events)
	}
}

func TestConnectEventRunsOriginalFirst(t *testing.T) {
	doc, err := markup.ParseString(`<Widget><Connect mousePressEvent="onPress" /></Widget>`, "")
	if err != nil {
		t.Fatal(err)
	}
	root := newTestRoot()
	var order []string
	root.SetEventHandler("mousePressEvent", func(*widget.Event) { order = append(order, "original") })
	if _, err := New(root).Build(doc, nil); err != nil {
		t.Fatal(err)
	}
	root.HandleEvent("mousePressEvent", &widget.Event{})
	order = append(order, root.events...)
	if !reflect.DeepEqual(order, []string{"original", "mousePressEvent"}) {
		t.Errorf("order = %v", order)
	}
}

func TestConnectCallbackFromContext(t *testing.T) {
	called := 0
	doc, _ := markup.ParseString(`<Widget layout="vbox"><Button id="b"><Connect clicked="actions.refresh" /></Button></Widget>`, "")
	tree := New(newTestRoot(), WithContext(map[string]any{
		"actions": map[string]any{"refresh": func() { called++ }},
	}))
	if _, err := tree.Build(doc, nil); err != nil {
		t.Fatal(err)
	}
	tree.IDs["b"].(*widget.Button).Click()
	if called != 1 {
		t.Errorf("called = %d", called)
	}
}

func labels(w widget.Widget) []string {
	var out []string
	for _, c := range w.Core().Children() {
		if l, ok := c.(*widget.Label); ok {
			out = append(out, l.Text())
		}
	}
	return out
}

func TestRepeaterRebuildsFromScratch(t *testing.T) {
	s := store.New()
	_ = s.SetValue("suffix", "!")
	_ = s.SetValue("rows", []any{
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
	})
	tree, root := mustBuild(t, `
<Widget layout="vbox">
  <Repeater for="row in data.rows">
    <Label text="row.name + data.suffix" />
  </Repeater>
</Widget>`, WithStore(s))

	if got := labels(root); !reflect.DeepEqual(got, []string{"a!", "b!"}) {
		t.Fatalf("labels = %v", got)
	}
	if s.Count() != 3 {
		t.Errorf("bindings = %d, want 3", s.Count())
	}
	var old []widget.ID
	for _, c := range root.Children() {
		old = append(old, c.Core().ID())
	}

	err := s.SetValue("rows", []any{
		map[string]any{"name": "x"},
		map[string]any{"name": "y"},
		map[string]any{"name": "z"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := labels(root); !reflect.DeepEqual(got, []string{"x!", "y!", "z!"}) {
		t.Fatalf("labels after rebuild = %v", got)
	}
	for _, id := range old {
		if tree.Alive(id) {
			t.Errorf("widget %d survived the rebuild", id)
		}
		for _, c := range root.Children() {
			if c.Core().ID() == id {
				t.Errorf("widget %d reused", id)
			}
		}
	}
	if n := len(root.Layout().Items()); n != 3 {
		t.Errorf("layout items = %d, want 3", n)
	}
	if s.Count() != 4 {
		t.Errorf("bindings = %d, want 4", s.Count())
	}

	_ = s.SetValue("suffix", "?")
	if got := labels(root); !reflect.DeepEqual(got, []string{"x?", "y?", "z?"}) {
		t.Errorf("labels after suffix change = %v", got)
	}
}

func TestRepeaterIterables(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"range", `<Repeater for="i in 3"><Label text="i" /></Repeater>`, []string{"0", "1", "2"}},
		{"var form", `<Repeater var="x" for="['p', 'q']"><Label text="x" /></Repeater>`, []string{"p", "q"}},
		{"map keys", `<Repeater for="k in extra.m"><Label text="k" /></Repeater>`, []string{"a", "b"}},
		{"empty", `<Repeater for="i in 0"><Label text="i" /></Repeater>`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, root := mustBuild(t, `<Widget layout="vbox">`+tt.src+`</Widget>`,
				WithContext(map[string]any{"extra": map[string]any{"m": map[string]any{"b": 2, "a": 1}}}))
			if got := labels(root); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("labels = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGridCellAndBehavior(t *testing.T) {
	tree, _ := mustBuild(t, `
<Widget layout="vbox">
  <Frame id="f" layout="grid">
    <Label id="l" cell="(0, 1)">
      <DropShadow args="(2, 3, 5, 128)" />
    </Label>
  </Frame>
</Widget>`)
	grid := tree.IDs["f"].Core().Layout()
	if it := grid.Items()[0]; it.Row != 0 || it.Column != 1 {
		t.Errorf("cell = (%d, %d)", it.Row, it.Column)
	}
	shadow, _ := tree.IDs["l"].Core().Property("dropShadow")
	if !reflect.DeepEqual(shadow, expr.Tuple{2, 3, 5, 128}) {
		t.Errorf("dropShadow = %v", shadow)
	}
	if m := grid.ContentsMargins(); m != [4]int{8, 8, 8, 8} {
		t.Errorf("frame margins = %v, want 8s", m)
	}
}

func TestCloseRemovesBindings(t *testing.T) {
	s := store.New()
	_ = s.SetValue("v", 1)
	tree, root := mustBuild(t, `<Widget layout="vbox"><ProgressBar value="data.v" /><Label text="data.v" /></Widget>`, WithStore(s))
	if s.Count() != 2 || tree.Len() != 3 {
		t.Fatalf("bindings=%d widgets=%d", s.Count(), tree.Len())
	}
	tree.Close()
	if s.Count() != 0 || len(root.Children()) != 0 || tree.Len() != 1 {
		t.Errorf("after close: bindings=%d children=%d widgets=%d", s.Count(), len(root.Children()), tree.Len())
	}
	if err := s.SetValue("v", 2); err != nil {
		t.Errorf("set after close: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clock.tmpl")
	if err := os.WriteFile(path, []byte(`<Widget layout="vbox"><Label id="x" text="'hello'" /></Widget>`), 0o644); err != nil {
		t.Fatal(err)
	}
	log := pklog.NewBuffer()
	tree := New(newTestRoot(), WithLogger(log))
	if _, err := tree.Load(path, nil); err != nil {
		t.Fatal(err)
	}
	if tree.IDs["x"].(*widget.Label).Text() != "hello" {
		t.Error("label not built")
	}
	if !log.Contains("built " + path) {
		t.Errorf("log = %q", log.String())
	}
}

func TestIDsInContext(t *testing.T) {
	tree, _ := mustBuild(t, `
<Widget layout="vbox">
  <Label id="src" text="'copied'" />
  <Label id="dst" text="ids.src.Text" />
</Widget>`)
	if got := tree.IDs["dst"].(*widget.Label).Text(); got != "copied" {
		t.Errorf("text = %q", got)
	}
}
