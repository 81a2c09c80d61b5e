package desktop

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sambeau/pkmeter/pkg/loop"
	"github.com/sambeau/pkmeter/pkg/pklog"
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

type memSettings map[string]any

func (m memSettings) Get(key string, def any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func (m memSettings) Save(key string, value any) error {
	m[key] = value
	return nil
}

const meterManifest = `{
  "name": "Test",
  "version": "1",
  "components": [
    {"name": "Meter", "widget": "meter.Meter", "settings": "meter.MeterSettings", "datanamespace": "meter"}
  ]
}`

const meterWidget = `
<Widget layout="vbox">
  <Label id="value" text="'{{ data.meter.value }}%'" />
  <Button id="prefs" args="'Preferences'">
    <Connect clicked="ShowSettings" />
  </Button>
</Widget>`

const meterSettings = `
<Widget layout="vbox">
  <SpinBox id="interval" value="settings.interval" />
</Widget>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testComponent(t *testing.T, settings memSettings) (*plugin.Component, *plugin.Env) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "manifest.json"), meterManifest)
	writeFile(t, filepath.Join(dir, "meter.tmpl"), meterWidget)
	writeFile(t, filepath.Join(dir, "meter_settings.tmpl"), meterSettings)

	catalog := plugin.NewCatalog()
	catalog.MustRegister("meter.Meter", WidgetFactory())
	catalog.MustRegister("meter.MeterSettings", SettingsFactory())
	env := &plugin.Env{Store: store.New(), Settings: settings, Loop: loop.New(), Log: pklog.NewBuffer()}
	p, err := plugin.NewRegistry(catalog, env).Load(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	c := p.Components[0]
	if err := c.SetValue("value", 40); err != nil {
		t.Fatal(err)
	}
	return c, env
}

func TestDesktopWidgetBuildsAndBinds(t *testing.T) {
	settings := memSettings{"test/meter.pos": []any{120, 80}}
	c, _ := testComponent(t, settings)
	v, err := c.Instance(plugin.KindWidget)
	if err != nil {
		t.Fatal(err)
	}
	d := v.(*DesktopWidget)

	if x, y := d.Pos(); x != 120 || y != 80 {
		t.Errorf("pos = %d,%d", x, y)
	}
	if d.ObjectName() != "meter" {
		t.Errorf("object name = %q", d.ObjectName())
	}
	for name, want := range map[string]any{"class": "widget", "plugin": "test", "component": "meter"} {
		if got, _ := d.Property(name); got != want {
			t.Errorf("property %s = %v, want %v", name, got, want)
		}
	}
	if got := d.Layout().ContentsMargins(); got != DefaultMargins {
		t.Errorf("margins = %v", got)
	}

	label := d.Named("value").(*widget.Label)
	if label.Text() != "40%" {
		t.Errorf("label = %q", label.Text())
	}
	if err := c.SetValue("value", 75); err != nil {
		t.Fatal(err)
	}
	if label.Text() != "75%" {
		t.Errorf("label after update = %q", label.Text())
	}
}

func TestTemplateOptionsOverrideDefaults(t *testing.T) {
	c, env := testComponent(t, memSettings{})
	env.Template = &plugin.TemplateOptions{Margins: [4]int{4, 4, 4, 4}, Spacing: 2}
	d := NewDesktopWidget(c)
	if err := d.Build(c.Markup(plugin.KindWidget), nil); err != nil {
		t.Fatal(err)
	}
	l := d.Layout()
	if l.ContentsMargins() != [4]int{4, 4, 4, 4} || l.Spacing() != 2 {
		t.Errorf("layout = %v / %d", l.ContentsMargins(), l.Spacing())
	}
}

func TestDragSavesPosition(t *testing.T) {
	settings := memSettings{}
	c, _ := testComponent(t, settings)
	d := NewDesktopWidget(c)
	d.Move(10, 10)

	d.HandleEvent("mousePressEvent", &widget.Event{Button: widget.LeftButton, GlobalX: 15, GlobalY: 12})
	d.HandleEvent("mouseMoveEvent", &widget.Event{GlobalX: 55, GlobalY: 42})
	if x, y := d.Pos(); x != 50 || y != 40 {
		t.Errorf("pos while dragging = %d,%d", x, y)
	}
	if _, ok := settings["test/meter.pos"]; ok {
		t.Error("position saved before release")
	}
	d.HandleEvent("mouseReleaseEvent", &widget.Event{GlobalX: 55, GlobalY: 42})
	if got := settings["test/meter.pos"]; !reflect.DeepEqual(got, []int{50, 40}) {
		t.Errorf("saved pos = %v", got)
	}

	d.HandleEvent("mouseMoveEvent", &widget.Event{GlobalX: 500, GlobalY: 500})
	if x, _ := d.Pos(); x != 50 {
		t.Error("moved without a press")
	}
	d.HandleEvent("mousePressEvent", &widget.Event{Button: widget.RightButton})
	d.HandleEvent("mouseMoveEvent", &widget.Event{GlobalX: 500, GlobalY: 500})
	if x, _ := d.Pos(); x != 50 {
		t.Error("right button started a drag")
	}
}

func TestActions(t *testing.T) {
	c, env := testComponent(t, memSettings{})
	var shown, quit int
	env.ShowSettings = func() { shown++ }
	env.Quit = func() { quit++ }

	v, err := c.Instance(plugin.KindWidget)
	if err != nil {
		t.Fatal(err)
	}
	d := v.(*DesktopWidget)
	var names []string
	for _, a := range d.Actions() {
		names = append(names, a.Name)
	}
	if !reflect.DeepEqual(names, []string{"Preferences", "Quit"}) {
		t.Errorf("actions = %v", names)
	}
	d.Named("prefs").(*widget.Button).Click()
	if !d.Trigger("Quit") || d.Trigger("Missing") {
		t.Error("Trigger result")
	}
	if shown != 1 || quit != 1 {
		t.Errorf("shown=%d quit=%d", shown, quit)
	}
}

func TestSettingsWidget(t *testing.T) {
	settings := memSettings{"test/meter.interval": 5}
	c, _ := testComponent(t, settings)
	v, err := c.Instance(plugin.KindSettings)
	if err != nil {
		t.Fatal(err)
	}
	s := v.(*SettingsWidget)
	if got := s.Named("interval").(*widget.SpinBox).Value(); got != 5 {
		t.Errorf("spin box = %d", got)
	}
	if err := s.SaveSetting("interval", 9); err != nil {
		t.Fatal(err)
	}
	if s.GetSetting("interval", nil) != 9 {
		t.Errorf("setting = %v", s.GetSetting("interval", nil))
	}
	if err := s.SetValue("label", "x"); err != nil {
		t.Fatal(err)
	}
	if s.GetValue("label", nil) != "x" {
		t.Errorf("value = %v", s.GetValue("label", nil))
	}
	if s.Layout().ContentsMargins() != [4]int{} {
		t.Errorf("settings margins = %v", s.Layout().ContentsMargins())
	}
}
