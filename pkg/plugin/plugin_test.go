package plugin

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sambeau/pkmeter/pkg/loop"
	"github.com/sambeau/pkmeter/pkg/pklog"
	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
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

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testRegistry(log pklog.Logger) (*Registry, *Env) {
	catalog := NewCatalog()
	catalog.MustRegister("clock.ClockSource", func(c *Component) (any, error) { return "source:" + c.FullID, nil })
	catalog.MustRegister("clock.ClockWidget", func(c *Component) (any, error) { return "widget:" + c.FullID, nil })
	env := &Env{Store: store.New(), Settings: memSettings{}, Loop: loop.New(), Log: log}
	return NewRegistry(catalog, env), env
}

const clockManifest = `{
  "name": "Default",
  "version": "1.0",
  "author": "pkmeter",
  "components": [
    {"name": "Clock", "datasource": "clock.ClockSource", "widget": "clock.ClockWidget", "datanamespace": "clock"},
    {"name": "File System!"}
  ]
}`

func TestIdentity(t *testing.T) {
	tests := map[string]string{
		"File System": "filesystem",
		"My Plugin!":  "myplugin",
		"cpu_usage 2": "cpu_usage2",
		"Ünïcode":     "ünïcode",
		"":            "",
	}
	for in, want := range tests {
		if got := Identity(in); got != want {
			t.Errorf("Identity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDiscoverSkipsBrokenPlugins(t *testing.T) {
	good := t.TempDir()
	bad := t.TempDir()
	writeFile(t, filepath.Join(good, "Default", "manifest.json"), clockManifest)
	writeFile(t, filepath.Join(bad, "Broken", "manifest.json"), `{
  "name": "Broken", "version": "0.1",
  "components": [{"name": "Thing", "widget": "thing.Missing"}]
}`)
	writeFile(t, filepath.Join(bad, "Garbage", "manifest.json"), `{"name": `)

	log := pklog.NewBuffer()
	reg, _ := testRegistry(log)
	plugins := reg.Discover([]string{good, bad, filepath.Join(bad, "does-not-exist")})

	if len(plugins) != 1 {
		t.Fatalf("plugins = %v", plugins)
	}
	p, ok := plugins["default"]
	if !ok {
		t.Fatal("default plugin missing")
	}
	if !log.Contains("Broken") || !log.Contains("thing.Missing") {
		t.Errorf("no warning for missing module: %q", log.String())
	}
	if !log.Contains("Garbage") {
		t.Errorf("no warning for bad manifest: %q", log.String())
	}

	if len(p.Components) != 2 {
		t.Fatalf("components = %d", len(p.Components))
	}
	clock, fs := p.Components[0], p.Components[1]
	if clock.ID != "clock" || clock.FullID != "default.clock" || fs.FullID != "default.filesystem" {
		t.Errorf("ids: %s %s", clock.FullID, fs.FullID)
	}
	if clock.Namespace() != "clock" || fs.Namespace() != "default.filesystem" {
		t.Errorf("namespaces: %s %s", clock.Namespace(), fs.Namespace())
	}
	if got := clock.Markup(KindWidget); got != filepath.Join(good, "Default", "clock.tmpl") {
		t.Errorf("markup = %s", got)
	}
	v, err := clock.Instance(KindWidget)
	if err != nil || v != "widget:default.clock" {
		t.Errorf("widget = %v, %v", v, err)
	}
	if v, err := fs.Instance(KindDataSource); v != nil || err != nil {
		t.Errorf("undeclared module = %v, %v", v, err)
	}
}

func TestDiscoverDepthAndDuplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b", "manifest.yaml"), "name: Deep\nversion: '1'\n")
	writeFile(t, filepath.Join(root, "a", "b", "c", "manifest.json"), `{"name": "TooDeep", "version": "1"}`)
	writeFile(t, filepath.Join(root, "x", "manifest.json"), `{"name": "Deep", "version": "2"}`)

	log := pklog.NewBuffer()
	reg, _ := testRegistry(log)
	plugins := reg.Discover([]string{root})
	if _, ok := plugins["toodeep"]; ok {
		t.Error("manifest below max depth was loaded")
	}
	p, ok := plugins["deep"]
	if !ok || p.Version != "1" {
		t.Fatalf("deep = %+v", p)
	}
	if !log.Contains("already loaded") {
		t.Errorf("no duplicate warning: %q", log.String())
	}

	reg.MaxDepth = 3
	if _, ok := reg.Discover([]string{root})["toodeep"]; !ok {
		t.Error("MaxDepth 3 should reach the deeper manifest")
	}
}

func TestManifestValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"no name", `{"version": "1"}`, "PLUGIN-0002"},
		{"no version", `{"name": "x"}`, "PLUGIN-0002"},
		{"component without name", `{"name": "x", "version": "1", "components": [{}]}`, "PLUGIN-0002"},
		{"syntax", `{"name": "x",,}`, "PLUGIN-0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			writeFile(t, path, tt.content)
			_, err := LoadManifest(path)
			if !terrors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCatalogLookup(t *testing.T) {
	reg, _ := testRegistry(nil)
	if _, err := reg.Catalog.Lookup("clock"); !terrors.Is(err, "PLUGIN-0004") {
		t.Errorf("bad ref err = %v", err)
	}
	_, err := reg.Catalog.Lookup("clock.ClockWidgte")
	if !terrors.Is(err, "PLUGIN-0003") || !strings.Contains(err.Error(), "clock.ClockWidget") {
		t.Errorf("missing ref err = %v", err)
	}
}

func TestComponentValuesAndSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Default", "manifest.json"), clockManifest)
	reg, env := testRegistry(nil)
	p := reg.Discover([]string{dir})["default"]
	clock, _ := p.Component("clock")

	if err := clock.SaveSetting("pos", []int{5, 6}); err != nil {
		t.Fatal(err)
	}
	if got := env.Settings.Get("default/clock.pos", nil); !reflect.DeepEqual(got, []int{5, 6}) {
		t.Errorf("stored setting = %v", got)
	}
	if got := clock.GetSetting("interval", 1000); got != 1000 {
		t.Errorf("default setting = %v", got)
	}

	if err := clock.SetValue("time", "12:00"); err != nil {
		t.Fatal(err)
	}
	if got := env.Store.GetValue("clock.time", nil); got != "12:00" {
		t.Errorf("store value = %v", got)
	}
	clock.SetValueAsync("time", "12:01")
	if clock.GetValue("time", nil) != "12:00" {
		t.Error("async set applied before the loop ran")
	}
	env.Loop.Drain()
	if clock.GetValue("time", nil) != "12:01" {
		t.Errorf("after drain = %v", clock.GetValue("time", nil))
	}
}

func TestSortedAndByAuthor(t *testing.T) {
	plugins := map[string]*Plugin{
		"b": {ID: "b", Name: "Beta", Author: "ann"},
		"a": {ID: "a", Name: "Alpha", Author: "bob"},
		"c": {ID: "c", Name: "Gamma", Author: "ann"},
		"d": {ID: "d", Name: "Delta"},
	}
	var names []string
	for _, p := range Sorted(plugins) {
		names = append(names, p.Name)
	}
	if !reflect.DeepEqual(names, []string{"Alpha", "Beta", "Delta", "Gamma"}) {
		t.Errorf("sorted = %v", names)
	}
	groups := ByAuthor(plugins)
	if len(groups["ann"]) != 2 || groups["ann"][0].Name != "Beta" || groups["ann"][1].Name != "Gamma" {
		t.Errorf("ann = %v", groups["ann"])
	}
	if len(groups[""]) != 1 || len(groups["bob"]) != 1 {
		t.Errorf("groups = %v", groups)
	}
}
