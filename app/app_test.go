package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sambeau/pkmeter/config"
	"github.com/sambeau/pkmeter/pkg/datasource"
	"github.com/sambeau/pkmeter/pkg/desktop"
	"github.com/sambeau/pkmeter/pkg/pklog"
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// clockPlugin copies the bundled clock markup into a plugin directory of
// its own.
func clockPlugin(t *testing.T) string {
	t.Helper()
	markup, err := os.ReadFile(filepath.Join("..", "plugins", "Default", "clock.tmpl"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Desk", "manifest.json"), `{
  "name": "Desk", "version": "1",
  "components": [{"name": "Clock", "datasource": "clock.Clock", "widget": "clock.ClockWidget", "datanamespace": "clock"}]
}`)
	writeFile(t, filepath.Join(dir, "Desk", "clock.tmpl"), string(markup))
	return dir
}

func testConfig(dirs ...string) *config.Config {
	cfg := config.Defaults()
	cfg.PluginDirs = dirs
	cfg.Settings.DSN = ":memory:"
	cfg.DataSource.Interval = time.Hour
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, opts ...Option) (*App, *pklog.Buffer) {
	t.Helper()
	log := pklog.NewBuffer()
	a, err := New(cfg, &bytes.Buffer{}, &bytes.Buffer{}, append([]Option{WithLogger(log)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a, log
}

// runUntilReady runs the app until every widget is built, calls fn on the
// loop and quits.
func runUntilReady(t *testing.T, a *App, fn func()) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	select {
	case <-a.Ready():
	case <-ctx.Done():
		t.Fatal("app never became ready")
	}
	a.loop.Post(func() {
		if fn != nil {
			fn()
		}
		a.Quit()
	})
	return <-errc
}

func TestRunBuildsClock(t *testing.T) {
	a, log := newApp(t, testConfig(clockPlugin(t)))

	var dump bytes.Buffer
	if err := runUntilReady(t, a, func() { a.Dump(&dump) }); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(dump.String(), "# desk.clock") {
		t.Errorf("dump lacks the clock widget:\n%s", dump.String())
	}
	if !log.Contains("started 1 plugins, 1 data sources") {
		t.Errorf("log = %s", log.String())
	}
	if got := a.store.GetValue("clock.datetime.date", nil); got != time.Now().Format("2006-01-02") {
		t.Errorf("clock date = %v", got)
	}
	// Widgets are torn down when Run returns.
	if len(a.Widgets()) != 0 {
		t.Errorf("widgets after stop: %d", len(a.Widgets()))
	}
}

func TestStartupBuildErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Bad", "manifest.json"), `{
  "name": "Bad", "version": "1",
  "components": [{"name": "Broken", "widget": "clock.ClockWidget"}]
}`)
	writeFile(t, filepath.Join(dir, "Bad", "clock.tmpl"), `<Widget layout="vbox"><Labl /></Widget>`)
	a, _ := newApp(t, testConfig(dir))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.Run(ctx)
	if err == nil {
		t.Fatal("expected a build error")
	}
	if !strings.Contains(err.Error(), "Did you mean") {
		t.Errorf("error lacks hint: %v", err)
	}
	if ctx.Err() != nil {
		t.Error("Run waited for the timeout instead of stopping")
	}
}

// slowPlugin writes a plugin whose data source blocks until release is
// closed. builds counts widget factory calls.
func slowPlugin(t *testing.T, release chan struct{}) (string, *plugin.Catalog, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Slow", "manifest.json"), `{
  "name": "Slow", "version": "1",
  "components": [{"name": "Meter", "datasource": "slow.Source", "widget": "slow.Widget"}]
}`)
	writeFile(t, filepath.Join(dir, "Slow", "slow.tmpl"), `<Widget layout="vbox"><Label id="v" text="data.slow.meter.value" /></Widget>`)

	builds := &atomic.Int32{}
	widgets := desktop.WidgetFactory()
	catalog := plugin.NewCatalog()
	catalog.MustRegister("slow.Source", func(c *plugin.Component) (any, error) {
		return datasource.New(c, fetcher{c: c, release: release}), nil
	})
	catalog.MustRegister("slow.Widget", func(c *plugin.Component) (any, error) {
		builds.Add(1)
		return widgets(c)
	})
	return dir, catalog, builds
}

func TestWidgetWaitsForData(t *testing.T) {
	release := make(chan struct{})
	dir, catalog, builds := slowPlugin(t, release)
	a, _ := newApp(t, testConfig(dir), WithCatalog(catalog))

	go func() {
		time.Sleep(3 * readyPoll)
		close(release)
	}()
	if err := runUntilReady(t, a, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := builds.Load(); n != 1 {
		t.Errorf("widget built %d times", n)
	}
}

type fetcher struct {
	c       *plugin.Component
	release chan struct{}
}

func (f fetcher) Fetch(ctx context.Context) (any, error) {
	<-f.release
	return "ok", nil
}

func (f fetcher) Apply(result any) error { return f.c.SetValue("value", result) }

func TestShowSettingsAndQuitActions(t *testing.T) {
	dir := clockPlugin(t)
	writeFile(t, filepath.Join(dir, "Desk", "manifest.json"), `{
  "name": "Desk", "version": "1",
  "components": [{"name": "Clock", "datasource": "clock.Clock", "widget": "clock.ClockWidget", "settings": "clock.ClockSettings", "datanamespace": "clock"}]
}`)
	writeFile(t, filepath.Join(dir, "Desk", "clock_settings.tmpl"), `<Widget layout="hbox"><Label args="'Clock Settings'" /></Widget>`)
	a, log := newApp(t, testConfig(dir))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	<-a.Ready()

	a.loop.Post(func() {
		d := a.Widgets()["desk.clock"].(*desktop.DesktopWidget)
		d.Trigger("Preferences")
		if _, ok := a.SettingsPages()["desk.clock"]; !ok {
			t.Error("settings page not built")
		}
		d.Trigger("Quit")
	})
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Error("Quit did not stop the app")
	}
	if !log.Contains("preferences: 1 settings pages") {
		t.Errorf("log = %s", log.String())
	}
}

func TestReloadRebuilds(t *testing.T) {
	a, log := newApp(t, testConfig(clockPlugin(t)))
	a.Start()
	deadline := time.Now().Add(2 * time.Second)
	for len(a.Widgets()) == 0 && time.Now().Before(deadline) {
		a.loop.Drain()
		time.Sleep(readyPoll)
	}
	first := a.Widgets()["desk.clock"]
	if first == nil {
		t.Fatal("clock not built")
	}

	a.Reload()
	a.loop.Drain()
	second := a.Widgets()["desk.clock"]
	if second == nil || second == first {
		t.Fatalf("reload did not rebuild: %v", second)
	}
	if !first.Core().IsDestroyed() && len(first.Core().Children()) != 0 {
		t.Error("old widget kept its children")
	}
	if !log.Contains("reloading plugins") {
		t.Errorf("log = %s", log.String())
	}
	if got := a.Sources(); len(got) != 1 || !strings.Contains(got[0], "desk.clock running") {
		t.Errorf("sources = %v", got)
	}
	a.Stop()
}

func TestReloadDropsWaitingBuild(t *testing.T) {
	release := make(chan struct{})
	dir, catalog, builds := slowPlugin(t, release)
	a, _ := newApp(t, testConfig(dir), WithCatalog(catalog))

	a.Start()
	a.loop.Drain()
	a.Reload()
	a.loop.Drain()
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for len(a.Widgets()) == 0 && time.Now().Before(deadline) {
		a.loop.Drain()
		time.Sleep(readyPoll)
	}
	// Give the first start's polling a chance to fire as well.
	time.Sleep(3 * readyPoll)
	a.loop.Wait()
	a.loop.Drain()

	if n := builds.Load(); n != 1 {
		t.Errorf("widget built %d times, want 1", n)
	}
	if len(a.Widgets()) != 1 {
		t.Fatalf("widgets = %v", a.Widgets())
	}
	if n := a.store.Count(); n != 1 {
		t.Errorf("live bindings = %d, want 1", n)
	}
	select {
	case <-a.Ready():
	default:
		t.Error("not ready after the reloaded widget was built")
	}

	a.Stop()
	if n := a.store.Count(); n != 0 {
		t.Errorf("bindings after Stop = %d", n)
	}
}

func TestRelevant(t *testing.T) {
	tests := map[string]bool{
		"/p/Default/manifest.json": true,
		"/p/Default/manifest.yaml": true,
		"/p/Default/clock.tmpl":    true,
		"/p/Default/CLOCK.TMPL":    true,
		"/p/Default/notes.txt":     false,
		"/p/Default/manifest.bak":  false,
	}
	for path, want := range tests {
		if got := Relevant(path); got != want {
			t.Errorf("Relevant(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatcherReloadsOnMarkupChange(t *testing.T) {
	dir := clockPlugin(t)
	cfg := testConfig(dir)
	cfg.Dev.Watch = true
	cfg.Dev.Debounce = 20 * time.Millisecond
	a, _ := newApp(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	<-a.Ready()

	path := filepath.Join(dir, "Desk", "clock.tmpl")
	writeFile(t, path, `<Widget layout="vbox"><Label id="only" args="'changed'" /></Widget>`)

	deadline := time.Now().Add(3 * time.Second)
	for a.watcher.Reloads() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.watcher.Reloads() == 0 {
		t.Fatal("no reload after markup change")
	}
	found := make(chan bool, 1)
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		a.loop.Post(func() {
			w, ok := a.Widgets()["desk.clock"]
			found <- ok && widget.Find(w, "only") != nil
		})
		if <-found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	a.Quit()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNewRejectsBadSettingsDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Settings.Driver = "oracle"
	if _, err := New(cfg, &bytes.Buffer{}, &bytes.Buffer{}, WithLogger(pklog.Discard)); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog("htop")
	for _, ref := range []string{"clock.Clock", "clock.ClockWidget", "clock.ClockSettings", "system.System", "system.SystemWidget", "system.SystemSettings"} {
		if _, err := c.Lookup(ref); err != nil {
			t.Errorf("%s: %v", ref, err)
		}
	}
}
