// Package app is the pkmeter application root. It owns the store, the
// settings backend, the event loop and the plugin registry, starts every
// component's data source and builds its desktop widget.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sambeau/pkmeter/config"
	"github.com/sambeau/pkmeter/pkg/loop"
	"github.com/sambeau/pkmeter/pkg/pklog"
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate/filters"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
	"github.com/sambeau/pkmeter/pkg/settings"
	"github.com/sambeau/pkmeter/plugins/clock"
	"github.com/sambeau/pkmeter/plugins/system"
)

// ReadyTimeout bounds how long a widget waits for its data source's
// first values before it is built anyway.
const ReadyTimeout = 10 * time.Second

const readyPoll = 50 * time.Millisecond

// App is a running pkmeter instance.
type App struct {
	cfg        *config.Config
	configPath string
	log        pklog.Logger
	logFile    io.Closer
	stdout     io.Writer

	store    *store.Store
	settings *settings.Store
	loop     *loop.Loop
	registry *plugin.Registry

	mu      sync.Mutex
	plugins map[string]*plugin.Plugin
	sources []runner
	widgets map[string]widget.Widget
	pages   map[string]widget.Widget
	pending int
	gen     int
	failure error
	cancel  context.CancelFunc
	ready   chan struct{}
	reload  bool
	watcher *Watcher
}

// runner is a data source as built by a component factory: a
// datasource.Source or a type embedding one.
type runner interface {
	Start()
	Stop()
	Describe() string
}

// Option configures an App.
type Option func(*App)

// WithLogger replaces the logger built from the logging config.
func WithLogger(l pklog.Logger) Option {
	return func(a *App) { a.log = pklog.OrDiscard(l) }
}

// WithCatalog replaces the built-in component catalog.
func WithCatalog(c *plugin.Catalog) Option {
	return func(a *App) { a.registry.Catalog = c }
}

// WithConfigPath names the config file the watcher reports on.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// DefaultCatalog registers the built-in components. monitorCommand is
// what the System widget runs when its monitor button is clicked.
func DefaultCatalog(monitorCommand string) *plugin.Catalog {
	c := plugin.NewCatalog()
	clock.Register(c)
	system.Register(c, system.Monitor{Command: monitorCommand})
	return c
}

// New opens the settings backend and prepares the shared environment.
// Nothing runs until Run.
func New(cfg *config.Config, stdout, stderr io.Writer, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		stdout:  stdout,
		widgets: map[string]widget.Widget{},
		pages:   map[string]widget.Widget{},
		ready:   make(chan struct{}),
	}
	a.registry = plugin.NewRegistry(DefaultCatalog(cfg.Monitor), &plugin.Env{})
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		l, closer, err := newLogger(cfg.Logging, stdout, stderr)
		if err != nil {
			return nil, err
		}
		a.log, a.logFile = l, closer
	}

	if err := filters.SetLocale(cfg.Locale); err != nil {
		a.log.Warnf("%v, using en_US", err)
	}

	s, err := settings.Open(cfg.Settings.Driver, cfg.Settings.DSN)
	if err != nil {
		a.closeLog()
		return nil, err
	}
	a.settings = s
	a.store = store.New(store.WithLogger(a.log))
	a.loop = loop.New(loop.WithLogger(a.log))

	margins := cfg.LayoutMargins()
	env := a.registry.Env
	env.Store = a.store
	env.Settings = s
	env.Loop = a.loop
	env.Log = a.log
	env.Interval = cfg.DataSource.Interval
	env.Template = &plugin.TemplateOptions{
		Prefix:  cfg.Template.StorePrefix,
		Margins: margins,
		Spacing: cfg.Template.Spacing,
	}
	env.ShowSettings = a.ShowSettings
	env.Quit = a.Quit
	return a, nil
}

func newLogger(cfg config.LoggingConfig, stdout, stderr io.Writer) (pklog.Logger, io.Closer, error) {
	level, err := pklog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Output {
	case "", "stderr":
		return pklog.New(stderr, level, cfg.Format), nil, nil
	case "stdout":
		return pklog.New(stdout, level, cfg.Format), nil, nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return pklog.New(f, level, cfg.Format), f, nil
}

// Store returns the shared data store.
func (a *App) Store() *store.Store { return a.store }

// Loop returns the event loop.
func (a *App) Loop() *loop.Loop { return a.loop }

// Log returns the application logger.
func (a *App) Log() pklog.Logger { return a.log }

// Ready is closed once every widget found at startup has been built or
// has failed.
func (a *App) Ready() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Run starts every component and processes the loop until ctx is
// cancelled or Quit is called. A widget that fails to build at startup
// stops the application and is returned as the error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	if a.cfg.Dev.Watch {
		w, err := NewWatcher(a, a.cfg.PluginDirs, a.cfg.Dev.Debounce)
		if err != nil {
			a.log.Warnf("hot reload disabled: %v", err)
		} else {
			a.watcher = w
			w.Start(ctx)
		}
	}

	a.loop.Post(a.Start)
	if err := a.loop.Run(ctx); err != nil {
		return err
	}
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failure
}

// Start discovers plugins, starts their data sources and schedules their
// widgets. It runs on the loop goroutine.
func (a *App) Start() {
	plugins := a.registry.Discover(a.cfg.PluginDirs)
	a.mu.Lock()
	a.plugins = plugins
	a.gen++
	gen := a.gen
	a.pending = 0
	a.mu.Unlock()

	var comps []*plugin.Component
	for _, p := range plugin.Sorted(plugins) {
		comps = append(comps, p.Components...)
	}
	for _, c := range comps {
		if src := a.source(c); src != nil {
			src.Start()
		}
	}
	for _, c := range comps {
		if c.Ref(plugin.KindWidget) == "" {
			continue
		}
		a.mu.Lock()
		a.pending++
		a.mu.Unlock()
		a.buildWhenReady(gen, c, time.Now().Add(ReadyTimeout))
	}
	a.settle()
	a.log.Infof("started %d plugins, %d data sources", len(plugins), len(a.sources))
}

// source builds and records c's data source, if it declares one.
func (a *App) source(c *plugin.Component) runner {
	v, err := c.Instance(plugin.KindDataSource)
	if err != nil {
		a.log.Errorf("%v", err)
		return nil
	}
	if v == nil {
		return nil
	}
	src, ok := v.(runner)
	if !ok {
		a.log.Errorf("%v", plugin.KindError(c, plugin.KindDataSource, v, "datasource"))
		return nil
	}
	a.mu.Lock()
	a.sources = append(a.sources, src)
	a.mu.Unlock()
	return src
}

// buildWhenReady builds c's widget once its namespace holds values, or
// at deadline. A chain from an earlier Start stops without building.
func (a *App) buildWhenReady(gen int, c *plugin.Component, deadline time.Time) {
	if !a.current(gen) {
		a.log.Debugf("dropping stale build of %s", c.FullID)
		return
	}
	hasSource := c.Ref(plugin.KindDataSource) != ""
	if hasSource && a.store.GetValue(c.Namespace(), nil) == nil && time.Now().Before(deadline) {
		a.loop.AfterFunc(readyPoll, func() { a.buildWhenReady(gen, c, deadline) })
		return
	}
	v, err := c.Instance(plugin.KindWidget)
	w, ok := v.(widget.Widget)
	if err == nil && !ok {
		err = plugin.KindError(c, plugin.KindWidget, v, "widget")
	}

	a.mu.Lock()
	a.pending--
	var cancel context.CancelFunc
	switch {
	case err == nil:
		a.widgets[c.FullID] = w
	case !a.reload && a.failure == nil:
		// Startup build errors are fatal; after a reload they are only logged.
		a.failure = err
		cancel = a.cancel
	}
	a.mu.Unlock()

	if err != nil {
		a.log.Errorf("%v", err)
		if cancel != nil {
			cancel()
		}
	} else {
		a.log.Debugf("built widget %s", c.FullID)
	}
	a.settle()
}

func (a *App) current(gen int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen == a.gen
}

func (a *App) settle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == 0 {
		select {
		case <-a.ready:
		default:
			close(a.ready)
		}
	}
}

// Stop stops every data source and tears down the widgets. Widgets still
// waiting for data are abandoned.
func (a *App) Stop() {
	a.mu.Lock()
	a.gen++
	a.pending = 0
	sources := a.sources
	widgets := a.widgets
	pages := a.pages
	a.sources = nil
	a.widgets = map[string]widget.Widget{}
	a.pages = map[string]widget.Widget{}
	a.mu.Unlock()

	for _, s := range sources {
		s.Stop()
	}
	for _, w := range widgets {
		closeWidget(w)
	}
	for _, w := range pages {
		closeWidget(w)
	}
}

func closeWidget(w widget.Widget) {
	if c, ok := w.(interface{ Close() }); ok {
		c.Close()
	}
}

// Reload stops everything and starts again from the plugin directories.
// The watcher posts it to the loop when markup or manifests change.
func (a *App) Reload() {
	a.log.Infof("reloading plugins")
	a.Stop()
	a.mu.Lock()
	a.failure = nil
	a.reload = true
	a.ready = make(chan struct{})
	a.mu.Unlock()
	a.Start()
}

// Close releases the settings backend and the log file.
func (a *App) Close() error {
	err := a.settings.Close()
	a.closeLog()
	return err
}

func (a *App) closeLog() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// ShowSettings builds the settings page of every component that has one.
func (a *App) ShowSettings() {
	a.mu.Lock()
	plugins := a.plugins
	a.mu.Unlock()
	n := 0
	for _, p := range plugin.Sorted(plugins) {
		for _, c := range p.Components {
			if c.Ref(plugin.KindSettings) == "" {
				continue
			}
			v, err := c.Instance(plugin.KindSettings)
			if err != nil {
				a.log.Errorf("%v", err)
				continue
			}
			if w, ok := v.(widget.Widget); ok {
				a.mu.Lock()
				a.pages[c.FullID] = w
				a.mu.Unlock()
				n++
			}
		}
	}
	a.log.Infof("preferences: %d settings pages", n)
}

// Quit stops the loop.
func (a *App) Quit() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Plugins returns the loaded plugins.
func (a *App) Plugins() map[string]*plugin.Plugin {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plugins
}

// Widgets returns the built desktop widgets by full component ID.
func (a *App) Widgets() map[string]widget.Widget {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]widget.Widget, len(a.widgets))
	for k, v := range a.widgets {
		out[k] = v
	}
	return out
}

// SettingsPages returns the settings pages built by ShowSettings.
func (a *App) SettingsPages() map[string]widget.Widget {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]widget.Widget, len(a.pages))
	for k, v := range a.pages {
		out[k] = v
	}
	return out
}

// Sources describes every running data source.
func (a *App) Sources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.sources))
	for i, s := range a.sources {
		out[i] = s.Describe()
	}
	sort.Strings(out)
	return out
}

// Dump writes the widget tree of every desktop widget, in ID order.
func (a *App) Dump(w io.Writer) error {
	widgets := a.Widgets()
	ids := make([]string, 0, len(widgets))
	for id := range widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "# %s\n", id)
		if err := widget.Dump(w, widgets[id]); err != nil {
			return err
		}
	}
	return nil
}
