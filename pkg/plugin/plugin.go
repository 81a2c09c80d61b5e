// Package plugin discovers plugin directories and the components they
// declare. A plugin is a directory holding a manifest and the markup its
// components use; component behavior comes from Go factories registered
// in a Catalog.
package plugin

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sambeau/pkmeter/pkg/loop"
	"github.com/sambeau/pkmeter/pkg/pklog"
	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
	"github.com/sambeau/pkmeter/pkg/qtemplate/store"
)

// Settings is the persisted key/value backend components read and write.
type Settings interface {
	Get(key string, def any) any
	Save(key string, value any) error
}

// Env is what components share: the reactive store, persisted settings,
// the event loop, a logger and the application actions widgets offer.
type Env struct {
	Store    *store.Store
	Settings Settings
	Loop     *loop.Loop
	Log      pklog.Logger

	// Template overrides the markup defaults when set.
	Template *TemplateOptions
	// Interval is the data source tick interval when non-zero.
	Interval time.Duration

	ShowSettings func()
	Quit         func()
}

// TemplateOptions are the application-wide markup settings.
type TemplateOptions struct {
	Prefix  string
	Margins [4]int
	Spacing int
}

// Module kinds a component can declare.
const (
	KindDataSource = "datasource"
	KindSettings   = "settings"
	KindWidget     = "widget"
)

// Plugin is a discovered plugin directory.
type Plugin struct {
	ID          string
	Name        string
	Version     string
	Author      string
	Description string
	RootDir     string
	Manifest    *Manifest
	Components  []*Component
}

// Component returns the component with the given ID.
func (p *Plugin) Component(id string) (*Component, bool) {
	for _, c := range p.Components {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Component is one entry of a plugin's components list.
type Component struct {
	Plugin   *Plugin
	ID       string
	FullID   string
	Name     string
	Manifest ComponentManifest

	env       *Env
	factories map[string]Factory

	mu        sync.Mutex
	instances map[string]any
}

// Env returns the shared environment.
func (c *Component) Env() *Env { return c.env }

// Log returns the component's logger.
func (c *Component) Log() pklog.Logger { return pklog.OrDiscard(c.env.Log) }

// Namespace is the store path the component's values live under: the
// manifest's datanamespace, or the full ID.
func (c *Component) Namespace() string {
	if c.Manifest.DataNamespace != "" {
		return c.Manifest.DataNamespace
	}
	return c.FullID
}

// SettingKey returns the persisted key for a setting name.
func (c *Component) SettingKey(name string) string {
	return fmt.Sprintf("%s/%s.%s", c.Plugin.ID, c.ID, name)
}

// GetSetting returns a persisted setting, or def.
func (c *Component) GetSetting(name string, def any) any {
	if c.env.Settings == nil {
		return def
	}
	return c.env.Settings.Get(c.SettingKey(name), def)
}

// SaveSetting persists a setting.
func (c *Component) SaveSetting(name string, value any) error {
	if c.env.Settings == nil {
		return fmt.Errorf("%s: no settings backend", c.FullID)
	}
	return c.env.Settings.Save(c.SettingKey(name), value)
}

// GetValue reads name from the store under the component's namespace.
func (c *Component) GetValue(name string, def any) any {
	return c.env.Store.GetValue(c.Namespace()+"."+name, def)
}

// SetValue writes name under the component's namespace. It must run on
// the loop goroutine.
func (c *Component) SetValue(name string, value any) error {
	return c.env.Store.SetValue(c.Namespace()+"."+name, value)
}

// SetValueAsync posts SetValue to the loop. Use it from worker goroutines.
func (c *Component) SetValueAsync(name string, value any) {
	c.env.Loop.Post(func() {
		if err := c.SetValue(name, value); err != nil {
			c.Log().Warnf("%s: setting %s: %v", c.FullID, name, err)
		}
	})
}

// Ref returns the module reference declared for kind.
func (c *Component) Ref(kind string) string {
	switch kind {
	case KindDataSource:
		return c.Manifest.DataSource
	case KindSettings:
		return c.Manifest.Settings
	case KindWidget:
		return c.Manifest.Widget
	}
	return ""
}

// Markup returns the markup file of the module declared for kind:
// {rootdir}/{module}.tmpl for widgets and {rootdir}/{module}_{kind}.tmpl
// for anything else. It is empty when nothing is declared.
func (c *Component) Markup(kind string) string {
	module, _, err := SplitRef(c.Ref(kind))
	if err != nil {
		return ""
	}
	if kind != KindWidget {
		module += "_" + kind
	}
	return filepath.Join(c.Plugin.RootDir, module+".tmpl")
}

// Instance builds, once, the module declared for kind. It returns nil
// when the component declares none.
func (c *Component) Instance(kind string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.instances[kind]; ok {
		return v, nil
	}
	f, ok := c.factories[kind]
	if !ok {
		return nil, nil
	}
	v, err := f(c)
	if err != nil {
		return nil, fmt.Errorf("%s: building %s %s: %w", c.FullID, kind, c.Ref(kind), err)
	}
	c.instances[kind] = v
	return v, nil
}

// KindError reports a module that built the wrong kind of value.
func KindError(c *Component, kind string, got any, want string) error {
	return terrors.New("PLUGIN-0005", map[string]any{
		"Module": c.Ref(kind),
		"Got":    fmt.Sprintf("%T", got),
		"Want":   want,
	})
}

// Sorted returns plugins ordered by name, then ID.
func Sorted(plugins map[string]*Plugin) []*Plugin {
	out := make([]*Plugin, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ByAuthor groups plugins by author, each group sorted by name. Plugins
// without an author are grouped under "".
func ByAuthor(plugins map[string]*Plugin) map[string][]*Plugin {
	groups := map[string][]*Plugin{}
	for _, p := range Sorted(plugins) {
		groups[p.Author] = append(groups[p.Author], p)
	}
	return groups
}
