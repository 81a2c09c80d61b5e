// Package desktop provides the widgets components put on screen: the
// frameless DesktopWidget and the SettingsWidget shown in preferences.
// Both are roots of a markup tree bound to the application store.
package desktop

import (
	"fmt"

	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// Layout defaults applied by DesktopWidget trees unless the application
// configures others.
var (
	DefaultMargins = [4]int{30, 30, 30, 30}
	DefaultSpacing = 0
)

// Action is a context menu entry.
type Action struct {
	Name    string
	Trigger func()
}

// templated is the part shared by desktop and settings widgets.
type templated struct {
	component *plugin.Component
	tree      *qtemplate.Tree
}

func (t *templated) Component() *plugin.Component { return t.component }

// Tree returns the widget tree, or nil before Build.
func (t *templated) Tree() *qtemplate.Tree { return t.tree }

// Named returns the widget with the given id attribute.
func (t *templated) Named(name string) widget.Widget {
	if t.tree == nil {
		return nil
	}
	return t.tree.IDs[name]
}

// build loads path into a tree rooted at root. callbacks is the object
// Connect paths resolve against, normally the concrete widget.
func (t *templated) build(root widget.Widget, path string, callbacks any, margins [4]int, spacing int, tags *qtemplate.Tags) error {
	c := t.component
	env := c.Env()
	prefix := expr.DefaultPrefix
	if env.Template != nil {
		if env.Template.Prefix != "" {
			prefix = env.Template.Prefix
		}
		margins, spacing = env.Template.Margins, env.Template.Spacing
	}
	opts := []qtemplate.Option{
		qtemplate.WithStore(env.Store),
		qtemplate.WithPrefix(prefix),
		qtemplate.WithLayoutDefaults(margins, spacing),
		qtemplate.WithLogger(c.Log()),
		qtemplate.WithCallbacks(callbacks),
		qtemplate.WithContext(map[string]any{
			"component": c,
			"plugin":    c.Plugin,
			"ns":        c.Namespace(),
			"settings":  settingsView{c},
		}),
	}
	if tags != nil {
		opts = append(opts, qtemplate.WithTags(tags))
	}
	if t.tree != nil {
		t.tree.Close()
	}
	t.tree = qtemplate.New(root, opts...)
	if _, err := t.tree.Load(path, nil); err != nil {
		return fmt.Errorf("%s: %w", c.FullID, err)
	}
	return nil
}

// Close removes the tree's bindings and children.
func (t *templated) Close() {
	if t.tree != nil {
		t.tree.Close()
	}
}

// settingsView exposes the component's persisted settings to markup as
// settings.<name>. Unset names read as none.
type settingsView struct{ c *plugin.Component }

func (v settingsView) Attr(name string) (any, bool) {
	return v.c.GetSetting(name, nil), true
}
