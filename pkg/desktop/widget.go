package desktop

import (
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// DesktopWidget is a frameless widget on the desktop. It can be dragged,
// remembers its position in the component's pos setting and offers
// Preferences and Quit actions.
type DesktopWidget struct {
	*widget.Base
	templated

	actions []Action
	drag    *dragState
	tags    *qtemplate.Tags
}

type dragState struct {
	offsetX, offsetY int
}

// NewDesktopWidget creates the widget for c. Embedding types call Bind
// with themselves before Build.
func NewDesktopWidget(c *plugin.Component) *DesktopWidget {
	d := &DesktopWidget{
		Base:      widget.NewBase("DesktopWidget"),
		templated: templated{component: c},
	}
	d.Bind(d)
	d.SetProperty("class", "widget")
	d.SetProperty("plugin", c.Plugin.ID)
	d.SetProperty("component", c.ID)
	d.SetProperty("frameless", true)
	d.SetObjectName(c.ID)
	if x, y, ok := point(c.GetSetting("pos", nil)); ok {
		d.Move(x, y)
	}
	d.SetEventHandler("mousePressEvent", d.mousePress)
	d.SetEventHandler("mouseMoveEvent", d.mouseMove)
	d.SetEventHandler("mouseReleaseEvent", d.mouseRelease)
	d.actions = []Action{
		{Name: "Preferences", Trigger: d.ShowSettings},
		{Name: "Quit", Trigger: d.QuitApp},
	}
	return d
}

// SetTags replaces the tag vocabulary used by Build.
func (d *DesktopWidget) SetTags(tags *qtemplate.Tags) { d.tags = tags }

// Build loads the markup at path. Connect callbacks resolve against
// callbacks, or the widget itself when nil.
func (d *DesktopWidget) Build(path string, callbacks any) error {
	if callbacks == nil {
		callbacks = d.Self()
	}
	return d.build(d.Self(), path, callbacks, DefaultMargins, DefaultSpacing, d.tags)
}

// Actions returns the context menu entries.
func (d *DesktopWidget) Actions() []Action {
	return append([]Action(nil), d.actions...)
}

// Trigger runs the named action. It reports false when there is none.
func (d *DesktopWidget) Trigger(name string) bool {
	for _, a := range d.actions {
		if a.Name == name {
			a.Trigger()
			return true
		}
	}
	return false
}

// ShowSettings opens the preferences window.
func (d *DesktopWidget) ShowSettings() {
	if fn := d.component.Env().ShowSettings; fn != nil {
		fn()
	}
}

// QuitApp asks the application to exit.
func (d *DesktopWidget) QuitApp() {
	if fn := d.component.Env().Quit; fn != nil {
		fn()
	}
}

// WidgetMoved saves the new position.
func (d *DesktopWidget) WidgetMoved(x, y int) {
	if err := d.component.SaveSetting("pos", []int{x, y}); err != nil {
		d.component.Log().Warnf("%s: saving position: %v", d.component.FullID, err)
	}
}

func (d *DesktopWidget) mousePress(ev *widget.Event) {
	if ev.Button != widget.LeftButton {
		return
	}
	x, y := d.Pos()
	d.drag = &dragState{offsetX: ev.GlobalX - x, offsetY: ev.GlobalY - y}
	ev.Accepted = true
}

func (d *DesktopWidget) mouseMove(ev *widget.Event) {
	if d.drag == nil {
		return
	}
	d.Move(ev.GlobalX-d.drag.offsetX, ev.GlobalY-d.drag.offsetY)
	ev.Accepted = true
}

func (d *DesktopWidget) mouseRelease(ev *widget.Event) {
	if d.drag == nil {
		return
	}
	d.drag = nil
	x, y := d.Pos()
	d.WidgetMoved(x, y)
	ev.Accepted = true
}

// point reads an [x, y] setting.
func point(v any) (int, int, bool) {
	seq, ok := expr.Sequence(v)
	if !ok || len(seq) != 2 {
		return 0, 0, false
	}
	x, okx := expr.ToInt(seq[0])
	y, oky := expr.ToInt(seq[1])
	return x, y, okx && oky
}

// WidgetFactory returns a factory for components whose desktop widget is
// markup only: it builds a DesktopWidget from the component's widget
// markup file.
func WidgetFactory() plugin.Factory {
	return func(c *plugin.Component) (any, error) {
		d := NewDesktopWidget(c)
		if err := d.Build(c.Markup(plugin.KindWidget), nil); err != nil {
			return nil, err
		}
		return d, nil
	}
}
