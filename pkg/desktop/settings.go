package desktop

import (
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate/widget"
)

// SettingsWidget is a component's page in the preferences window.
type SettingsWidget struct {
	*widget.Base
	templated
}

// NewSettingsWidget creates the settings page for c.
func NewSettingsWidget(c *plugin.Component) *SettingsWidget {
	s := &SettingsWidget{
		Base:      widget.NewBase("SettingsWidget"),
		templated: templated{component: c},
	}
	s.Bind(s)
	s.SetObjectName(c.ID + "_settings")
	return s
}

// Build loads the markup at path with no extra layout margins.
func (s *SettingsWidget) Build(path string, callbacks any) error {
	if callbacks == nil {
		callbacks = s.Self()
	}
	return s.build(s.Self(), path, callbacks, [4]int{}, 6, nil)
}

func (s *SettingsWidget) GetSetting(name string, def any) any {
	return s.component.GetSetting(name, def)
}

func (s *SettingsWidget) SaveSetting(name string, value any) error {
	return s.component.SaveSetting(name, value)
}

func (s *SettingsWidget) GetValue(name string, def any) any {
	return s.component.GetValue(name, def)
}

func (s *SettingsWidget) SetValue(name string, value any) error {
	return s.component.SetValue(name, value)
}

// SettingsFactory builds a markup-only SettingsWidget from the component's
// settings markup file.
func SettingsFactory() plugin.Factory {
	return func(c *plugin.Component) (any, error) {
		s := NewSettingsWidget(c)
		if err := s.Build(c.Markup(plugin.KindSettings), nil); err != nil {
			return nil, err
		}
		return s, nil
	}
}
