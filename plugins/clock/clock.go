// Package clock provides the Clock component: a data source publishing
// the current time once a second and a desktop widget showing it.
package clock

import (
	"context"
	"time"

	"github.com/sambeau/pkmeter/pkg/datasource"
	"github.com/sambeau/pkmeter/pkg/desktop"
	"github.com/sambeau/pkmeter/pkg/plugin"
)

// Source writes datetime, date, time and unix under the component's
// namespace on every tick.
type Source struct {
	*datasource.Source
	c   *plugin.Component
	now func() time.Time
}

// NewSource returns a stopped clock source.
func NewSource(c *plugin.Component) *Source {
	s := &Source{c: c, now: time.Now}
	s.Source = datasource.New(c, s)
	return s
}

func (s *Source) Update(ctx context.Context) error {
	now := s.now()
	return s.c.SetValue("datetime", map[string]any{
		"value": now,
		"date":  now.Format("2006-01-02"),
		"time":  now.Format("15:04:05"),
		"unix":  now.Unix(),
	})
}

// Register adds the clock factories to catalog.
func Register(catalog *plugin.Catalog) {
	catalog.MustRegister("clock.Clock", func(c *plugin.Component) (any, error) {
		return NewSource(c), nil
	})
	catalog.MustRegister("clock.ClockWidget", desktop.WidgetFactory())
	catalog.MustRegister("clock.ClockSettings", desktop.SettingsFactory())
}
