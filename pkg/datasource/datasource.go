// Package datasource runs a component's polling update on the event loop.
package datasource

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sambeau/pkmeter/pkg/loop"
	"github.com/sambeau/pkmeter/pkg/pklog"
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
)

// DefaultInterval is the tick interval when neither the environment, an
// option nor the component's interval setting gives one.
const DefaultInterval = time.Second

// Updater refreshes a component's values. Update runs on the loop
// goroutine and usually calls Component.SetValue.
type Updater interface {
	Update(ctx context.Context) error
}

// UpdateFunc adapts a function to Updater.
type UpdateFunc func(ctx context.Context) error

func (f UpdateFunc) Update(ctx context.Context) error { return f(ctx) }

// Fetcher splits an update in two: Fetch runs on a worker goroutine and
// Apply receives its result on the loop. Use it for slow work such as
// reading files or running commands.
type Fetcher interface {
	Fetch(ctx context.Context) (any, error)
	Apply(result any) error
}

// Source calls its updater every interval while running.
type Source struct {
	c        *plugin.Component
	u        any
	loop     *loop.Loop
	log      pklog.Logger
	interval time.Duration

	timer   *loop.Timer
	gen     int
	started bool
	busy    bool
	task    string
	ticks   int
	dropped int
}

// Option configures a Source.
type Option func(*Source)

// WithInterval sets the default interval. The component's interval
// setting, in milliseconds, still wins.
func WithInterval(d time.Duration) Option {
	return func(s *Source) { s.interval = d }
}

// New returns a stopped source for c. u may be an Updater, a Fetcher or
// nil; a nil updater logs a warning on every tick.
func New(c *plugin.Component, u any, opts ...Option) *Source {
	env := c.Env()
	s := &Source{
		c:        c,
		u:        u,
		loop:     env.Loop,
		log:      c.Log(),
		interval: DefaultInterval,
	}
	if env.Interval > 0 {
		s.interval = env.Interval
	}
	for _, opt := range opts {
		opt(s)
	}
	if ms, ok := expr.ToInt(c.GetSetting("interval", nil)); ok && ms > 0 {
		s.interval = time.Duration(ms) * time.Millisecond
	}
	return s
}

// Component returns the owning component.
func (s *Source) Component() *plugin.Component { return s.c }

// Interval returns the tick interval.
func (s *Source) Interval() time.Duration { return s.interval }

// SetInterval changes the interval, restarting the timer when running.
func (s *Source) SetInterval(d time.Duration) {
	s.interval = d
	if s.Running() {
		s.Start()
	}
}

// Running reports whether the timer is active.
func (s *Source) Running() bool { return s.timer != nil }

// Start starts the timer, or restarts it when already running. The first
// start runs one update immediately. Call it on the loop goroutine.
func (s *Source) Start() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.log.Infof("starting %s datasource with interval %s", s.c.FullID, s.interval)
	s.timer = s.loop.Every(s.interval, func() {
		if gen == s.gen {
			s.tick()
		}
	})
	if !s.started {
		s.started = true
		s.tick()
	}
}

// Stop stops the timer. An update in flight still completes.
func (s *Source) Stop() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
	s.log.Infof("stopped %s datasource", s.c.FullID)
}

// Task returns the loop task ID of the fetch in flight, or "".
func (s *Source) Task() string { return s.task }

// Stats returns the number of ticks run and dropped.
func (s *Source) Stats() (ticks, dropped int) { return s.ticks, s.dropped }

// tick runs one update unless the previous one is still in flight.
func (s *Source) tick() {
	if s.busy {
		s.dropped++
		s.log.Debugf("%s: update still running, tick dropped", s.c.FullID)
		return
	}
	s.ticks++
	switch u := s.u.(type) {
	case nil:
		s.log.Warnf("%s timer running with no update() function", s.c.Plugin.ID)
	case Fetcher:
		s.busy = true
		s.task = s.loop.Go(s.c.FullID, u.Fetch, func(result any, err error) {
			s.busy = false
			s.task = ""
			if err != nil {
				s.log.Errorf("%s: fetch: %v", s.c.FullID, err)
				return
			}
			s.guard("apply", func() error { return u.Apply(result) })
		})
	case Updater:
		s.busy = true
		s.guard("update", func() error { return u.Update(s.loop.Context()) })
		s.busy = false
	default:
		s.log.Errorf("%s: %T is neither an Updater nor a Fetcher", s.c.FullID, s.u)
	}
}

// guard runs fn, logging its error or panic instead of propagating it.
func (s *Source) guard(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("%s: %s panicked: %v\n%s", s.c.FullID, what, r, debug.Stack())
		}
	}()
	if err := fn(); err != nil {
		s.log.Errorf("%s: %s: %v", s.c.FullID, what, err)
	}
}

// Describe is a one-line summary for logs and the CLI.
func (s *Source) Describe() string {
	state := "stopped"
	if s.Running() {
		state = "running"
	}
	desc := fmt.Sprintf("%s %s every %s", s.c.FullID, state, s.interval)
	if s.task != "" {
		desc += ", fetching (task " + s.task + ")"
	}
	return desc
}
