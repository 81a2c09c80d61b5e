// Package loop provides the single-threaded event loop that owns all widget
// and store mutation. Work from other goroutines is posted back onto it.
package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sambeau/pkmeter/pkg/pklog"
)

// Loop runs posted functions one at a time on the goroutine that called Run.
type Loop struct {
	log pklog.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	ctx     context.Context
	running bool
	tasks   sync.WaitGroup
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for task and panic reporting.
func WithLogger(l pklog.Logger) Option {
	return func(lp *Loop) { lp.log = pklog.OrDiscard(l) }
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		log:  pklog.Discard,
		wake: make(chan struct{}, 1),
		ctx:  context.Background(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn to run on the loop goroutine. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes posted functions until ctx is cancelled. Background tasks
// started with Go receive a context derived from ctx.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("loop already running")
	}
	l.running = true
	l.ctx = ctx
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		l.Drain()
		select {
		case <-ctx.Done():
			l.tasks.Wait()
			l.Drain()
			return nil
		case <-l.wake:
		}
	}
}

// Drain runs every queued function, including ones queued while draining,
// and returns how many ran. Tests call it in place of Run.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.call(fn)
		n++
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("loop: panic in posted function: %v", r)
		}
	}()
	fn()
}

// Context returns the context passed to Run, or context.Background before Run.
func (l *Loop) Context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctx
}

// Timer is a pending AfterFunc or Every callback.
type Timer struct {
	stop func() bool
}

// Stop cancels future callbacks. A callback already posted still runs.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// AfterFunc posts fn to the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return &Timer{stop: t.Stop}
}

// Every posts fn to the loop every d until the returned timer is stopped.
func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				l.Post(fn)
			case <-done:
				return
			}
		}
	}()
	return &Timer{stop: func() bool {
		stopped := false
		once.Do(func() {
			ticker.Stop()
			close(done)
			stopped = true
		})
		return stopped
	}}
}

// Go runs work on a new goroutine and posts done with its result back to
// the loop. It returns the task ID used in log lines.
func (l *Loop) Go(name string, work func(ctx context.Context) (any, error), done func(any, error)) string {
	id := uuid.NewString()
	ctx := l.Context()
	l.tasks.Add(1)
	l.log.Debugf("task %s (%s) started", name, id)
	go func() {
		defer l.tasks.Done()
		var (
			result any
			err    error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task %s panicked: %v", name, r)
				}
			}()
			result, err = work(ctx)
		}()
		if err != nil {
			l.log.Debugf("task %s (%s) failed: %v", name, id, err)
		} else {
			l.log.Debugf("task %s (%s) finished", name, id)
		}
		if done != nil {
			l.Post(func() { done(result, err) })
		}
	}()
	return id
}

// Wait blocks until every task started with Go has finished its work.
func (l *Loop) Wait() {
	l.tasks.Wait()
}
