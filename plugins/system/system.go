// Package system provides the System component: CPU, memory, swap and
// uptime figures sampled off the loop goroutine.
package system

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/sambeau/pkmeter/pkg/datasource"
	"github.com/sambeau/pkmeter/pkg/desktop"
	"github.com/sambeau/pkmeter/pkg/plugin"
	"github.com/sambeau/pkmeter/pkg/qtemplate/expr"
)

// Snapshot is one sample of the machine's state.
type Snapshot struct {
	CPUCount    int
	Hostname    string
	BootTime    time.Time
	CPUPercent  float64
	CPUPercents []float64
	Memory      Usage
	Swap        Usage
	Cached      uint64
}

// Usage is a total/used pair for memory or swap.
type Usage struct {
	Total     uint64
	Used      uint64
	Available uint64
	Percent   float64
}

// Sampler takes a sample.
type Sampler func(ctx context.Context) (*Snapshot, error)

// Source samples the system on a worker goroutine and publishes the
// result on the loop.
type Source struct {
	*datasource.Source
	c      *plugin.Component
	sample Sampler
	now    func() time.Time
}

// NewSource returns a stopped source using sample, or the host when nil.
func NewSource(c *plugin.Component, sample Sampler) *Source {
	if sample == nil {
		sample = HostSampler
	}
	s := &Source{c: c, sample: sample, now: time.Now}
	s.Source = datasource.New(c, s)
	return s
}

func (s *Source) Fetch(ctx context.Context) (any, error) {
	return s.sample(ctx)
}

func (s *Source) Apply(result any) error {
	snap, ok := result.(*Snapshot)
	if !ok {
		return fmt.Errorf("unexpected sample %T", result)
	}
	return s.c.SetValue("stats", snap.values(s.now()))
}

func (snap *Snapshot) values(now time.Time) map[string]any {
	percents := make([]any, len(snap.CPUPercents))
	for i, p := range snap.CPUPercents {
		percents[i] = round1(p)
	}
	memory := snap.Memory.values()
	memory["cached"] = int64(snap.Cached)
	memory["cached_percent"] = 0.0
	if snap.Memory.Total > 0 {
		memory["cached_percent"] = round1(float64(snap.Cached) / float64(snap.Memory.Total) * 100)
	}
	uptime := 0
	if !snap.BootTime.IsZero() {
		uptime = int(now.Sub(snap.BootTime).Seconds())
	}
	return map[string]any{
		"cpu_count":    snap.CPUCount,
		"hostname":     snap.Hostname,
		"boot_time":    snap.BootTime.Unix(),
		"cpu_percent":  round1(snap.CPUPercent),
		"cpu_percents": percents,
		"memory":       memory,
		"swap":         snap.Swap.values(),
		"uptime":       uptime,
	}
}

func (u Usage) values() map[string]any {
	return map[string]any{
		"total":     int64(u.Total),
		"used":      int64(u.Used),
		"available": int64(u.Available),
		"percent":   round1(u.Percent),
	}
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

// HostSampler samples the running machine.
func HostSampler(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error
	if snap.CPUCount, err = cpu.CountsWithContext(ctx, true); err != nil {
		return nil, fmt.Errorf("cpu count: %w", err)
	}
	if snap.Hostname, err = os.Hostname(); err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("boot time: %w", err)
	}
	snap.BootTime = time.Unix(int64(boot), 0)

	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(total) > 0 {
		snap.CPUPercent = total[0]
	}
	if snap.CPUPercents, err = cpu.PercentWithContext(ctx, 0, true); err != nil {
		return nil, fmt.Errorf("cpu percents: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	snap.Memory = Usage{Total: vm.Total, Used: vm.Used, Available: vm.Available, Percent: vm.UsedPercent}
	snap.Cached = vm.Cached

	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	snap.Swap = Usage{Total: sw.Total, Used: sw.Used, Available: sw.Free, Percent: sw.UsedPercent}
	return snap, nil
}

// Runner starts a command without waiting for it to finish.
type Runner func(name string, args ...string) error

// StartCommand starts name in the background and reaps it when it exits.
func StartCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

// Monitor is the system monitor the widget opens. The component's
// monitor_command setting overrides Command.
type Monitor struct {
	Command string
	Run     Runner
}

// Widget is the System desktop widget. OpenMonitor is available to
// markup as a Connect callback.
type Widget struct {
	*desktop.DesktopWidget
	monitor Monitor
}

// OpenMonitor starts the configured system monitor command.
func (w *Widget) OpenMonitor() error {
	c := w.Component()
	line := expr.ToString(c.GetSetting("monitor_command", w.monitor.Command))
	fields := strings.Fields(line)
	if len(fields) == 0 {
		c.Log().Infof("%s: no monitor_command configured", c.FullID)
		return nil
	}
	run := w.monitor.Run
	if run == nil {
		run = StartCommand
	}
	c.Log().Infof("opening system monitor: %s", line)
	return run(fields[0], fields[1:]...)
}

// Register adds the system factories to catalog.
func Register(catalog *plugin.Catalog, monitor Monitor) {
	catalog.MustRegister("system.System", func(c *plugin.Component) (any, error) {
		return NewSource(c, nil), nil
	})
	catalog.MustRegister("system.SystemWidget", func(c *plugin.Component) (any, error) {
		w := &Widget{DesktopWidget: desktop.NewDesktopWidget(c), monitor: monitor}
		w.Bind(w)
		if err := w.Build(c.Markup(plugin.KindWidget), w); err != nil {
			return nil, err
		}
		return w, nil
	})
	catalog.MustRegister("system.SystemSettings", desktop.SettingsFactory())
}
