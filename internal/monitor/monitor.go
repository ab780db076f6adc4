// Package monitor is the boundary consumed by the TUI and the CLI: it owns
// the sampler lifecycle and exposes read access to history and processes
// plus the privileged actions.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/lonitor/lonitor/internal/action"
	"github.com/lonitor/lonitor/internal/config"
	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/history"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/lonitor/lonitor/internal/procs"
	"github.com/lonitor/lonitor/internal/sampler"
	"github.com/lonitor/lonitor/internal/source"
)

type Options struct {
	Sources       source.Set
	Sampler       sampler.Options
	HistorySize   int
	TopN          int
	Thresholds    history.Thresholds
	Lister        procs.Lister
	Killer        procs.Killer
	Actions       action.Deps
	ActionTimeout time.Duration
}

// FromConfig wires host sources and OS action mechanisms from cfg.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Sources: source.Host(source.Options{
			DiskPath:    cfg.DiskPath,
			Battery:     cfg.Battery,
			Temperature: cfg.Temperature,
		}),
		Sampler: sampler.Options{
			Interval:       cfg.Interval,
			SourceTimeout:  cfg.SourceTimeout,
			ProcessTimeout: cfg.ProcessTimeout,
		},
		HistorySize: cfg.HistorySize,
		TopN:        cfg.TopN,
		Thresholds:  cfg.Thresholds,
		Actions: action.Deps{
			Power:   action.DefaultPowerControl(cfg.PowerTool),
			RAM:     &action.DropCaches{Path: cfg.DropCachesPath},
			Storage: &action.CacheDirs{Dirs: cfg.StorageCacheDirs},
		},
		ActionTimeout: cfg.ActionTimeout,
	}
}

type Monitor struct {
	store      *history.Store
	registry   *procs.Registry
	sampler    *sampler.Sampler
	executor   *action.Executor
	thresholds history.Thresholds

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) *Monitor {
	thresholds := opts.Thresholds
	if thresholds == (history.Thresholds{}) {
		thresholds = history.DefaultThresholds()
	}

	store := history.NewStore(opts.HistorySize)
	registry := procs.NewRegistry(opts.Lister, opts.Killer, opts.TopN)

	deps := opts.Actions
	if deps.Procs == nil {
		deps.Procs = registry
	}

	return &Monitor{
		store:      store,
		registry:   registry,
		sampler:    sampler.New(opts.Sources, store, registry, opts.Sampler),
		executor:   action.NewExecutor(action.NewLog(), deps, opts.ActionTimeout),
		thresholds: thresholds,
	}
}

// Start runs the sampler in the background until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "monitor already started")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = m.sampler.Run(ctx)
	}(m.done)
	return nil
}

// Stop halts sampling and waits for the tick in progress to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sample runs a single tick synchronously. Used by one-shot commands that
// do not start the background loop.
func (m *Monitor) Sample(ctx context.Context) (model.Snapshot, error) {
	return m.sampler.Tick(ctx)
}

// Subscribe delivers every new Snapshot until the sampler stops.
func (m *Monitor) Subscribe(buf int) <-chan model.Snapshot {
	return m.sampler.Subscribe(buf)
}

func (m *Monitor) Interval() time.Duration { return m.sampler.Interval() }

func (m *Monitor) Thresholds() history.Thresholds { return m.thresholds }

func (m *Monitor) HistoryCapacity() int { return m.store.Capacity() }

// LatestSnapshot returns the newest Snapshot, false before the first tick.
func (m *Monitor) LatestSnapshot() (model.Snapshot, bool) {
	return m.store.Latest()
}

// History returns the metric's series, oldest first.
func (m *Monitor) History(metric model.Metric) ([]model.Point, error) {
	return m.store.Read(metric)
}

// Classify bands the latest value of metric.
func (m *Monitor) Classify(metric model.Metric) history.Band {
	snap, ok := m.store.Latest()
	if !ok {
		return history.BandUnknown
	}
	return m.thresholds.ClassifySnapshot(snap, metric)
}

func (m *Monitor) TopProcesses() []model.ProcessInfo {
	return m.registry.Top()
}

func (m *Monitor) ProcessCount() int {
	return m.registry.Len()
}

func (m *Monitor) KillProcess(ctx context.Context, pid int32) (model.ActionRecord, error) {
	return m.executor.KillProcess(ctx, pid)
}

func (m *Monitor) SetPowerProfile(ctx context.Context, p model.PowerProfile) (model.ActionRecord, error) {
	return m.executor.SetPowerProfile(ctx, p)
}

func (m *Monitor) ClearRAMCache(ctx context.Context) (model.ActionRecord, error) {
	return m.executor.ClearRAMCache(ctx)
}

func (m *Monitor) ClearStorageCache(ctx context.Context) (model.ActionRecord, error) {
	return m.executor.ClearStorageCache(ctx)
}

// ActionLog returns every action taken this session, newest first.
func (m *Monitor) ActionLog() []model.ActionRecord {
	return m.executor.Log().Entries()
}
