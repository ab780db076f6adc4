package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/history"
	"github.com/lonitor/lonitor/internal/logger"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/lonitor/lonitor/internal/procs"
	"github.com/lonitor/lonitor/internal/source"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval       = time.Second
	DefaultProcessTimeout = 2 * time.Second
)

type Options struct {
	Interval       time.Duration
	SourceTimeout  time.Duration
	ProcessTimeout time.Duration
}

// Sampler periodically collects every source into one Snapshot. It is the
// only writer of the history store and the process registry.
type Sampler struct {
	sources  source.Set
	store    *history.Store
	registry *procs.Registry
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	seq     uint64
	last    time.Time
	prevNet *model.NetCounters
	prevIO  *model.IOCounters
	status  map[string]model.Availability

	subMu  sync.Mutex
	subs   []chan model.Snapshot
	closed bool
}

// New builds a Sampler. registry may be nil to skip process enumeration.
func New(sources source.Set, store *history.Store, registry *procs.Registry, opts Options) *Sampler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = source.DefaultTimeout
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultProcessTimeout
	}
	if store == nil {
		store = history.NewStore(history.DefaultCapacity)
	}
	return &Sampler{
		sources:  sources,
		store:    store,
		registry: registry,
		opts:     opts,
		now:      time.Now,
		status:   make(map[string]model.Availability),
	}
}

func (s *Sampler) Interval() time.Duration { return s.opts.Interval }

func (s *Sampler) Store() *history.Store { return s.store }

// Subscribe returns a channel receiving every published Snapshot. Slow
// subscribers miss snapshots rather than delay the tick. The channel is
// closed when Run returns.
func (s *Sampler) Subscribe(buf int) <-chan model.Snapshot {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan model.Snapshot, buf)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Run samples immediately and then on every interval until ctx is done.
// A tick in progress when ctx is cancelled runs to completion.
func (s *Sampler) Run(ctx context.Context) error {
	defer s.closeSubscribers()

	work := context.WithoutCancel(ctx)
	tick := func() {
		if _, err := s.Tick(work); err != nil {
			logger.WarnWithCode(err).Msg("tick failed")
		}
	}

	logger.Info().Dur("interval", s.opts.Interval).Msg("sampler started")
	tick()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Uint64("ticks", s.Seq()).Msg("sampler stopped")
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

// Seq returns the sequence number of the last published Snapshot.
func (s *Sampler) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Tick runs one sampling pass and publishes its Snapshot. Source failures are
// recorded as unavailable readings and never fail the tick.
func (s *Sampler) Tick(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	ts := start
	if !ts.After(s.last) {
		ts = s.last.Add(time.Nanosecond)
	}

	var (
		snap   = model.Snapshot{Timestamp: ts}
		rawNet model.Reading[model.NetCounters]
		rawIO  model.Reading[model.IOCounters]
		errs   [10]error
		g      errgroup.Group
	)
	timeout := s.opts.SourceTimeout
	probe(ctx, &g, timeout, s.sources.CPU, &snap.CPU, &errs[0])
	probe(ctx, &g, timeout, s.sources.Temp, &snap.CPUTemp, &errs[1])
	probe(ctx, &g, timeout, s.sources.Memory, &snap.Memory, &errs[2])
	probe(ctx, &g, timeout, s.sources.Disk, &snap.Disk, &errs[3])
	probe(ctx, &g, timeout, s.sources.DiskIO, &rawIO, &errs[4])
	probe(ctx, &g, timeout, s.sources.Net, &rawNet, &errs[5])
	probe(ctx, &g, timeout, s.sources.Battery, &snap.Battery, &errs[6])
	probe(ctx, &g, timeout, s.sources.Load, &snap.Load, &errs[7])
	probe(ctx, &g, timeout, s.sources.Uptime, &snap.Uptime, &errs[8])
	if s.registry != nil {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.opts.ProcessTimeout)
			defer cancel()
			errs[9] = s.registry.Refresh(pctx)
			return nil
		})
	}
	_ = g.Wait()

	snap.Net = netDelta(rawNet, s.prevNet)
	s.prevNet = counter(rawNet)
	snap.DiskIO = ioDelta(rawIO, s.prevIO)
	s.prevIO = counter(rawIO)

	s.seq++
	snap.Seq = s.seq
	s.last = ts

	s.track("cpu", snap.CPU.Status, errs[0])
	s.track("cpu_temp", snap.CPUTemp.Status, errs[1])
	s.track("memory", snap.Memory.Status, errs[2])
	s.track("disk", snap.Disk.Status, errs[3])
	s.track("disk_io", rawIO.Status, errs[4])
	s.track("net", rawNet.Status, errs[5])
	s.track("battery", snap.Battery.Status, errs[6])
	s.track("load", snap.Load.Status, errs[7])
	s.track("uptime", snap.Uptime.Status, errs[8])
	if s.registry != nil {
		st := model.Available
		if errs[9] != nil {
			st = model.Unavailable
			if errors.HasCode(errs[9], errors.ErrTimeout) {
				st = model.TimedOut
			}
		}
		s.track("processes", st, errs[9])
	}

	err := s.store.Record(snap)
	s.publish(snap)

	logger.Debug().
		Uint64("seq", snap.Seq).
		Dur("took", s.now().Sub(start)).
		Int("metrics", len(snap.MetricValues())).
		Msg("tick")
	return snap, err
}

func probe[T any](ctx context.Context, g *errgroup.Group, timeout time.Duration, a source.Adapter[T], dst *model.Reading[T], errp *error) {
	g.Go(func() error {
		*dst, *errp = source.Probe(ctx, timeout, a)
		return nil
	})
}

// track logs a source only when its availability changes.
func (s *Sampler) track(name string, st model.Availability, err error) {
	prev, seen := s.status[name]
	s.status[name] = st
	if seen && prev == st {
		return
	}
	if st == model.Available {
		if seen {
			logger.Info().Str("source", name).Msg("source recovered")
		}
		return
	}
	if err == nil {
		err = errors.New().New(errors.ErrUnavailable)
	}
	logger.WarnWithCode(err).Str("source", name).Str("status", st.String()).Msg("source unavailable")
}

func (s *Sampler) publish(snap model.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Sampler) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.closed = true
}
