package procs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/logger"
	"github.com/lonitor/lonitor/internal/model"
)

// DefaultTopN is the size of the ranked view.
const DefaultTopN = 10

type prevSample struct {
	cpuTime    float64
	createTime int64
}

// Registry keeps the top-N process view. Refresh is the only writer; Top and
// Kill may be called from any goroutine.
type Registry struct {
	lister Lister
	killer Killer
	topN   int
	now    func() time.Time

	refreshMu sync.Mutex
	prev      map[int32]prevSample
	prevAt    time.Time

	mu      sync.RWMutex
	top     []model.ProcessInfo
	present map[int32]struct{}
}

func NewRegistry(lister Lister, killer Killer, topN int) *Registry {
	if topN < 1 {
		topN = DefaultTopN
	}
	if lister == nil {
		lister = HostLister{}
	}
	if killer == nil {
		killer = SignalKiller{}
	}
	return &Registry{
		lister:  lister,
		killer:  killer,
		topN:    topN,
		now:     time.Now,
		prev:    make(map[int32]prevSample),
		present: make(map[int32]struct{}),
	}
}

// Refresh re-enumerates processes and republishes the ranked view. CPU percent
// is usage since the previous Refresh; first-seen pids report 0.
func (r *Registry) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	samples, err := r.lister.List(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.New().Wrap(errors.ErrTimeout, err)
		}
		return errors.New().Wrap(errors.ErrUnavailable, err)
	}

	now := r.now()
	elapsed := now.Sub(r.prevAt).Seconds()
	next := make(map[int32]prevSample, len(samples))
	present := make(map[int32]struct{}, len(samples))
	infos := make([]model.ProcessInfo, 0, len(samples))

	for _, s := range samples {
		info := model.ProcessInfo{PID: s.PID, Name: s.Name, MemoryPercent: s.MemoryPercent}
		present[s.PID] = struct{}{}
		if s.CPUTimeUnknown {
			// no baseline: the next observation of this pid reports 0
			infos = append(infos, info)
			continue
		}
		if p, ok := r.prev[s.PID]; ok && p.createTime == s.CreateTime && !r.prevAt.IsZero() && elapsed > 0 {
			if d := s.CPUTime - p.cpuTime; d > 0 {
				info.CPUPercent = d / elapsed * 100
			}
		}
		next[s.PID] = prevSample{cpuTime: s.CPUTime, createTime: s.CreateTime}
		infos = append(infos, info)
	}

	top := Rank(infos, r.topN)

	r.prev, r.prevAt = next, now

	r.mu.Lock()
	r.top, r.present = top, present
	r.mu.Unlock()

	logger.Debug().Int("processes", len(samples)).Int("top", len(top)).Msg("process registry refreshed")
	return nil
}

// Rank sorts infos in place by CPU percent descending, pid ascending on ties,
// and returns a copy of the first n.
func Rank(infos []model.ProcessInfo, n int) []model.ProcessInfo {
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CPUPercent != infos[j].CPUPercent {
			return infos[i].CPUPercent > infos[j].CPUPercent
		}
		return infos[i].PID < infos[j].PID
	})
	if len(infos) > n {
		infos = infos[:n]
	}
	out := make([]model.ProcessInfo, len(infos))
	copy(out, infos)
	return out
}

// Top returns a copy of the ranked view.
func (r *Registry) Top() []model.ProcessInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ProcessInfo, len(r.top))
	copy(out, r.top)
	return out
}

// Len is the number of processes seen by the last Refresh.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.present)
}

// Contains reports whether pid was present in the last enumeration.
func (r *Registry) Contains(pid int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.present[pid]
	return ok
}

// Kill terminates pid. A pid missing from the last enumeration is NotFound
// without any signal being sent; the process exiting in between is NotFound too.
func (r *Registry) Kill(pid int32) error {
	if pid <= 0 || !r.Contains(pid) {
		return errors.New().WithData(errors.ErrNotFound, pid)
	}
	return r.killer.Kill(pid)
}
