package procs

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one raw process observation.
type Sample struct {
	PID           int32
	Name          string
	CPUTime       float64 // user+system seconds since process start
	MemoryPercent float64
	CreateTime    int64 // ms since epoch, detects pid reuse

	// CPUTimeUnknown marks a sample whose CPU times could not be read.
	// CPUTime is meaningless then and must not become a usage baseline.
	CPUTimeUnknown bool
}

// Lister enumerates running processes.
type Lister interface {
	List(ctx context.Context) ([]Sample, error)
}

// HostLister enumerates processes through gopsutil.
type HostLister struct{}

func (HostLister) List(ctx context.Context) ([]Sample, error) {
	ps, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(ps))
	for _, p := range ps {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s, ok := sampleOf(ctx, p.Pid, p); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// procReader is the part of *process.Process a Sample is read from.
type procReader interface {
	NameWithContext(ctx context.Context) (string, error)
	TimesWithContext(ctx context.Context) (*cpu.TimesStat, error)
	MemoryPercentWithContext(ctx context.Context) (float32, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
}

// sampleOf reads one process. Processes can exit mid-enumeration; a process
// without a name is dropped, other fields keep what could be read.
func sampleOf(ctx context.Context, pid int32, p procReader) (Sample, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return Sample{}, false
	}
	s := Sample{PID: pid, Name: name, CPUTimeUnknown: true}
	if t, err := p.TimesWithContext(ctx); err == nil && t != nil {
		s.CPUTime, s.CPUTimeUnknown = t.User+t.System, false
	}
	if m, err := p.MemoryPercentWithContext(ctx); err == nil {
		s.MemoryPercent = float64(m)
	}
	if c, err := p.CreateTimeWithContext(ctx); err == nil {
		s.CreateTime = c
	}
	return s, true
}
