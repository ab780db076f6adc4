package source

import (
	"context"
	"sync"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUTimes derives usage percentages from successive cpu.Times deltas.
// The first sample only records a baseline and reports Unavailable.
type CPUTimes struct {
	mu        sync.Mutex
	prevTotal float64
	prevIdle  float64
	prevCore  []cpu.TimesStat

	times func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
}

func NewCPUTimes() *CPUTimes {
	return &CPUTimes{times: cpu.TimesWithContext}
}

func (c *CPUTimes) Sample(ctx context.Context) (model.CPU, error) {
	times, err := c.times(ctx, false)
	if err != nil {
		return model.CPU{}, unavailable(err)
	}
	if len(times) == 0 {
		return model.CPU{}, absent("cpu times")
	}
	coreTimes, err := c.times(ctx, true)
	if err != nil {
		coreTimes = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var out model.CPU
	cur := times[0]
	curTotal := cur.Total()
	curIdle := cur.Idle + cur.Iowait
	first := c.prevTotal == 0
	if !first {
		dt := curTotal - c.prevTotal
		di := curIdle - c.prevIdle
		if dt > 0 {
			out.Total = clampPercent(100 * (1 - di/dt))
		}
	}
	c.prevTotal, c.prevIdle = curTotal, curIdle

	out.PerCore = make([]float64, len(coreTimes))
	for i, core := range coreTimes {
		if i >= len(c.prevCore) {
			continue
		}
		prev := c.prevCore[i]
		dt := core.Total() - prev.Total()
		di := (core.Idle + core.Iowait) - (prev.Idle + prev.Iowait)
		if dt > 0 {
			out.PerCore[i] = clampPercent(100 * (1 - di/dt))
		}
	}
	c.prevCore = coreTimes
	if first {
		return model.CPU{}, errors.New().WithMessage(errors.ErrUnavailable, "cpu usage needs a previous reading")
	}
	return out, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
