package model

import "time"

// Availability says whether a source produced a value this tick. The zero
// value is Unavailable so a Reading nobody filled in never counts as data.
type Availability uint8

const (
	Unavailable Availability = iota
	Available
	TimedOut
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case TimedOut:
		return "timeout"
	default:
		return "unavailable"
	}
}

func (a Availability) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Reading wraps one adapter result. A zero Value with Status Unavailable means
// "no data", never "zero usage".
type Reading[T any] struct {
	Value  T            `json:"value"`
	Status Availability `json:"status"`
}

// Ok reports whether Value is meaningful.
func (r Reading[T]) Ok() bool { return r.Status == Available }

func Have[T any](v T) Reading[T] { return Reading[T]{Value: v, Status: Available} }

func Missing[T any](status Availability) Reading[T] { return Reading[T]{Status: status} }

// CPU aggregates instantaneous CPU usage.
type CPU struct {
	Total   float64   `json:"total"` // percent 0-100
	PerCore []float64 `json:"per_core,omitempty"`
}

// Memory captures RAM and swap usage in bytes.
type Memory struct {
	Used      uint64 `json:"used"`
	Total     uint64 `json:"total"`
	SwapUsed  uint64 `json:"swap_used"`
	SwapTotal uint64 `json:"swap_total"`
}

// Disk is filesystem usage of the monitored mount.
type Disk struct {
	Path  string `json:"path"`
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

// NetCounters are cumulative interface counters as reported by the OS.
type NetCounters struct {
	Sent uint64
	Recv uint64
}

// IOCounters are cumulative block device counters as reported by the OS.
type IOCounters struct {
	Read    uint64
	Written uint64
}

// NetDelta holds bytes moved since the previous tick.
type NetDelta struct {
	Sent uint64 `json:"sent"`
	Recv uint64 `json:"recv"`
}

// IODelta holds disk bytes moved since the previous tick.
type IODelta struct {
	Read    uint64 `json:"read"`
	Written uint64 `json:"written"`
}

// Battery shows power state. TimeRemaining is only known while discharging
// at a measurable rate; otherwise it is Unavailable.
type Battery struct {
	Percent       float64                `json:"percent"`
	Charging      bool                   `json:"charging"`
	State         string                 `json:"state"`
	TimeRemaining Reading[time.Duration] `json:"time_remaining"`
}

type Load struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// Snapshot is one tick's readings, shared between sampler, history and consumers.
type Snapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Seq       uint64                 `json:"seq"`
	CPU       Reading[CPU]           `json:"cpu"`
	CPUTemp   Reading[float64]       `json:"cpu_temp_celsius"`
	Memory    Reading[Memory]        `json:"memory"`
	Disk      Reading[Disk]          `json:"disk"`
	Net       Reading[NetDelta]      `json:"net"`
	DiskIO    Reading[IODelta]       `json:"disk_io"`
	Battery   Reading[Battery]       `json:"battery"`
	Load      Reading[Load]          `json:"load"`
	Uptime    Reading[time.Duration] `json:"uptime"`
}

func (s Snapshot) CPUPercent() (float64, bool) {
	return s.CPU.Value.Total, s.CPU.Ok()
}

func (s Snapshot) MemoryPercent() (float64, bool) {
	if !s.Memory.Ok() {
		return 0, false
	}
	return Percent(s.Memory.Value.Used, s.Memory.Value.Total), true
}

func (s Snapshot) DiskPercent() (float64, bool) {
	if !s.Disk.Ok() {
		return 0, false
	}
	return Percent(s.Disk.Value.Used, s.Disk.Value.Total), true
}

// UptimeSeconds returns whole seconds of host uptime.
func (s Snapshot) UptimeSeconds() (uint64, bool) {
	return uint64(s.Uptime.Value / time.Second), s.Uptime.Ok()
}

// MetricValues returns the value of every history metric available in s.
func (s Snapshot) MetricValues() map[Metric]float64 {
	out := make(map[Metric]float64, len(Metrics))
	if v, ok := s.CPUPercent(); ok {
		out[MetricCPU] = v
	}
	if s.CPUTemp.Ok() {
		out[MetricCPUTemp] = s.CPUTemp.Value
	}
	if v, ok := s.MemoryPercent(); ok {
		out[MetricMemory] = v
	}
	if v, ok := s.DiskPercent(); ok {
		out[MetricDisk] = v
	}
	if s.Net.Ok() {
		out[MetricNetSent] = float64(s.Net.Value.Sent)
		out[MetricNetRecv] = float64(s.Net.Value.Recv)
	}
	if s.DiskIO.Ok() {
		out[MetricDiskRead] = float64(s.DiskIO.Value.Read)
		out[MetricDiskWrite] = float64(s.DiskIO.Value.Written)
	}
	if s.Battery.Ok() {
		out[MetricBattery] = s.Battery.Value.Percent
	}
	return out
}

// Percent returns used/total as 0-100, 0 when total is unknown.
func Percent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}
