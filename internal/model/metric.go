package model

import (
	"strings"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
)

// Metric names one history series.
type Metric string

const (
	MetricCPU       Metric = "cpu"
	MetricCPUTemp   Metric = "cpu_temp"
	MetricMemory    Metric = "memory"
	MetricDisk      Metric = "disk"
	MetricNetSent   Metric = "net_sent"
	MetricNetRecv   Metric = "net_recv"
	MetricDiskRead  Metric = "disk_read"
	MetricDiskWrite Metric = "disk_write"
	MetricBattery   Metric = "battery"
)

// Metrics lists every series kept in history, in display order.
var Metrics = []Metric{
	MetricCPU,
	MetricCPUTemp,
	MetricMemory,
	MetricDisk,
	MetricNetSent,
	MetricNetRecv,
	MetricDiskRead,
	MetricDiskWrite,
	MetricBattery,
}

// ParseMetric accepts a metric name as typed by a user.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Metrics {
		if m == known {
			return m, nil
		}
	}
	return "", errors.New().WithData(errors.ErrInvalidArgument, s)
}

// Percentage reports whether the metric is a 0-100 value that threshold bands apply to.
func (m Metric) Percentage() bool {
	switch m {
	case MetricCPU, MetricMemory, MetricDisk, MetricBattery:
		return true
	}
	return false
}

// Point is one (timestamp, value) pair of a history series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
