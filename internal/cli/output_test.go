package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/lonitor/lonitor/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestProcessTableKeepsFullCells(t *testing.T) {
	out := processTable([]model.ProcessInfo{
		{PID: 12345, Name: "firefox-bin", CPUPercent: 42.5, MemoryPercent: 7},
		{PID: 7, Name: "sh", CPUPercent: 0.1},
	})

	for _, want := range []string{"12345", "firefox-bin", "42.5", "7.0", "sh", "0.1", "PID", "NAME", "CPU%", "MEM%"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "…")
}

func TestHistoryTableKeepsFullCells(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)
	out := historyTable(model.MetricCPU, []model.Point{{Timestamp: ts, Value: 30}})

	assert.Contains(t, out, "09:30:15")
	assert.Contains(t, out, "30.0%")
	assert.Contains(t, out, strings.ToUpper(string(model.MetricCPU)))
	assert.NotContains(t, out, "…")
}

func TestFormatValueUnits(t *testing.T) {
	assert.Equal(t, "61.5°C", formatValue(model.MetricCPUTemp, 61.5))
	assert.Equal(t, "2kB", formatValue(model.MetricNetSent, 2000))
	assert.Equal(t, "12.0%", formatValue(model.MetricMemory, 12))
}
