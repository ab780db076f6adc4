package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/docker/go-units"
	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// write encodes v as indented JSON or as YAML with the same field names.
func write(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML, "yml":
		b, err := json.Marshal(v)
		if err != nil {
			return errors.New().Wrap(errors.ErrInternal, err)
		}
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return errors.New().Wrap(errors.ErrInternal, err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.New().Wrap(errors.ErrInternal, err)
		}
		return enc.Close()
	}
	return errors.New().WithData(errors.ErrInvalidArgument, "unknown format "+format)
}

func processTable(procs []model.ProcessInfo) string {
	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		rows = append(rows, []string{
			strconv.Itoa(int(p.PID)),
			p.Name,
			fmt.Sprintf("%.1f", p.CPUPercent),
			fmt.Sprintf("%.1f", p.MemoryPercent),
		})
	}
	return newTable("PID", "NAME", "CPU%", "MEM%").Rows(rows...).String()
}

func historyTable(metric model.Metric, points []model.Point) string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.Timestamp.Format(time.TimeOnly), formatValue(metric, p.Value)})
	}
	return newTable("TIME", strings.ToUpper(string(metric))).Rows(rows...).String()
}

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// newTable sizes every column from padded cells. Unpadded cells get measured
// at their exact width and the renderer then trims their last rune.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(int, int) lipgloss.Style { return cellStyle }).
		Headers(headers...)
}

// formatValue renders a history value in the metric's unit.
func formatValue(metric model.Metric, v float64) string {
	switch metric {
	case model.MetricCPUTemp:
		return fmt.Sprintf("%.1f°C", v)
	case model.MetricNetSent, model.MetricNetRecv, model.MetricDiskRead, model.MetricDiskWrite:
		return units.HumanSize(v)
	}
	return fmt.Sprintf("%.1f%%", v)
}

func recordLine(rec model.ActionRecord) string {
	return fmt.Sprintf("%s %s: %s", rec.Kind, rec.Outcome, rec.Detail)
}
