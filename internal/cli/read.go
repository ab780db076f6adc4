package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lonitor/lonitor/internal/history"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/spf13/cobra"
)

type snapshotView struct {
	model.Snapshot
	Bands     map[model.Metric]history.Band `json:"bands"`
	Processes []model.ProcessInfo           `json:"processes,omitempty"`
}

func (a *app) view(snap model.Snapshot, withProcs bool) snapshotView {
	v := snapshotView{Snapshot: snap, Bands: make(map[model.Metric]history.Band)}
	for _, m := range model.Metrics {
		if m.Percentage() {
			v.Bands[m] = a.mon.Thresholds().ClassifySnapshot(snap, m)
		}
	}
	if withProcs {
		v.Processes = a.mon.TopProcesses()
	}
	return v
}

// warm takes n ticks one interval apart. Usage percentages and deltas need
// at least two.
func (a *app) warm(ctx context.Context, n int) (model.Snapshot, error) {
	var snap model.Snapshot
	for i := 0; i < n; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return snap, ctx.Err()
			case <-time.After(a.mon.Interval()):
			}
		}
		s, err := a.mon.Sample(ctx)
		if err != nil {
			return s, err
		}
		snap = s
	}
	return snap, nil
}

func (a *app) snapshotCmd() *cobra.Command {
	var (
		format string
		procs  bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one snapshot of every metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := a.warm(cmd.Context(), 2)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), format, a.view(snap, procs))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatJSON, "output format: json or yaml")
	cmd.Flags().BoolVar(&procs, "processes", true, "include the top processes")
	return cmd
}

func (a *app) streamCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream snapshots as NDJSON until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snaps := a.mon.Subscribe(4)
			if err := a.mon.Start(ctx); err != nil {
				return err
			}
			defer a.mon.Stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for n := 0; count <= 0 || n < count; n++ {
				select {
				case <-ctx.Done():
					return nil
				case snap, ok := <-snaps:
					if !ok {
						return nil
					}
					if err := enc.Encode(a.view(snap, false)); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many snapshots (0 streams forever)")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		format  string
		samples int
	)
	cmd := &cobra.Command{
		Use:   "history <metric>",
		Short: "Collect a few ticks and print one metric's history",
		Long: "Collect --samples ticks and print the series of one metric, oldest first.\n" +
			"Metrics: cpu, cpu_temp, memory, disk, net_sent, net_recv, disk_read, disk_write, battery.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metric, err := model.ParseMetric(args[0])
			if err != nil {
				return err
			}
			if _, err := a.warm(cmd.Context(), samples); err != nil {
				return err
			}
			points, err := a.mon.History(metric)
			if err != nil {
				return err
			}
			if format == "table" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), historyTable(metric, points))
				return err
			}
			return write(cmd.OutOrStdout(), format, points)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, json or yaml")
	cmd.Flags().IntVar(&samples, "samples", 5, "ticks to collect before printing")
	return cmd
}

func (a *app) topCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the processes using the most CPU",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.warm(cmd.Context(), 2); err != nil {
				return err
			}
			top := a.mon.TopProcesses()
			if format == "table" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), processTable(top))
				return err
			}
			return write(cmd.OutOrStdout(), format, top)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "output format: table, json or yaml")
	return cmd
}
