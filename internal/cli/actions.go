package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/spf13/cobra"
)

// report prints the action's record and passes its error through so the
// exit status reflects the outcome.
func report(cmd *cobra.Command, rec model.ActionRecord, err error) error {
	fmt.Fprintln(cmd.OutOrStdout(), recordLine(rec))
	return err
}

func (a *app) powerCmd() *cobra.Command {
	names := make([]string, 0, len(model.PowerProfiles))
	for _, p := range model.PowerProfiles {
		names = append(names, string(p))
	}
	return &cobra.Command{
		Use:       "power <" + strings.Join(names, "|") + ">",
		Short:     "Switch the system power profile",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := model.ParsePowerProfile(args[0])
			if err != nil {
				return err
			}
			rec, err := a.mon.SetPowerProfile(cmd.Context(), p)
			return report(cmd, rec, err)
		},
	}
}

func (a *app) clearRAMCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-ram",
		Short: "Drop the kernel page cache (needs root)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.mon.ClearRAMCache(cmd.Context())
			return report(cmd, rec, err)
		},
	}
}

func (a *app) clearStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-storage",
		Short: "Empty the configured cache directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.mon.ClearStorageCache(cmd.Context())
			return report(cmd, rec, err)
		},
	}
}

func (a *app) killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <pid>",
		Short: "Send SIGTERM to a running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return errors.New().Wrap(errors.ErrInvalidArgument, err)
			}
			ctx := cmd.Context()
			if err := a.enumerate(ctx); err != nil {
				return err
			}
			rec, err := a.mon.KillProcess(ctx, int32(pid))
			return report(cmd, rec, err)
		},
	}
}

// enumerate refreshes the process view so kill can see every live pid.
func (a *app) enumerate(ctx context.Context) error {
	_, err := a.mon.Sample(ctx)
	return err
}
