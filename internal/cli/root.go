package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lonitor/lonitor/internal/config"
	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/logger"
	"github.com/lonitor/lonitor/internal/monitor"
	"github.com/lonitor/lonitor/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type app struct {
	cfg        *config.Config
	mon        *monitor.Monitor
	logCloser  io.Closer
	stop       context.CancelFunc
	newMonitor func(cfg *config.Config) *monitor.Monitor
	runTUI     func(ctx context.Context, mon *monitor.Monitor) error
}

// Execute runs the lonitor command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lonitor:", err)
		os.Exit(exitCode(err))
	}
}

func NewRootCmd() *cobra.Command {
	return newRoot(&app{
		newMonitor: func(cfg *config.Config) *monitor.Monitor {
			return monitor.New(monitor.FromConfig(cfg))
		},
		runTUI: ui.Run,
	})
}

func newRoot(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lonitor",
		Short: "Local system monitor with quick maintenance actions",
		Long: "lonitor samples CPU, memory, disk, network, temperature and battery once per interval,\n" +
			"keeps a short history of each and lets you switch power profiles, drop caches and\n" +
			"terminate processes. Without a subcommand it opens the terminal dashboard.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context(), a.mon)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.snapshotCmd(),
		a.streamCmd(),
		a.historyCmd(),
		a.topCmd(),
		a.powerCmd(),
		a.clearRAMCmd(),
		a.clearStorageCmd(),
		a.killCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	switch {
	case cfg.LogFile != "":
		closer, err := logger.InitFile(level, cfg.LogFile)
		if err != nil {
			return errors.New().Wrap(errors.ErrInvalidConfig, err)
		}
		a.logCloser = closer
	case cmd == cmd.Root():
		// the dashboard owns the terminal
		logger.Init(level, io.Discard, false)
	default:
		logger.Init(level, os.Stderr, isatty.IsTerminal(os.Stderr.Fd()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	cmd.SetContext(ctx)
	a.stop = stop

	a.cfg = cfg
	a.mon = a.newMonitor(cfg)
	logger.Debug().
		Dur("interval", cfg.Interval).
		Int("history_size", cfg.HistorySize).
		Str("command", cmd.Name()).
		Msg("configured")
	return nil
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.mon != nil {
		a.mon.Stop()
	}
	if a.stop != nil {
		a.stop()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrInvalidArgument, errors.ErrInvalidConfig, errors.ErrInvalidInterval,
		errors.ErrInvalidLogLevel, errors.ErrReadConfig, errors.ErrBindFlags:
		return 2
	case errors.ErrPermissionDenied:
		return 77
	}
	return 1
}
