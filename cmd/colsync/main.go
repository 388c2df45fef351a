package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/h0rv/colsync/internal/app"
	"github.com/h0rv/colsync/internal/config"
	"github.com/h0rv/colsync/internal/shell"
	"github.com/h0rv/colsync/internal/tui"
)

// options are the flags shared by every command.
type options struct {
	configPath  string
	store       string
	filters     assignments
	metricsAddr string
	logLevel    string
}

// assignments collects repeated --filter k=v flags.
type assignments []string

var _ flag.Value = (*assignments)(nil)

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*a = append(*a, v)
	return nil
}

func (a *assignments) Type() string { return "key=value" }

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "config file (default: colsync.yaml or $COLSYNC_CONFIG)")
	fs.StringVarP(&o.store, "store", "s", "", "store to operate on (default: the first configured)")
	fs.VarP(&o.filters, "filter", "f", "filter to apply before running, repeatable")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "colsync",
		Short: "Client-side sync engine for REST and GraphQL collections",
		Long: `colsync keeps local, cached copies of remote collections and lets you
browse, filter and move their items between status buckets.

Without a subcommand it opens the interactive board.

Authentication:
  1. token in the config file
  2. Environment variable: Set COLSYNC_TOKEN
  3. token_command in the config file (e.g. ["gh", "auth", "token"])`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), o)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.register(root.PersistentFlags())

	root.AddCommand(
		tuiCmd(o),
		shellCmd(o),
		storesCmd(o),
		fetchCmd(o),
		getCmd(o),
		moveCmd(o),
		bulkCmd(o),
		exportCmd(o),
		syncCmd(o),
		configCmd(o),
	)
	return root
}

// setup loads the config and wires the application. The returned stop
// function ends the metrics server and releases the signal handler.
func setup(ctx context.Context, o *options) (*app.App, context.Context, func(), error) {
	cfg, _, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	if len(cfg.Resources) == 0 {
		return nil, nil, nil, errors.New("no resources configured")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.ServeMetrics(ctx, cfg.MetricsAddr); err != nil {
				a.Logger.Error("metrics server stopped", "error", err)
			}
		}()
	}
	return a, ctx, cancel, nil
}

// newShell returns a shell on the selected store with --filter applied.
func newShell(ctx context.Context, a *app.App, o *options) (*shell.Shell, error) {
	s := shell.New(a, os.Stdout)
	if o.store != "" {
		if err := s.Call(ctx, "use", o.store); err != nil {
			return nil, err
		}
	}
	if len(o.filters) > 0 {
		if err := s.Call(ctx, "filter", o.filters...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runTUI(ctx context.Context, o *options) error {
	a, ctx, stop, err := setup(ctx, o)
	if err != nil {
		return err
	}
	defer stop()

	if o.store != "" && len(o.filters) > 0 {
		if _, err := newShell(ctx, a, o); err != nil {
			return err
		}
	}

	p := tea.NewProgram(tui.NewAppModel(a, ctx, o.store), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
