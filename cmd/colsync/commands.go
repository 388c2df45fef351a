package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h0rv/colsync/internal/config"
)

// shellRun adapts a shell command to a cobra RunE. show is run afterwards
// when set, so one-shot invocations print what they fetched.
func shellRun(o *options, name string, show bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, ctx, stop, err := setup(cmd.Context(), o)
		if err != nil {
			return err
		}
		defer stop()

		s, err := newShell(ctx, a, o)
		if err != nil {
			return err
		}
		if err := s.Call(ctx, name, args...); err != nil {
			return err
		}
		if show {
			return s.Call(ctx, "show")
		}
		return nil
	}
}

func tuiCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), o)
		},
	}
}

func shellCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive command shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, stop, err := setup(cmd.Context(), o)
			if err != nil {
				return err
			}
			defer stop()

			s, err := newShell(ctx, a, o)
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}
}

func storesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the configured stores",
		Args:  cobra.NoArgs,
		RunE:  shellRun(o, "stores", false),
	}
}

func fetchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:       "fetch [default|force|checked]",
		Short:     "Fetch the list for the store's query and print it",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"default", "force", "checked"},
		RunE:      shellRun(o, "fetch", true),
	}
}

func getCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> [force]",
		Short: "Fetch a single item",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  shellRun(o, "get", false),
	}
}

func moveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move <status> <id>...",
		Short: "Move items to a status bucket",
		Long: `Move items to a status bucket.

The items are loaded with a fetch of the store's query first, so the ids
must be part of the current view.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, stop, err := setup(cmd.Context(), o)
			if err != nil {
				return err
			}
			defer stop()

			s, err := newShell(ctx, a, o)
			if err != nil {
				return err
			}
			if err := s.Call(ctx, "fetch"); err != nil {
				return err
			}
			return s.Call(ctx, "move", args...)
		},
	}
}

func bulkCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <status>",
		Short: "Move every item matching the store's query",
		Args:  cobra.ExactArgs(1),
		RunE:  shellRun(o, "bulk", false),
	}
}

func exportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Download the report for the store's query",
		Args:  cobra.NoArgs,
		RunE:  shellRun(o, "export", false),
	}
}

func syncCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [key=value]...",
		Short: "Start the sync job and wait until it finishes",
		RunE:  shellRun(o, "sync", false),
	}
}

func configCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			if cfg.Token != "" {
				cfg.Token = "********"
			}
			out, err := config.Format(cfg)
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
