package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/output"
)

// NewCmdList creates the list command.
func NewCmdList(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch and print the classified worklist (same as bare 'reviewdeck')",
		Long: `Fetches open and recently-merged pull requests from every monitored
repository, classifies them, and prints them grouped by category.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	addListFlags(cmd, opts)
	return cmd
}

// addListFlags adds the list-specific flags to a command.
func addListFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Format, "output", "o", "", "Output format (table, json)")
	addCommonFlags(cmd, opts)
}

func runList(cmd *cobra.Command, opts *Options) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}

	if rt.svc.Repos().Count() == 0 && !opts.Demo {
		fmt.Println("No repositories monitored. Add one with: reviewdeck repos add")
		return nil
	}

	err = rt.svc.Refresh(cmd.Context(), true)
	snap := rt.svc.Snapshot()

	// A cycle that produced nothing is a hard failure; partial data is
	// printed with the error surfaced alongside.
	if err != nil && snap.Result.VisibleCount() == 0 {
		return err
	}
	if err != nil {
		log.Warn("refresh completed with errors", "error", err)
	}

	format := output.Format(opts.Format)
	if format == "" {
		format = output.Format(rt.cfg.DefaultFormat)
	}

	formatter := output.NewFormatter(format)
	return formatter.Format(snap.Result, snap.LastUpdated, os.Stdout)
}
