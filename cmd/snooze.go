package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reviewdeck/internal/duration"
	"github.com/spiffcs/reviewdeck/internal/snooze"
)

// NewCmdSnooze creates the snooze command.
func NewCmdSnooze(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snooze <item-id> <duration|tomorrow>",
		Short: "Hide an item until later",
		Long: `Hides a pull request from the worklist for a while.

The duration is a value like 30m, 4h, 2d, or 1w, or the word "tomorrow"
to hide it until the next day at 09:00.

Item ids appear in the JSON output ('reviewdeck list -o json').`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnooze(opts, args[0], args[1])
		},
	}

	cmd.AddCommand(NewCmdSnoozeList(opts))
	addCommonFlags(cmd, opts)
	return cmd
}

// NewCmdSnoozeList creates the snooze list subcommand.
func NewCmdSnoozeList(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show active snoozes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnoozeList(opts)
		},
	}
	addCommonFlags(cmd, opts)
	return cmd
}

// NewCmdUnsnooze creates the unsnooze command.
func NewCmdUnsnooze(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unsnooze <item-id>",
		Short: "Bring a snoozed item back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnsnooze(opts, args[0])
		},
	}
	addCommonFlags(cmd, opts)
	return cmd
}

func runSnooze(opts *Options, id, arg string) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}

	if arg == "tomorrow" {
		until := snooze.TomorrowMorning(time.Now())
		if err := rt.svc.Snoozes().SnoozeUntil(id, until); err != nil {
			return err
		}
		fmt.Printf("Snoozed %s until %s.\n", id, until.Format("Mon 15:04"))
		return nil
	}

	d, err := duration.Parse(arg)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", arg, err)
	}
	if err := rt.svc.Snoozes().Snooze(id, d); err != nil {
		return err
	}
	fmt.Printf("Snoozed %s for %s.\n", id, arg)
	return nil
}

func runSnoozeList(opts *Options) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}

	store := rt.svc.Snoozes()
	ids := store.IDs()
	if len(ids) == 0 {
		fmt.Println("No active snoozes.")
		return nil
	}
	for _, id := range ids {
		if until, ok := store.Until(id); ok {
			fmt.Printf("  %-40s until %s\n", id, until.Format("Mon 15:04"))
		}
	}
	return nil
}

func runUnsnooze(opts *Options, id string) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}

	if _, ok := rt.svc.Snoozes().Until(id); !ok {
		return fmt.Errorf("%s is not snoozed", id)
	}
	if err := rt.svc.Snoozes().Unsnooze(id); err != nil {
		return err
	}
	fmt.Printf("Unsnoozed %s.\n", id)
	return nil
}
