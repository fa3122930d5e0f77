package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reviewdeck/internal/ratelimit"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Show advisory API usage per provider",
		Long: `Displays how many calls reviewdeck has made to each provider in the
current hourly window, the configured budget, and whether any provider
has reported rate-limit exhaustion.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRateLimit(opts)
		},
	}
	addCommonFlags(cmd, opts)
	return cmd
}

func runRateLimit(opts *Options) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}

	tracker := rt.tracker
	fmt.Println("API usage this hour:")
	fmt.Println()

	for _, status := range tracker.Statuses() {
		line := fmt.Sprintf("  %-10s %4d/%-5d %s",
			status.Provider.DisplayName(), status.Usage, status.Budget, status.Level)
		if status.Limited {
			line += "  LIMITED"
		}
		fmt.Println(line)
	}

	fmt.Println()
	if resetAt := tracker.ResetAt(); !resetAt.IsZero() {
		resetIn := time.Until(resetAt).Round(time.Second)
		if resetIn < 0 {
			resetIn = 0
		}
		fmt.Printf("Rate limit resets in %s\n", resetIn)
	} else {
		windowEnds := tracker.WindowStart().Add(ratelimit.Window)
		fmt.Printf("Window resets %s\n", windowEnds.Format("15:04"))
	}
	fmt.Printf("Overall level: %s\n", tracker.OverallLevel())

	return nil
}
