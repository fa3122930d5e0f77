package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reviewdeck/internal/core"
	"github.com/spiffcs/reviewdeck/internal/schedule"
	"github.com/spiffcs/reviewdeck/internal/tui"
)

// NewCmdWatch creates the watch command.
func NewCmdWatch(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard that refreshes in the background",
		Long: `Opens an interactive dashboard showing the classified worklist.
The list refreshes on the configured interval during active hours and
immediately when the monitored repositories change.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(opts)
		},
	}

	addCommonFlags(cmd, opts)
	return cmd
}

func runWatch(opts *Options) error {
	if !tui.ShouldUseTUI() {
		return fmt.Errorf("watch needs an interactive terminal; use 'reviewdeck list' instead")
	}

	// Logs would interleave with the dashboard.
	rt, err := setupRuntime(opts, io.Discard)
	if err != nil {
		return err
	}

	hours := watchHours(rt.settings.Hours, opts.Demo)

	scheduler := schedule.New(rt.settings.RefreshInterval, hours, func(force bool) {
		_ = rt.svc.Refresh(context.Background(), force)
	})
	rt.svc.Repos().OnChange(scheduler.NotifyRepoChange)
	scheduler.Start()
	defer scheduler.Stop()

	return tui.Run(rt.svc, scheduler)
}

// watchHours drops the active-hours window in demo mode so the demo
// dashboard refreshes around the clock.
func watchHours(configured schedule.Hours, demoFlag bool) schedule.Hours {
	if core.DemoEnabled(demoFlag) {
		return alwaysActive()
	}
	return configured
}

// alwaysActive covers every hour of every day.
func alwaysActive() schedule.Hours {
	return schedule.Hours{
		StartHour: 0,
		EndHour:   24,
		Days: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
	}
}
