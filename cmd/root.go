package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "reviewdeck",
		Short: "Pull request worklist across Bitbucket, GitHub, and GitLab",
		Long: `Aggregates the pull and merge requests you care about from Bitbucket,
GitHub, and GitLab into one classified worklist: what needs your review,
what you are waiting on, and what your team is up to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Add list flags to root command so `reviewdeck` and `reviewdeck list`
	// work identically
	addListFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdList(opts))
	rootCmd.AddCommand(NewCmdWatch(opts))
	rootCmd.AddCommand(NewCmdRepos(opts))
	rootCmd.AddCommand(NewCmdSnooze(opts))
	rootCmd.AddCommand(NewCmdUnsnooze(opts))
	rootCmd.AddCommand(NewCmdRateLimit(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}

// addCommonFlags adds the flags shared by every data command.
func addCommonFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "Use the built-in demo dataset instead of the network")
}
