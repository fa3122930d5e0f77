package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spiffcs/reviewdeck/internal/model"
)

// NewCmdRepos creates the repos command with subcommands.
func NewCmdRepos(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "Manage monitored repositories",
		Long: `Manage the repositories whose pull requests appear in the worklist.

Subcommands:
  list      Show monitored repositories
  search    Search a provider for repositories you can access
  add       Search a provider and monitor the matching repository
  remove    Stop monitoring a repository`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReposList(opts)
		},
	}

	cmd.AddCommand(NewCmdReposList(opts))
	cmd.AddCommand(NewCmdReposSearch(opts))
	cmd.AddCommand(NewCmdReposAdd(opts))
	cmd.AddCommand(NewCmdReposRemove(opts))

	return cmd
}

// NewCmdReposList creates the repos list subcommand.
func NewCmdReposList(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show monitored repositories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReposList(opts)
		},
	}
	addCommonFlags(cmd, opts)
	return cmd
}

// NewCmdReposSearch creates the repos search subcommand.
func NewCmdReposSearch(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a provider for repositories you can access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReposSearch(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", "", "Provider to search (bitbucket, github, gitlab)")
	_ = cmd.MarkFlagRequired("provider")
	addCommonFlags(cmd, opts)
	return cmd
}

// NewCmdReposAdd creates the repos add subcommand.
func NewCmdReposAdd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <query>",
		Short: "Search a provider and monitor the matching repository",
		Long: `Searches the provider for repositories matching the query and starts
monitoring the result. The query must match exactly one repository;
narrow it (or use the full name) when it matches several.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReposAdd(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", "", "Provider to search (bitbucket, github, gitlab)")
	_ = cmd.MarkFlagRequired("provider")
	addCommonFlags(cmd, opts)
	return cmd
}

// NewCmdReposRemove creates the repos remove subcommand.
func NewCmdReposRemove(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id-or-full-name>",
		Short: "Stop monitoring a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReposRemove(opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Provider, "provider", "p", "", "Provider of the repository (bitbucket, github, gitlab)")
	_ = cmd.MarkFlagRequired("provider")
	addCommonFlags(cmd, opts)
	return cmd
}

func runReposList(opts *Options) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}

	monitored := rt.svc.Repos().All()
	if len(monitored) == 0 {
		fmt.Println("No repositories monitored.")
		return nil
	}

	for _, repo := range monitored {
		fmt.Printf("  %-10s %-40s %s\n", repo.Provider, repo.FullName, repo.ID)
	}
	fmt.Printf("\n%d repositories monitored\n", len(monitored))
	return nil
}

func runReposSearch(cmd *cobra.Command, opts *Options, query string) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}
	p, err := parseProvider(opts.Provider)
	if err != nil {
		return err
	}

	found, err := rt.svc.SearchRepositories(cmd.Context(), p, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(found) == 0 {
		fmt.Printf("No repositories matching %q on %s.\n", query, p.DisplayName())
		return nil
	}

	for _, repo := range found {
		marker := " "
		if rt.svc.Repos().IsMonitored(repo.ID, repo.Provider) {
			marker = "*"
		}
		fmt.Printf("%s %-40s %s\n", marker, repo.FullName, repo.ID)
	}
	fmt.Println("\n* = already monitored")
	return nil
}

func runReposAdd(cmd *cobra.Command, opts *Options, query string) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}
	p, err := parseProvider(opts.Provider)
	if err != nil {
		return err
	}

	found, err := rt.svc.SearchRepositories(cmd.Context(), p, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	repo, err := pickRepository(found, query)
	if err != nil {
		return err
	}

	if rt.svc.Repos().IsMonitored(repo.ID, repo.Provider) {
		fmt.Printf("%s is already monitored.\n", repo.FullName)
		return nil
	}
	if err := rt.svc.Repos().Add(repo); err != nil {
		return err
	}
	fmt.Printf("Monitoring %s (%s).\n", repo.FullName, repo.Provider.DisplayName())
	return nil
}

// pickRepository narrows search results to a single repository: an exact
// full-name or name match wins, otherwise the query must be unambiguous.
func pickRepository(found []model.Repository, query string) (model.Repository, error) {
	if len(found) == 0 {
		return model.Repository{}, fmt.Errorf("no repositories matching %q", query)
	}
	if len(found) == 1 {
		return found[0], nil
	}
	for _, repo := range found {
		if strings.EqualFold(repo.FullName, query) || strings.EqualFold(repo.Name, query) {
			return repo, nil
		}
	}

	names := make([]string, 0, len(found))
	for _, repo := range found {
		names = append(names, repo.FullName)
	}
	return model.Repository{}, fmt.Errorf("query %q matches %d repositories: %s",
		query, len(found), strings.Join(names, ", "))
}

func runReposRemove(opts *Options, idOrName string) error {
	rt, err := setupRuntime(opts, os.Stderr)
	if err != nil {
		return err
	}
	p, err := parseProvider(opts.Provider)
	if err != nil {
		return err
	}

	store := rt.svc.Repos()
	id := idOrName
	if !store.IsMonitored(id, p) {
		// Accept the full name as a convenience.
		for _, repo := range store.All() {
			if repo.Provider == p && strings.EqualFold(repo.FullName, idOrName) {
				id = repo.ID
				break
			}
		}
	}
	if !store.IsMonitored(id, p) {
		return fmt.Errorf("%s repository %q is not monitored", p.DisplayName(), idOrName)
	}

	if err := store.Remove(id, p); err != nil {
		return err
	}
	fmt.Printf("Stopped monitoring %s repository %s.\n", p.DisplayName(), idOrName)
	return nil
}
