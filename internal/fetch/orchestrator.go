// Package fetch fans one refresh cycle out across providers and
// repositories, bounding concurrency and tolerating partial failure.
package fetch

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
	"golang.org/x/sync/errgroup"
)

// ErrMultipleAuth is surfaced when two or more providers report distinct
// authentication failures in the same cycle.
var ErrMultipleAuth = errors.New("multiple providers failed authentication")

// ClientFactory builds a provider client from a per-cycle credential
// snapshot. A fresh client per cycle keeps credentials immutable for the
// duration of the cycle.
type ClientFactory func(p model.Provider, creds model.Credentials) (provider.Client, error)

// Result is the raw outcome of one refresh cycle before error resolution.
type Result struct {
	Items  []model.Item
	Errors []error
}

// Run fetches all items for the monitored repositories across all
// providers. Repositories are partitioned by provider; each provider runs
// as its own task so a fatal error in one never aborts the others. Within
// a provider, each repository's failure is caught individually: fatal
// errors (auth, rate limit) stop that provider's remaining repositories,
// recoverable errors are recorded and fetching continues, and cancellation
// results are dropped silently.
func Run(ctx context.Context, factory ClientFactory, repos []model.Repository, creds map[model.Provider]model.Credentials) Result {
	byProvider := make(map[model.Provider][]model.Repository)
	for _, repo := range repos {
		byProvider[repo.Provider] = append(byProvider[repo.Provider], repo)
	}

	var (
		mu     sync.Mutex
		result Result
	)

	// The group carries no shared cancellation between providers; worker
	// funcs always return nil and report through the guarded result.
	g := new(errgroup.Group)

	for p, providerRepos := range byProvider {
		p, providerRepos := p, providerRepos
		g.Go(func() error {
			items, errs := fetchProvider(ctx, factory, p, providerRepos, creds[p])
			mu.Lock()
			result.Items = append(result.Items, items...)
			result.Errors = append(result.Errors, errs...)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	// Concurrent fetches carry no ordering; impose a deterministic one.
	sort.Slice(result.Items, func(i, j int) bool {
		if result.Items[i].LastActivity.Equal(result.Items[j].LastActivity) {
			return result.Items[i].ID < result.Items[j].ID
		}
		return result.Items[i].LastActivity.After(result.Items[j].LastActivity)
	})

	return result
}

func fetchProvider(ctx context.Context, factory ClientFactory, p model.Provider, repos []model.Repository, creds model.Credentials) ([]model.Item, []error) {
	client, err := factory(p, creds)
	if err != nil {
		return nil, []error{&provider.RepoError{Provider: p, Err: err}}
	}

	var (
		items []model.Item
		errs  []error
	)

	for _, repo := range repos {
		fetched, err := client.PullRequests(ctx, repo)
		if err != nil {
			if provider.IsCanceled(err) {
				continue
			}
			err = &provider.RepoError{Provider: p, Repo: repo.FullName, Err: err}
			errs = append(errs, err)
			if provider.IsFatal(err) {
				log.Warn("provider fetch aborted", "provider", p, "repo", repo.FullName, "error", err)
				break
			}
			log.Debug("repository fetch failed", "provider", p, "repo", repo.FullName, "error", err)
			continue
		}
		items = append(items, fetched...)
	}

	return items, errs
}

// Resolve reduces a cycle's raw errors to at most one user-visible
// condition: distinct auth failures from ≥2 providers combine into
// ErrMultipleAuth; otherwise the first fatal error wins; otherwise, when
// the cycle produced no items at all, the first recoverable error
// surfaces; otherwise partial data is accepted and no error is reported.
func Resolve(result Result) error {
	if len(result.Errors) == 0 {
		return nil
	}

	authProviders := make(map[model.Provider]bool)
	for _, err := range result.Errors {
		if !errors.Is(err, provider.ErrUnauthorized) {
			continue
		}
		var repoErr *provider.RepoError
		if errors.As(err, &repoErr) {
			authProviders[repoErr.Provider] = true
		}
	}
	if len(authProviders) > 1 {
		return ErrMultipleAuth
	}

	for _, err := range result.Errors {
		if provider.IsFatal(err) {
			return err
		}
	}

	if len(result.Items) == 0 {
		return result.Errors[0]
	}
	return nil
}

// ShouldReplaceSnapshot reports whether the cycle's outcome replaces the
// stored snapshot. A complete failure (no items, errors present) retains
// the previous snapshot instead of clearing the display.
func ShouldReplaceSnapshot(result Result) bool {
	return len(result.Items) > 0 || len(result.Errors) == 0
}
