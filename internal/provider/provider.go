// Package provider defines the uniform contract implemented once per
// code-hosting provider, plus the error taxonomy and HTTP plumbing the
// concrete clients share.
package provider

import (
	"context"

	"github.com/spiffcs/reviewdeck/internal/model"
)

// Client is the capability set every provider implements. A factory
// selects the concrete implementation by provider tag; there is no shared
// base type, only this contract.
type Client interface {
	// Provider returns the provider tag for this client.
	Provider() model.Provider

	// CurrentUser returns the authenticated account. Fails with
	// ErrUnauthorized on bad credentials (ErrRateLimited for GitHub's
	// overloaded 403, see StatusError).
	CurrentUser(ctx context.Context) (model.User, error)

	// Repositories lists repositories the authenticated user can access,
	// optionally filtered by substring match on name or full name. The
	// filter runs server-side where the provider supports it and
	// client-side otherwise.
	Repositories(ctx context.Context, query string) ([]model.Repository, error)

	// PullRequests fetches open items and recently-merged items (bounded
	// by the merge lookback window) for one repository and returns them
	// pre-classified. All pages are followed; an error on any page aborts
	// the whole call.
	PullRequests(ctx context.Context, repo model.Repository) ([]model.Item, error)
}

// Tracker observes every outbound provider call as a side channel. The
// rate-limit tracker implements it; tests substitute recorders.
type Tracker interface {
	Track(p model.Provider, statusCode int)
}

// NopTracker discards observations.
type NopTracker struct{}

// Track implements Tracker.
func (NopTracker) Track(model.Provider, int) {}
