package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
)

// fakeClient serves canned per-repository results.
type fakeClient struct {
	provider model.Provider
	items    map[string][]model.Item
	errs     map[string]error
	calls    []string
}

func (f *fakeClient) Provider() model.Provider { return f.provider }

func (f *fakeClient) CurrentUser(ctx context.Context) (model.User, error) {
	return model.User{ID: "me"}, nil
}

func (f *fakeClient) Repositories(ctx context.Context, query string) ([]model.Repository, error) {
	return nil, nil
}

func (f *fakeClient) PullRequests(ctx context.Context, repo model.Repository) ([]model.Item, error) {
	f.calls = append(f.calls, repo.FullName)
	if err := f.errs[repo.FullName]; err != nil {
		return nil, err
	}
	return f.items[repo.FullName], nil
}

func makeRepo(p model.Provider, fullName string) model.Repository {
	return model.Repository{ID: fullName, FullName: fullName, Name: fullName, Provider: p}
}

func makeItem(id string, age time.Duration) model.Item {
	return model.Item{
		ID:           id,
		State:        model.StateNeedsReview,
		LastActivity: time.Now().Add(-age),
	}
}

func factoryFor(clients map[model.Provider]*fakeClient) ClientFactory {
	return func(p model.Provider, creds model.Credentials) (provider.Client, error) {
		return clients[p], nil
	}
}

func TestRunPartialFailureContinues(t *testing.T) {
	bb := &fakeClient{
		provider: model.ProviderBitbucket,
		items: map[string][]model.Item{
			"team/a": {makeItem("a1", time.Hour)},
			"team/c": {makeItem("c1", 2*time.Hour)},
		},
		errs: map[string]error{
			"team/b": &provider.APIError{StatusCode: 500},
		},
	}

	repos := []model.Repository{
		makeRepo(model.ProviderBitbucket, "team/a"),
		makeRepo(model.ProviderBitbucket, "team/b"),
		makeRepo(model.ProviderBitbucket, "team/c"),
	}

	result := Run(context.Background(), factoryFor(map[model.Provider]*fakeClient{model.ProviderBitbucket: bb}), repos, nil)

	if len(result.Items) != 2 {
		t.Errorf("items = %d, want 2 (recoverable error must not abort the batch)", len(result.Items))
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(result.Errors))
	}
	if len(bb.calls) != 3 {
		t.Errorf("repositories fetched = %d, want all 3", len(bb.calls))
	}
}

func TestRunFatalStopsProviderOnly(t *testing.T) {
	bb := &fakeClient{
		provider: model.ProviderBitbucket,
		errs: map[string]error{
			"team/a": provider.ErrUnauthorized,
		},
	}
	gh := &fakeClient{
		provider: model.ProviderGitHub,
		items: map[string][]model.Item{
			"org/x": {makeItem("x1", time.Hour)},
		},
	}

	repos := []model.Repository{
		makeRepo(model.ProviderBitbucket, "team/a"),
		makeRepo(model.ProviderBitbucket, "team/b"),
		makeRepo(model.ProviderGitHub, "org/x"),
	}

	clients := map[model.Provider]*fakeClient{
		model.ProviderBitbucket: bb,
		model.ProviderGitHub:    gh,
	}
	result := Run(context.Background(), factoryFor(clients), repos, nil)

	// Fatal error aborts bitbucket's remaining repositories...
	if len(bb.calls) != 1 {
		t.Errorf("bitbucket fetches after fatal = %d, want 1", len(bb.calls))
	}
	// ...but not the other provider's tasks.
	if len(gh.calls) != 1 {
		t.Errorf("github fetches = %d, want 1", len(gh.calls))
	}
	if len(result.Items) != 1 {
		t.Errorf("items = %d, want github's 1", len(result.Items))
	}
}

func TestRunDropsCancellation(t *testing.T) {
	bb := &fakeClient{
		provider: model.ProviderBitbucket,
		errs: map[string]error{
			"team/a": context.Canceled,
		},
		items: map[string][]model.Item{
			"team/b": {makeItem("b1", time.Hour)},
		},
	}

	repos := []model.Repository{
		makeRepo(model.ProviderBitbucket, "team/a"),
		makeRepo(model.ProviderBitbucket, "team/b"),
	}

	result := Run(context.Background(), factoryFor(map[model.Provider]*fakeClient{model.ProviderBitbucket: bb}), repos, nil)

	if len(result.Errors) != 0 {
		t.Errorf("cancellation recorded as error: %v", result.Errors)
	}
	if len(result.Items) != 1 {
		t.Errorf("items = %d, want 1", len(result.Items))
	}
}

func TestRunSortsByActivityDescending(t *testing.T) {
	bb := &fakeClient{
		provider: model.ProviderBitbucket,
		items: map[string][]model.Item{
			"team/a": {makeItem("old", 3 * time.Hour), makeItem("new", time.Minute)},
		},
	}

	repos := []model.Repository{makeRepo(model.ProviderBitbucket, "team/a")}
	result := Run(context.Background(), factoryFor(map[model.Provider]*fakeClient{model.ProviderBitbucket: bb}), repos, nil)

	if result.Items[0].ID != "new" || result.Items[1].ID != "old" {
		t.Errorf("items not sorted by last activity descending: %s, %s", result.Items[0].ID, result.Items[1].ID)
	}
}

func repoErr(p model.Provider, repo string, err error) error {
	return &provider.RepoError{Provider: p, Repo: repo, Err: err}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		check  func(t *testing.T, err error)
	}{
		{
			name: "no errors",
			result: Result{
				Items: []model.Item{makeItem("a", time.Hour)},
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("Resolve() = %v, want nil", err)
				}
			},
		},
		{
			name: "two distinct auth failures combine",
			result: Result{
				Errors: []error{
					repoErr(model.ProviderBitbucket, "team/a", provider.ErrUnauthorized),
					repoErr(model.ProviderGitHub, "org/x", provider.ErrUnauthorized),
				},
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMultipleAuth) {
					t.Errorf("Resolve() = %v, want ErrMultipleAuth", err)
				}
			},
		},
		{
			name: "same provider twice is not multiple auth",
			result: Result{
				Errors: []error{
					repoErr(model.ProviderBitbucket, "team/a", provider.ErrUnauthorized),
					repoErr(model.ProviderBitbucket, "team/b", provider.ErrUnauthorized),
				},
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, provider.ErrUnauthorized) || errors.Is(err, ErrMultipleAuth) {
					t.Errorf("Resolve() = %v, want single unauthorized", err)
				}
			},
		},
		{
			name: "rate limit beats recoverable",
			result: Result{
				Errors: []error{
					repoErr(model.ProviderGitLab, "g/y", &provider.APIError{StatusCode: 500}),
					repoErr(model.ProviderGitHub, "org/x", provider.ErrRateLimited),
				},
				Items: []model.Item{makeItem("a", time.Hour)},
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, provider.ErrRateLimited) {
					t.Errorf("Resolve() = %v, want rate limited", err)
				}
			},
		},
		{
			name: "zero items surfaces recoverable",
			result: Result{
				Errors: []error{
					repoErr(model.ProviderGitLab, "g/y", &provider.APIError{StatusCode: 502}),
				},
			},
			check: func(t *testing.T, err error) {
				var apiErr *provider.APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 502 {
					t.Errorf("Resolve() = %v, want APIError 502", err)
				}
			},
		},
		{
			name: "partial data suppresses recoverable",
			result: Result{
				Errors: []error{
					repoErr(model.ProviderGitLab, "g/y", &provider.APIError{StatusCode: 502}),
				},
				Items: []model.Item{makeItem("a", time.Hour)},
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("Resolve() = %v, want nil (partial data accepted)", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Resolve(tt.result))
		})
	}
}

func TestShouldReplaceSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"items present", Result{Items: []model.Item{makeItem("a", 0)}}, true},
		{"empty but clean", Result{}, true},
		{"items despite errors", Result{Items: []model.Item{makeItem("a", 0)}, Errors: []error{provider.ErrRateLimited}}, true},
		{"total failure keeps stale data", Result{Errors: []error{provider.ErrRateLimited}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldReplaceSnapshot(tt.result); got != tt.want {
				t.Errorf("ShouldReplaceSnapshot() = %v, want %v", got, tt.want)
			}
		})
	}
}
