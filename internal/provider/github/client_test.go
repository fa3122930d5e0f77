package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
)

const (
	myID    = 7
	otherID = 9
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(model.Credentials{Token: "gh-token"}, provider.NopTracker{}, 7*24*time.Hour, WithBaseURL(srv.URL))
}

func userJSON() string {
	return fmt.Sprintf(`{"id":%d,"login":"me","name":"Test User","avatar_url":"https://avatars.example/me.png"}`, myID)
}

func prJSON(number int, authorID int64, reviewerIDs []int64, draft bool, updated time.Time) string {
	reviewers := ""
	for i, id := range reviewerIDs {
		if i > 0 {
			reviewers += ","
		}
		reviewers += fmt.Sprintf(`{"id":%d,"login":"reviewer"}`, id)
	}
	return fmt.Sprintf(`{
		"number": %d,
		"title": "PR %d",
		"state": "open",
		"user": {"id": %d, "login": "author", "avatar_url": "https://avatars.example/a.png"},
		"updated_at": %q,
		"html_url": "https://github.com/owner/repo/pull/%d",
		"draft": %v,
		"requested_reviewers": [%s],
		"assignees": []
	}`, number, number, authorID, updated.UTC().Format(time.RFC3339), number, draft, reviewers)
}

func mergedIssueJSON(number int, authorID int64, assigneeIDs []int64, updated time.Time) string {
	assignees := ""
	for i, id := range assigneeIDs {
		if i > 0 {
			assignees += ","
		}
		assignees += fmt.Sprintf(`{"id":%d,"login":"assignee"}`, id)
	}
	return fmt.Sprintf(`{
		"number": %d,
		"title": "Merged PR %d",
		"state": "closed",
		"user": {"id": %d, "login": "author"},
		"updated_at": %q,
		"html_url": "https://github.com/owner/repo/pull/%d",
		"assignees": [%s],
		"pull_request": {"url": "https://api.github.com/repos/owner/repo/pulls/%d"}
	}`, number, number, authorID, updated.UTC().Format(time.RFC3339), number, assignees, number)
}

func reviewJSON(userID int64, state string, submitted time.Time) string {
	return fmt.Sprintf(`{"user":{"id":%d},"state":%q,"submitted_at":%q}`,
		userID, state, submitted.UTC().Format(time.RFC3339))
}

func TestCurrentUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gh-token" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, userJSON())
	})

	c := newTestClient(t, mux)
	user, err := c.CurrentUser(t.Context())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.ID != "7" || user.Name != "Test User" {
		t.Errorf("CurrentUser() = %+v", user)
	}
}

func TestCurrentUserFallsBackToLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":7,"login":"me"}`)
	})

	c := newTestClient(t, mux)
	user, err := c.CurrentUser(t.Context())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if user.Name != "me" {
		t.Errorf("Name = %q, want login fallback", user.Name)
	}
}

func TestPullRequestsClassification(t *testing.T) {
	now := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, userJSON())
	})
	mux.HandleFunc("/repos/owner/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "[%s,%s,%s,%s]",
			// Review requested, untouched.
			prJSON(1, otherID, []int64{myID}, false, now.Add(-time.Hour)),
			// Review requested and already approved by me.
			prJSON(2, otherID, []int64{myID}, false, now.Add(-2*time.Hour)),
			// Authored by me.
			prJSON(3, myID, nil, false, now.Add(-3*time.Hour)),
			// Someone else's draft.
			prJSON(4, otherID, []int64{myID}, true, now.Add(-4*time.Hour)),
		)
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			t.Error("search issued without a query")
		}
		fmt.Fprintf(w, `{"total_count":1,"incomplete_results":false,"items":[%s]}`,
			mergedIssueJSON(5, otherID, []int64{myID}, now.Add(-24*time.Hour)))
	})
	mux.HandleFunc("/repos/owner/repo/pulls/{number}/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("number") == "2" {
			fmt.Fprintf(w, "[%s]", reviewJSON(myID, "APPROVED", now.Add(-time.Hour)))
			return
		}
		fmt.Fprint(w, "[]")
	})

	c := newTestClient(t, mux)
	repo := model.Repository{FullName: "owner/repo", Name: "repo", Provider: model.ProviderGitHub}
	items, err := c.PullRequests(t.Context(), repo)
	if err != nil {
		t.Fatalf("PullRequests() error = %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}

	states := make(map[string]model.State, len(items))
	for _, item := range items {
		states[item.ID] = item.State
	}

	want := map[string]model.State{
		"github:owner/repo/1": model.StateNeedsReview,
		"github:owner/repo/2": model.StateWaiting,
		"github:owner/repo/3": model.StateAuthored,
		"github:owner/repo/4": model.StateTeamOther,
		"github:owner/repo/5": model.StateMergedNeedsReview,
	}
	for id, wantState := range want {
		if states[id] != wantState {
			t.Errorf("state[%s] = %s, want %s", id, states[id], wantState)
		}
	}
}

func TestReviewStateLatestPerUserWins(t *testing.T) {
	now := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, userJSON())
	})
	mux.HandleFunc("/repos/owner/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "[%s]", prJSON(1, otherID, []int64{myID}, false, now))
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":0,"incomplete_results":false,"items":[]}`)
	})
	mux.HandleFunc("/repos/owner/repo/pulls/1/reviews", func(w http.ResponseWriter, r *http.Request) {
		// An approval superseded by a later comment no longer counts.
		fmt.Fprintf(w, "[%s,%s,%s]",
			reviewJSON(otherID, "APPROVED", now.Add(-3*time.Hour)),
			reviewJSON(otherID, "COMMENTED", now.Add(-time.Hour)),
			reviewJSON(11, "CHANGES_REQUESTED", now.Add(-2*time.Hour)),
		)
	})

	c := newTestClient(t, mux)
	items, err := c.PullRequests(t.Context(), model.Repository{FullName: "owner/repo", Name: "repo"})
	if err != nil {
		t.Fatalf("PullRequests() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0]
	if item.ApprovalCount != 0 {
		t.Errorf("ApprovalCount = %d, want 0 after supersession", item.ApprovalCount)
	}
	if !item.HasChangesRequested {
		t.Error("HasChangesRequested = false, want true")
	}
}

func TestReviewLookupFailureDegrades(t *testing.T) {
	now := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, userJSON())
	})
	mux.HandleFunc("/repos/owner/repo/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "[%s]", prJSON(1, otherID, []int64{myID}, false, now))
	})
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":0,"incomplete_results":false,"items":[]}`)
	})
	mux.HandleFunc("/repos/owner/repo/pulls/1/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := newTestClient(t, mux)
	items, err := c.PullRequests(t.Context(), model.Repository{FullName: "owner/repo", Name: "repo"})
	if err != nil {
		t.Fatalf("PullRequests() error = %v, want degraded success", err)
	}
	if len(items) != 1 || items[0].State != model.StateNeedsReview {
		t.Errorf("items = %+v, want needs-review with empty review summary", items)
	}
}

func TestRateLimitStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"401 unauthorized", http.StatusUnauthorized, provider.ErrUnauthorized},
		{"403 maps to rate limit", http.StatusForbidden, provider.ErrRateLimited},
		{"429 rate limit", http.StatusTooManyRequests, provider.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			})
			c := newTestClient(t, mux)
			_, err := c.CurrentUser(t.Context())
			if !errors.Is(err, tt.want) {
				t.Errorf("CurrentUser() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRepositoriesClientSideFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sort") != "updated" || q.Get("type") != "all" {
			t.Errorf("unexpected listing params: %v", q)
		}
		fmt.Fprint(w, `[
			{"id":1,"name":"api-server","full_name":"owner/api-server","owner":{"login":"owner"},"html_url":"https://github.com/owner/api-server"},
			{"id":2,"name":"frontend","full_name":"owner/frontend","owner":{"login":"owner"}}
		]`)
	})

	c := newTestClient(t, mux)
	repos, err := c.Repositories(t.Context(), "API")
	if err != nil {
		t.Fatalf("Repositories() error = %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("repos = %d, want 1 after filter", len(repos))
	}
	r := repos[0]
	if r.ID != "1" || r.Workspace != "owner" || r.Slug != "api-server" || r.Provider != model.ProviderGitHub {
		t.Errorf("repo = %+v", r)
	}
}
