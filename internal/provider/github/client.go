// Package github implements the provider contract on top of the
// go-github API client.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spiffcs/reviewdeck/internal/classify"
	"github.com/spiffcs/reviewdeck/internal/fetch"
	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const (
	perPage = 100

	// defaultReviewConcurrency bounds the per-item review-state lookups a
	// single repository fetch keeps in flight.
	defaultReviewConcurrency = 6
)

// Client talks to the GitHub API. The token lives only inside the oauth2
// transport and is never logged or serialized.
type Client struct {
	gh          *gh.Client
	lookback    time.Duration
	concurrency int
	now         func() time.Time

	mu     sync.Mutex
	userID int64
	login  string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		parsed, err := url.Parse(u)
		if err != nil {
			return
		}
		c.gh.BaseURL = parsed
	}
}

// WithConcurrency bounds the review-state fan-out.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithNow substitutes the clock.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a GitHub client authenticated with a personal access token.
// The tracker observes every outbound call, including the ones go-github
// issues for pagination.
func New(creds model.Credentials, tracker provider.Tracker, lookback time.Duration, opts ...Option) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: provider.WrapTransport(&oauth2.Transport{Source: ts}, model.ProviderGitHub, tracker),
	}

	c := &Client{
		gh:          gh.NewClient(httpClient),
		lookback:    lookback,
		concurrency: defaultReviewConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider implements provider.Client.
func (c *Client) Provider() model.Provider {
	return model.ProviderGitHub
}

// CurrentUser implements provider.Client. The numeric account id is
// cached for classification on subsequent pull request fetches.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return model.User{}, mapError(err)
	}

	c.mu.Lock()
	c.userID = user.GetID()
	c.login = user.GetLogin()
	c.mu.Unlock()

	name := user.GetName()
	if name == "" {
		name = user.GetLogin()
	}
	return model.User{
		ID:        fmt.Sprint(user.GetID()),
		Name:      name,
		AvatarURL: user.GetAvatarURL(),
	}, nil
}

// Repositories implements provider.Client. GitHub has no server-side
// substring filter on this listing, so the query matches client-side over
// the 100 most recently updated accessible repositories.
func (c *Client) Repositories(ctx context.Context, query string) ([]model.Repository, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Type:        "all",
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	ghRepos, _, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, mapError(err)
	}

	query = strings.ToLower(query)
	var repos []model.Repository
	for _, r := range ghRepos {
		if query != "" &&
			!strings.Contains(strings.ToLower(r.GetName()), query) &&
			!strings.Contains(strings.ToLower(r.GetFullName()), query) {
			continue
		}
		repos = append(repos, model.Repository{
			ID:        fmt.Sprint(r.GetID()),
			Workspace: r.GetOwner().GetLogin(),
			Slug:      r.GetName(),
			Name:      r.GetName(),
			FullName:  r.GetFullName(),
			Provider:  model.ProviderGitHub,
			URL:       r.GetHTMLURL(),
		})
	}
	return repos, nil
}

// pullRequest is the provider-neutral view shared by the open listing and
// the merged search. Search results carry assignees but no requested
// reviewers or draft flag; those default to empty there.
type pullRequest struct {
	number        int
	title         string
	author        string
	authorID      int64
	avatarURL     string
	htmlURL       string
	updatedAt     time.Time
	draft         bool
	merged        bool
	reviewerIDs   []int64
	assigneeIDs   []int64
	reviewerCount int
}

// PullRequests implements provider.Client. Open items and recently-merged
// items are fetched concurrently, then review states are resolved with a
// bounded fan-out before classification.
func (c *Client) PullRequests(ctx context.Context, repo model.Repository) ([]model.Item, error) {
	owner, name, ok := splitFullName(repo.FullName)
	if !ok {
		return nil, fmt.Errorf("%w: repository %q", provider.ErrInvalidURL, repo.FullName)
	}

	myID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		open   []pullRequest
		merged []pullRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		open, err = c.fetchOpen(gctx, owner, name)
		return err
	})
	g.Go(func() error {
		var err error
		merged, err = c.fetchMerged(gctx, owner, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prs := append(open, merged...)
	states, err := c.reviewStates(ctx, owner, name, prs, myID)
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(prs))
	for _, pr := range prs {
		items = append(items, c.toItem(pr, repo, states[pr.number], myID))
	}
	return items, nil
}

func (c *Client) currentUserID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	id := c.userID
	c.mu.Unlock()
	if id != 0 {
		return id, nil
	}
	if _, err := c.CurrentUser(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, nil
}

func (c *Client) fetchOpen(ctx context.Context, owner, name string) ([]pullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var prs []pullRequest
	for {
		page, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, mapError(err)
		}
		for _, pr := range page {
			prs = append(prs, fromPullRequest(pr))
		}
		if resp.NextPage == 0 {
			return prs, nil
		}
		opts.Page = resp.NextPage
	}
}

// fetchMerged uses the search API rather than listing closed pull
// requests; the updated:> qualifier keeps the result set inside the merge
// lookback window server-side.
func (c *Client) fetchMerged(ctx context.Context, owner, name string) ([]pullRequest, error) {
	since := c.now().Add(-c.lookback).UTC().Format("2006-01-02T15:04:05Z")
	query := fmt.Sprintf("repo:%s/%s is:pr is:merged updated:>%s", owner, name, since)

	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	var prs []pullRequest
	for {
		result, resp, err := c.gh.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, mapError(err)
		}
		for _, issue := range result.Issues {
			prs = append(prs, fromSearchIssue(issue))
		}
		if resp.NextPage == 0 {
			return prs, nil
		}
		opts.Page = resp.NextPage
	}
}

func fromPullRequest(pr *gh.PullRequest) pullRequest {
	out := pullRequest{
		number:        pr.GetNumber(),
		title:         pr.GetTitle(),
		author:        pr.GetUser().GetLogin(),
		authorID:      pr.GetUser().GetID(),
		avatarURL:     pr.GetUser().GetAvatarURL(),
		htmlURL:       pr.GetHTMLURL(),
		updatedAt:     pr.GetUpdatedAt().Time,
		draft:         pr.GetDraft(),
		merged:        pr.GetState() == "closed" || pr.MergedAt != nil,
		reviewerCount: len(pr.RequestedReviewers),
	}
	for _, r := range pr.RequestedReviewers {
		out.reviewerIDs = append(out.reviewerIDs, r.GetID())
	}
	for _, a := range pr.Assignees {
		out.assigneeIDs = append(out.assigneeIDs, a.GetID())
	}
	return out
}

func fromSearchIssue(issue *gh.Issue) pullRequest {
	out := pullRequest{
		number:    issue.GetNumber(),
		title:     issue.GetTitle(),
		author:    issue.GetUser().GetLogin(),
		authorID:  issue.GetUser().GetID(),
		avatarURL: issue.GetUser().GetAvatarURL(),
		htmlURL:   issue.GetHTMLURL(),
		updatedAt: issue.GetUpdatedAt().Time,
		merged:    true,
	}
	for _, a := range issue.Assignees {
		out.assigneeIDs = append(out.assigneeIDs, a.GetID())
	}
	return out
}

// reviewState summarizes one pull request's reviews, keeping only each
// reviewer's latest submission.
type reviewState struct {
	actedByMe           bool
	hasChangesRequested bool
	approvalCount       int
}

// reviewStates resolves review summaries for all pull requests with a
// sliding window of at most c.concurrency lookups in flight. Per-item
// failures degrade to an empty summary; auth and rate-limit errors abort
// the whole fetch.
func (c *Client) reviewStates(ctx context.Context, owner, name string, prs []pullRequest, myID int64) (map[int]reviewState, error) {
	states := make(map[int]reviewState, len(prs))
	var mu sync.Mutex

	err := fetch.Bounded(ctx, len(prs), c.concurrency, func(ctx context.Context, i int) error {
		rs, err := c.reviewStateFor(ctx, owner, name, prs[i].number, myID)
		if err != nil {
			if provider.IsFatal(err) || provider.IsCanceled(err) {
				return err
			}
			log.Debug("review lookup failed", "repo", owner+"/"+name, "number", prs[i].number, "error", err)
			rs = reviewState{}
		}
		mu.Lock()
		states[prs[i].number] = rs
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

func (c *Client) reviewStateFor(ctx context.Context, owner, name string, number int, myID int64) (reviewState, error) {
	reviews, _, err := c.gh.PullRequests.ListReviews(ctx, owner, name, number, &gh.ListOptions{PerPage: perPage})
	if err != nil {
		return reviewState{}, mapError(err)
	}

	// Latest submission per reviewer wins, so a re-review replaces an
	// earlier approval.
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].GetSubmittedAt().Time.Before(reviews[j].GetSubmittedAt().Time)
	})
	latest := make(map[int64]string, len(reviews))
	for _, review := range reviews {
		latest[review.GetUser().GetID()] = review.GetState()
	}

	var rs reviewState
	for id, state := range latest {
		switch state {
		case "APPROVED":
			rs.approvalCount++
		case "CHANGES_REQUESTED":
			rs.hasChangesRequested = true
		}
		if id == myID && (state == "APPROVED" || state == "CHANGES_REQUESTED") {
			rs.actedByMe = true
		}
	}
	return rs, nil
}

func (c *Client) toItem(pr pullRequest, repo model.Repository, rs reviewState, myID int64) model.Item {
	assigned := containsID(pr.reviewerIDs, myID) || containsID(pr.assigneeIDs, myID)

	state := classify.State(classify.Signals{
		IsDraft:              pr.draft,
		IsMerged:             pr.merged,
		IsAuthoredByMe:       pr.authorID == myID,
		IsAssignedToMe:       assigned,
		HasActedByMe:         rs.actedByMe,
		MergedWithinLookback: pr.merged && pr.updatedAt.After(c.now().Add(-c.lookback)),
	})

	return model.Item{
		ID:                  fmt.Sprintf("github:%s/%d", repo.FullName, pr.number),
		Title:               pr.title,
		Repository:          repo.Name,
		Author:              pr.author,
		AvatarURL:           pr.avatarURL,
		LastActivity:        pr.updatedAt,
		State:               state,
		HasChangesRequested: rs.hasChangesRequested,
		ApprovalCount:       rs.approvalCount,
		ReviewerCount:       pr.reviewerCount,
		URL:                 pr.htmlURL,
		IsDraft:             pr.draft,
	}
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// mapError translates go-github errors into the shared taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if provider.IsCanceled(err) {
		return err
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var respErr *gh.ErrorResponse
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return provider.ErrRateLimited
	case errors.As(err, &respErr):
		if respErr.Response != nil {
			return provider.StatusError(model.ProviderGitHub, respErr.Response.StatusCode)
		}
		return fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &provider.NetworkError{Err: urlErr.Err}
	}
	return &provider.NetworkError{Err: err}
}
