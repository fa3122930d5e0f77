// Package bitbucket implements the provider contract against the
// Bitbucket Cloud 2.0 REST API.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spiffcs/reviewdeck/internal/classify"
	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL = "https://api.bitbucket.org/2.0"
	pageLen        = 50

	// pagingDelay spaces out repository-list pages; Bitbucket throttles
	// rapid sequential listing harder than the other endpoints.
	pagingDelay = 200 * time.Millisecond
)

// pullRequestFields trims pull request pages to the fields the dashboard
// uses, which cuts Bitbucket's payload size by an order of magnitude.
var pullRequestFields = strings.Join([]string{
	"values.id",
	"values.title",
	"values.state",
	"values.author",
	"values.destination",
	"values.comment_count",
	"values.links",
	"values.updated_on",
	"values.reviewers",
	"values.participants",
	"values.draft",
	"next",
}, ",")

// Client talks to Bitbucket Cloud. App passwords authenticate with HTTP
// Basic (username required); workspace access tokens use Bearer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      model.Credentials
	lookback   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	userUUID string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNow substitutes the clock.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Bitbucket client. Every outbound call is reported to the
// tracker. The lookback bounds the recently-merged query.
func New(creds model.Credentials, tracker provider.Tracker, lookback time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: provider.NewHTTPClient(model.ProviderBitbucket, tracker),
		creds:      creds,
		lookback:   lookback,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider implements provider.Client.
func (c *Client) Provider() model.Provider {
	return model.ProviderBitbucket
}

// CurrentUser implements provider.Client. The account uuid is cached for
// classification on subsequent pull request fetches.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var u apiUser
	if err := c.get(ctx, "/user", &u); err != nil {
		return model.User{}, err
	}

	c.mu.Lock()
	c.userUUID = normalizeUUID(u.UUID)
	c.mu.Unlock()

	return model.User{
		ID:        u.UUID,
		Name:      u.DisplayName,
		AvatarURL: u.Links.avatarHref(),
	}, nil
}

// Repositories implements provider.Client. Listing is paged; pages after
// the first are spaced by pagingDelay.
func (c *Client) Repositories(ctx context.Context, query string) ([]model.Repository, error) {
	params := url.Values{}
	params.Set("role", "member")
	params.Set("pagelen", fmt.Sprint(pageLen))
	if query != "" {
		params.Set("q", fmt.Sprintf("name ~ %q", query))
	}

	endpoint := "/repositories?" + params.Encode()
	var repos []model.Repository
	for endpoint != "" {
		var page pagedResponse[apiRepository]
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Values {
			repos = append(repos, toRepository(r))
		}
		endpoint = page.Next
		if endpoint != "" {
			select {
			case <-time.After(pagingDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return repos, nil
}

// PullRequests implements provider.Client. Open and recently-merged items
// are fetched concurrently and classified against the cached account uuid.
func (c *Client) PullRequests(ctx context.Context, repo model.Repository) ([]model.Item, error) {
	workspace, slug, ok := splitFullName(repo.FullName)
	if !ok {
		log.Warn("skipping repository with malformed name", "provider", model.ProviderBitbucket, "repo", repo.FullName)
		return nil, nil
	}

	myUUID, err := c.currentUUID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		open   []apiPullRequest
		merged []apiPullRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		open, err = c.fetchPullRequestPages(gctx, openEndpoint(workspace, slug))
		return err
	})
	g.Go(func() error {
		var err error
		merged, err = c.fetchPullRequestPages(gctx, c.mergedEndpoint(workspace, slug))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(open)+len(merged))
	for _, pr := range append(open, merged...) {
		items = append(items, c.toItem(pr, myUUID))
	}
	return items, nil
}

func (c *Client) currentUUID(ctx context.Context) (string, error) {
	c.mu.Lock()
	uuid := c.userUUID
	c.mu.Unlock()
	if uuid != "" {
		return uuid, nil
	}
	if _, err := c.CurrentUser(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userUUID, nil
}

func openEndpoint(workspace, slug string) string {
	params := url.Values{}
	params.Set("state", "OPEN")
	params.Set("pagelen", fmt.Sprint(pageLen))
	params.Set("fields", pullRequestFields)
	return fmt.Sprintf("/repositories/%s/%s/pullrequests?%s", workspace, slug, params.Encode())
}

func (c *Client) mergedEndpoint(workspace, slug string) string {
	since := c.now().Add(-c.lookback).UTC().Format(time.RFC3339)
	params := url.Values{}
	params.Set("q", fmt.Sprintf(`state="MERGED" AND updated_on > "%s"`, since))
	params.Set("pagelen", fmt.Sprint(pageLen))
	params.Set("fields", pullRequestFields)
	return fmt.Sprintf("/repositories/%s/%s/pullrequests?%s", workspace, slug, params.Encode())
}

// fetchPullRequestPages follows Bitbucket's opaque next links until
// exhausted. Any page failing aborts the whole fetch with no partial
// results.
func (c *Client) fetchPullRequestPages(ctx context.Context, endpoint string) ([]apiPullRequest, error) {
	var prs []apiPullRequest
	for endpoint != "" {
		var page pagedResponse[apiPullRequest]
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		prs = append(prs, page.Values...)
		endpoint = page.Next
	}
	return prs, nil
}

func (c *Client) toItem(pr apiPullRequest, myUUID string) model.Item {
	updated, err := time.Parse(time.RFC3339, pr.UpdatedOn)
	if err != nil {
		updated = c.now()
	}

	approvals := 0
	changesRequested := false
	acted := false
	for _, p := range pr.Participants {
		if p.Approved {
			approvals++
		}
		if p.State == participantChangesRequested {
			changesRequested = true
		}
		if normalizeUUID(p.User.UUID) == myUUID && (p.Approved || p.State == participantChangesRequested) {
			acted = true
		}
	}

	assigned := false
	for _, r := range pr.Reviewers {
		if normalizeUUID(r.UUID) == myUUID {
			assigned = true
			break
		}
	}

	merged := pr.State == "MERGED"
	state := classify.State(classify.Signals{
		IsDraft:              pr.Draft,
		IsMerged:             merged,
		IsAuthoredByMe:       normalizeUUID(pr.Author.UUID) == myUUID,
		IsAssignedToMe:       assigned,
		HasActedByMe:         acted,
		MergedWithinLookback: merged && updated.After(c.now().Add(-c.lookback)),
	})

	return model.Item{
		ID:                  fmt.Sprintf("bitbucket:%s/%d", pr.Destination.Repository.FullName, pr.ID),
		Title:               pr.Title,
		Repository:          pr.Destination.Repository.Name,
		Author:              pr.Author.DisplayName,
		AvatarURL:           pr.Author.Links.avatarHref(),
		LastActivity:        updated,
		State:               state,
		HasChangesRequested: changesRequested,
		ApprovalCount:       approvals,
		ReviewerCount:       len(pr.Reviewers),
		URL:                 pr.Links.htmlHref(),
		IsDraft:             pr.Draft,
	}
}

// get issues one authenticated GET and decodes the body into out. Opaque
// next links arrive absolute; everything else is relative to the API root.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	u := endpoint
	if !strings.HasPrefix(u, "http") {
		u = c.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", provider.ErrInvalidURL, endpoint)
	}
	req.Header.Set("Accept", "application/json")
	c.authenticate(req)

	log.Trace("bitbucket request", "url", req.URL.Redacted())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &provider.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return provider.StatusError(model.ProviderBitbucket, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) authenticate(req *http.Request) {
	username := strings.TrimSpace(c.creds.Username)
	token := strings.TrimSpace(c.creds.Token)
	switch {
	case username != "" && token != "":
		req.SetBasicAuth(username, token)
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// normalizeUUID strips braces and lowercases so uuids compare regardless
// of which representation an endpoint returned.
func normalizeUUID(uuid string) string {
	uuid = strings.ReplaceAll(uuid, "{", "")
	uuid = strings.ReplaceAll(uuid, "}", "")
	return strings.ToLower(uuid)
}

func splitFullName(fullName string) (workspace, slug string, ok bool) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func toRepository(r apiRepository) model.Repository {
	workspace, slug, _ := splitFullName(r.FullName)
	return model.Repository{
		ID:        r.UUID,
		Workspace: workspace,
		Slug:      slug,
		Name:      r.Name,
		FullName:  r.FullName,
		Provider:  model.ProviderBitbucket,
		URL:       r.Links.htmlHref(),
	}
}
