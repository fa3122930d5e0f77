// Package gitlab implements the provider contract against the GitLab v4
// REST API.
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spiffcs/reviewdeck/internal/classify"
	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
)

const (
	defaultBaseURL = "https://gitlab.com/api/v4"
	perPage        = 50

	// developerAccess filters project listings to repositories the user
	// can actually review in.
	developerAccess = 30
)

// Client talks to GitLab. Authentication is a personal access token in
// the PRIVATE-TOKEN header.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      model.Credentials
	lookback   time.Duration
	now        func() time.Time

	mu     sync.Mutex
	userID int
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate API root, e.g. a
// self-hosted instance.
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

// New returns a GitLab client. Every outbound call is reported to the
// tracker.
func New(creds model.Credentials, tracker provider.Tracker, lookback time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: provider.NewHTTPClient(model.ProviderGitLab, tracker),
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
	return model.ProviderGitLab
}

// CurrentUser implements provider.Client. A token that authenticates but
// resolves to no username is treated as unauthorized.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var u apiUser
	if err := c.get(ctx, "/user", nil, &u); err != nil {
		return model.User{}, err
	}
	if u.Username == "" {
		return model.User{}, provider.ErrUnauthorized
	}

	c.mu.Lock()
	c.userID = u.ID
	c.mu.Unlock()

	return model.User{
		ID:        strconv.Itoa(u.ID),
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}, nil
}

// Repositories implements provider.Client. The search parameter filters
// server-side; results cover the 100 most recently active projects the
// user has at least developer access to.
func (c *Client) Repositories(ctx context.Context, query string) ([]model.Repository, error) {
	params := url.Values{}
	params.Set("membership", "true")
	params.Set("simple", "true")
	params.Set("min_access_level", strconv.Itoa(developerAccess))
	params.Set("per_page", "100")
	params.Set("order_by", "last_activity_at")
	if query != "" {
		params.Set("search", query)
	}

	var projects []apiProject
	if err := c.get(ctx, "/projects", params, &projects); err != nil {
		return nil, err
	}

	repos := make([]model.Repository, 0, len(projects))
	for _, p := range projects {
		namespace, slug, _ := splitPath(p.PathWithNamespace)
		repos = append(repos, model.Repository{
			ID:        strconv.Itoa(p.ID),
			Workspace: namespace,
			Slug:      slug,
			Name:      p.Name,
			FullName:  p.PathWithNamespace,
			Provider:  model.ProviderGitLab,
			URL:       p.WebURL,
		})
	}
	return repos, nil
}

// PullRequests implements provider.Client. Open and recently-merged merge
// requests are fetched, then approval metadata is resolved per item. The
// expensive reviewers endpoint is only consulted for open items where the
// cheap approval data cannot tell whether the user already requested
// changes.
func (c *Client) PullRequests(ctx context.Context, repo model.Repository) ([]model.Item, error) {
	projectID, err := strconv.Atoi(repo.ID)
	if err != nil {
		log.Warn("skipping repository with non-numeric project id", "provider", model.ProviderGitLab, "repo", repo.FullName)
		return nil, nil
	}

	myID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	open, err := c.fetchMergeRequests(ctx, projectID, url.Values{"state": {"opened"}, "scope": {"all"}})
	if err != nil {
		return nil, err
	}
	mergedParams := url.Values{"state": {"merged"}, "scope": {"all"}}
	mergedParams.Set("updated_after", c.now().Add(-c.lookback).UTC().Format(time.RFC3339))
	merged, err := c.fetchMergeRequests(ctx, projectID, mergedParams)
	if err != nil {
		return nil, err
	}

	mrs := append(open, merged...)
	items := make([]model.Item, 0, len(mrs))
	for _, mr := range mrs {
		item, err := c.toItem(ctx, projectID, mr, repo, myID)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) currentUserID(ctx context.Context) (int, error) {
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

// fetchMergeRequests follows x-next-page headers until exhausted.
func (c *Client) fetchMergeRequests(ctx context.Context, projectID int, params url.Values) ([]apiMergeRequest, error) {
	params.Set("per_page", strconv.Itoa(perPage))
	endpoint := fmt.Sprintf("/projects/%d/merge_requests", projectID)

	var mrs []apiMergeRequest
	page := 1
	for {
		params.Set("page", strconv.Itoa(page))
		var batch []apiMergeRequest
		next, err := c.getPaged(ctx, endpoint, params, &batch)
		if err != nil {
			return nil, err
		}
		mrs = append(mrs, batch...)
		if next == 0 {
			return mrs, nil
		}
		page = next
	}
}

func (c *Client) toItem(ctx context.Context, projectID int, mr apiMergeRequest, repo model.Repository, myID int) (model.Item, error) {
	approval, err := c.approvalState(ctx, projectID, mr.IID)
	if err != nil {
		if provider.IsFatal(err) || provider.IsCanceled(err) {
			return model.Item{}, err
		}
		log.Debug("approval lookup failed", "repo", repo.FullName, "iid", mr.IID, "error", err)
		approval = nil
	}

	approvedByMe := false
	if approval != nil {
		for _, a := range approval.ApprovedBy {
			if a.User.ID == myID {
				approvedByMe = true
				break
			}
		}
	}

	isReviewer := containsUser(mr.Reviewers, myID)
	isAssignee := containsUser(mr.Assignees, myID)
	isAuthor := mr.Author.ID == myID
	changesRequested := strings.EqualFold(mr.DetailedMergeStatus, "requested_changes")

	// The reviewers endpoint is an extra call per item; only consult it
	// when the answer can still change the classification.
	requestedChangesByMe := false
	if mr.State == "opened" && (isReviewer || isAssignee) && !isAuthor && !approvedByMe && changesRequested {
		state, err := c.myReviewerState(ctx, projectID, mr.IID, myID)
		if err != nil {
			if provider.IsFatal(err) || provider.IsCanceled(err) {
				return model.Item{}, err
			}
			log.Debug("reviewer lookup failed", "repo", repo.FullName, "iid", mr.IID, "error", err)
		}
		requestedChangesByMe = strings.EqualFold(state, "requested_changes")
	}

	merged := mr.State == "merged"
	updated, err := time.Parse(time.RFC3339, mr.UpdatedAt)
	if err != nil {
		updated = c.now()
	}

	state := classify.State(classify.Signals{
		// A merged draft classifies by its merged signals, not its title.
		IsDraft:              mr.isDraft() && !merged,
		IsMerged:             merged,
		IsAuthoredByMe:       isAuthor,
		IsAssignedToMe:       isReviewer || isAssignee,
		HasActedByMe:         approvedByMe || requestedChangesByMe,
		MergedWithinLookback: merged && updated.After(c.now().Add(-c.lookback)),
	})

	approvals := 0
	if approval != nil {
		approvals = len(approval.ApprovedBy)
	}

	return model.Item{
		ID:                  fmt.Sprintf("gitlab:%s/%d", repo.FullName, mr.IID),
		Title:               mr.Title,
		Repository:          repo.Name,
		Author:              mr.Author.Name,
		AvatarURL:           mr.Author.AvatarURL,
		LastActivity:        updated,
		State:               state,
		HasChangesRequested: changesRequested,
		ApprovalCount:       approvals,
		ReviewerCount:       len(mr.Reviewers),
		URL:                 mr.WebURL,
		IsDraft:             mr.isDraft(),
	}, nil
}

// approvalState returns nil without error when the project does not
// expose the approvals endpoint.
func (c *Client) approvalState(ctx context.Context, projectID, iid int) (*apiApprovalState, error) {
	endpoint := fmt.Sprintf("/projects/%d/merge_requests/%d/approvals", projectID, iid)
	var state apiApprovalState
	if err := c.get(ctx, endpoint, nil, &state); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (c *Client) myReviewerState(ctx context.Context, projectID, iid, myID int) (string, error) {
	endpoint := fmt.Sprintf("/projects/%d/merge_requests/%d/reviewers", projectID, iid)
	var statuses []apiReviewerStatus
	if err := c.get(ctx, endpoint, nil, &statuses); err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	for _, s := range statuses {
		if s.User.ID == myID {
			return s.State, nil
		}
	}
	return "", nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	_, err := c.getPaged(ctx, endpoint, params, out)
	return err
}

// getPaged issues one authenticated GET, decodes the body into out, and
// returns the next page number from the x-next-page header (0 when done).
func (c *Client) getPaged(ctx context.Context, endpoint string, params url.Values, out any) (int, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", provider.ErrInvalidURL, endpoint)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds.Token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.creds.Token)
	}

	log.Trace("gitlab request", "url", req.URL.Redacted())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &provider.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, provider.StatusError(model.ProviderGitLab, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}

	next, _ := strconv.Atoi(resp.Header.Get("x-next-page"))
	return next, nil
}

func isNotFound(err error) bool {
	var apiErr *provider.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func containsUser(users []apiUser, id int) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func splitPath(pathWithNamespace string) (namespace, slug string, ok bool) {
	idx := strings.LastIndex(pathWithNamespace, "/")
	if idx <= 0 || idx == len(pathWithNamespace)-1 {
		return "", pathWithNamespace, false
	}
	return pathWithNamespace[:idx], pathWithNamespace[idx+1:], true
}
