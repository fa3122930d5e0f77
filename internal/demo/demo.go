// Package demo provides a deterministic dataset for running without
// provider credentials.
package demo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
)

type seed struct {
	number              int
	title               string
	author              string
	state               model.State
	minutesAgo          int
	hasChangesRequested bool
	approvalCount       int
	reviewerCount       int
	isDraft             bool
}

// Repositories returns the demo repository catalogue.
func Repositories() []model.Repository {
	return []model.Repository{
		repo("bb-velocity-api", "velocity-api", "demo-team/velocity-api", model.ProviderBitbucket),
		repo("bb-control-center", "control-center", "demo-team/control-center", model.ProviderBitbucket),
		repo("gh-orbit-ios", "orbit-ios", "acme/orbit-ios", model.ProviderGitHub),
		repo("gh-pulse-web", "pulse-web", "acme/pulse-web", model.ProviderGitHub),
		repo("gl-forge-auth", "forge-auth", "platform/forge-auth", model.ProviderGitLab),
		repo("gl-docs-portal", "docs-portal", "platform/docs-portal", model.ProviderGitLab),
	}
}

func repo(id, name, fullName string, p model.Provider) model.Repository {
	workspace, slug, _ := strings.Cut(fullName, "/")
	return model.Repository{
		ID:        id,
		Workspace: workspace,
		Slug:      slug,
		Name:      name,
		FullName:  fullName,
		Provider:  p,
		URL:       "https://example.com/" + fullName,
	}
}

// SearchRepositories filters the demo catalogue by provider and
// substring, mirroring the live repository search.
func SearchRepositories(query string, p model.Provider) []model.Repository {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []model.Repository
	for _, r := range Repositories() {
		if r.Provider != p {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(r.Name), query) &&
			!strings.Contains(strings.ToLower(r.FullName), query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Items returns the demo worklist for the monitored repositories, most
// recent activity first. With no monitored repositories (or none that
// match the catalogue) the whole dataset is returned.
func Items(monitored []model.Repository, now time.Time) []model.Item {
	byKey := itemsByRepository(now)

	var items []model.Item
	for _, r := range monitored {
		items = append(items, byKey[r.Key()]...)
	}
	if len(items) == 0 {
		for _, group := range byKey {
			items = append(items, group...)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].LastActivity.Equal(items[j].LastActivity) {
			return items[i].ID < items[j].ID
		}
		return items[i].LastActivity.After(items[j].LastActivity)
	})
	return items
}

func itemsByRepository(now time.Time) map[string][]model.Item {
	repos := Repositories()
	seeds := map[string][]seed{
		"demo-team/velocity-api": {
			{241, "feat(review-routing): prioritize urgent queues first", "Maya Brooks", model.StateNeedsReview, 18, false, 0, 2, false},
			{236, "refactor(cache): isolate stale key cleanup", "Ethan Cole", model.StateTeamOther, 210, false, 0, 1, false},
		},
		"demo-team/control-center": {
			{89, "fix(notifications): avoid duplicate desktop alerts", "Iris Novak", model.StateWaiting, 90, false, 2, 2, false},
			{84, "chore(ui): improve compact card spacing", "Alex Kim", model.StateAuthored, 1560, false, 0, 2, false},
		},
		"acme/orbit-ios": {
			{517, "feat(sync): support offline draft restore", "Noah Patel", model.StateNeedsReview, 42, false, 0, 3, true},
			{509, "fix(search): debounce heavy repository filtering", "Lena Scott", model.StateMergedNeedsReview, 1320, false, 2, 3, false},
		},
		"acme/pulse-web": {
			{133, "feat(metrics): add review cycle duration chart", "Owen Reed", model.StateTeamOther, 360, false, 1, 2, false},
			{129, "fix(onboarding): handle empty workspace state", "Grace Lin", model.StateWaiting, 40, true, 0, 2, false},
		},
		"platform/forge-auth": {
			{77, "feat(security): rotate token fingerprint secrets", "Ravi Shah", model.StateAuthored, 720, false, 1, 2, false},
			{72, "fix(auth): avoid stale refresh token usage", "Mila Park", model.StateNeedsReview, 24, false, 1, 3, false},
		},
		"platform/docs-portal": {
			{21, "docs(playbook): add release rollback checklist", "Dylan Ross", model.StateTeamOther, 540, false, 0, 1, false},
			{19, "docs(install): clarify Homebrew tap bootstrap flow", "Sara Bell", model.StateMergedNeedsReview, 2040, false, 1, 2, false},
		},
	}

	out := make(map[string][]model.Item, len(repos))
	for _, r := range repos {
		for _, s := range seeds[r.FullName] {
			out[r.Key()] = append(out[r.Key()], makeItem(r, s, now))
		}
	}
	return out
}

func makeItem(r model.Repository, s seed, now time.Time) model.Item {
	return model.Item{
		ID:                  fmt.Sprintf("demo:%s:%s:%d", r.Provider, r.ID, s.number),
		Title:               s.title,
		Repository:          r.Name,
		Author:              s.author,
		LastActivity:        now.Add(-time.Duration(s.minutesAgo) * time.Minute),
		State:               s.state,
		HasChangesRequested: s.hasChangesRequested,
		ApprovalCount:       s.approvalCount,
		ReviewerCount:       s.reviewerCount,
		URL:                 fmt.Sprintf("https://example.com/%s/pull/%d", r.FullName, s.number),
		IsDraft:             s.isDraft,
	}
}
