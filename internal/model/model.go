// Package model contains domain types for the reviewdeck application.
// These types are independent of any provider API library.
package model

import "time"

// Provider identifies a code-hosting provider.
type Provider string

const (
	ProviderBitbucket Provider = "bitbucket"
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
)

// AllProviders lists every supported provider.
// This is the single source of truth for valid provider values.
var AllProviders = []Provider{ProviderBitbucket, ProviderGitHub, ProviderGitLab}

// DisplayName returns the human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderBitbucket:
		return "Bitbucket"
	case ProviderGitHub:
		return "GitHub"
	case ProviderGitLab:
		return "GitLab"
	}
	return string(p)
}

// Valid reports whether p is a known provider tag.
func (p Provider) Valid() bool {
	for _, known := range AllProviders {
		if p == known {
			return true
		}
	}
	return false
}

// State is the canonical review-action bucket assigned to an item.
// Exactly one state holds per item.
type State string

const (
	StateNeedsReview       State = "needs_review"
	StateWaiting           State = "waiting"
	StateAuthored          State = "authored"
	StateTeamOther         State = "team"
	StateMergedNeedsReview State = "merged_needs_review"

	// StateUnknown is a decode-failure sentinel. It is filtered out
	// before display and never rendered.
	StateUnknown State = "unknown"
)

// AllStates lists the displayable classification states in display order.
var AllStates = []State{
	StateNeedsReview,
	StateMergedNeedsReview,
	StateWaiting,
	StateAuthored,
	StateTeamOther,
}

// DisplayName returns the section title for a state.
func (s State) DisplayName() string {
	switch s {
	case StateNeedsReview:
		return "Needs Review"
	case StateWaiting:
		return "Waiting"
	case StateAuthored:
		return "My PRs"
	case StateTeamOther:
		return "Team"
	case StateMergedNeedsReview:
		return "Merged"
	}
	return "Unknown"
}

// Item is a pull/merge request normalized from any provider.
// Items are created fresh on every fetch cycle; a refresh produces a new
// generation that replaces the previous snapshot atomically.
type Item struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Repository          string    `json:"repository"`
	Author              string    `json:"author"`
	AvatarURL           string    `json:"avatarUrl,omitempty"`
	LastActivity        time.Time `json:"lastActivity"`
	State               State     `json:"state"`
	HasChangesRequested bool      `json:"hasChangesRequested"`
	ApprovalCount       int       `json:"approvalCount"`
	ReviewerCount       int       `json:"reviewerCount"`
	URL                 string    `json:"url,omitempty"`
	IsDraft             bool      `json:"isDraft"`

	// IsSnoozed is derived from the snooze store during filtering and is
	// never persisted with the item.
	IsSnoozed bool `json:"isSnoozed"`
}

// Repository is a repository monitored for pull requests.
// Uniqueness is by (ID, Provider); numeric ids collide across providers.
type Repository struct {
	ID        string   `json:"id"`
	Workspace string   `json:"workspace"`
	Slug      string   `json:"slug"`
	Name      string   `json:"name"`
	FullName  string   `json:"fullName"`
	Provider  Provider `json:"provider"`
	URL       string   `json:"url,omitempty"`
}

// Key returns the composite monitoring key for the repository.
func (r Repository) Key() string {
	return string(r.Provider) + ":" + r.ID
}

// User is the authenticated provider account.
type User struct {
	ID        string
	Name      string
	AvatarURL string
}

// Credentials is an immutable per-cycle snapshot of a provider's
// credentials. Username is optional and provider-dependent (Bitbucket app
// passwords require one; GitHub and GitLab tokens do not).
type Credentials struct {
	Username string
	Token    string
}

// Empty reports whether no token is configured.
func (c Credentials) Empty() bool {
	return c.Token == ""
}
