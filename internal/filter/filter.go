// Package filter turns the raw fetch snapshot into the displayed
// worklist: snooze routing, category toggles, and the merged-window
// refinement.
package filter

import (
	"sort"
	"time"

	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
)

// Snoozer is the subset of the snooze store the pipeline needs.
type Snoozer interface {
	Purge()
	IsSnoozed(id string) bool
}

// Toggles control per-category visibility.
type Toggles struct {
	ShowNeedsReview bool
	ShowWaiting     bool
	ShowAuthored    bool
	ShowTeam        bool
	ShowMerged      bool
	ShowSnoozed     bool
}

// DefaultToggles shows every category except snoozed items.
func DefaultToggles() Toggles {
	return Toggles{
		ShowNeedsReview: true,
		ShowWaiting:     true,
		ShowAuthored:    true,
		ShowTeam:        true,
		ShowMerged:      true,
	}
}

func (t Toggles) shows(state model.State) bool {
	switch state {
	case model.StateNeedsReview:
		return t.ShowNeedsReview
	case model.StateWaiting:
		return t.ShowWaiting
	case model.StateAuthored:
		return t.ShowAuthored
	case model.StateTeamOther:
		return t.ShowTeam
	case model.StateMergedNeedsReview:
		return t.ShowMerged
	}
	return false
}

// Result is one filtering pass over a raw snapshot.
type Result struct {
	// Items are the visible items in their categories, most recent
	// activity first.
	Items []model.Item

	// Snoozed holds currently-snoozed items when the snoozed toggle is
	// on; they leave their normal category for this dedicated group.
	Snoozed []model.Item

	// Groups indexes Items by state.
	Groups map[model.State][]model.Item

	// ActionableCount counts visible items that need action from the
	// user (needs-review and merged-needs-review).
	ActionableCount int

	// LookbackDropped counts merged items the fetch window let through
	// but the configured display window did not.
	LookbackDropped int
}

// VisibleCount returns the total number of items on screen.
func (r Result) VisibleCount() int {
	return len(r.Items) + len(r.Snoozed)
}

// Apply runs one filtering pass. Expired snoozes are purged first so the
// pass never acts on stale overrides. The fetch query already bounds
// merged items by the lookback window; the pass re-checks it with the
// configured value and flags any divergence instead of trusting either
// side silently.
func Apply(raw []model.Item, snoozes Snoozer, toggles Toggles, lookback time.Duration, now time.Time) Result {
	if snoozes != nil {
		snoozes.Purge()
	}

	result := Result{Groups: make(map[model.State][]model.Item)}
	cutoff := now.Add(-lookback)

	for _, item := range raw {
		if item.State == model.StateUnknown {
			continue
		}

		if item.State == model.StateMergedNeedsReview && !item.LastActivity.After(cutoff) {
			result.LookbackDropped++
			continue
		}

		if snoozes != nil && snoozes.IsSnoozed(item.ID) {
			item.IsSnoozed = true
			if toggles.ShowSnoozed {
				result.Snoozed = append(result.Snoozed, item)
			}
			continue
		}

		if !toggles.shows(item.State) {
			continue
		}
		result.Items = append(result.Items, item)
	}

	if result.LookbackDropped > 0 {
		log.Warn("merged items outside the configured lookback window were fetched",
			"dropped", result.LookbackDropped)
	}

	sortItems(result.Items)
	sortItems(result.Snoozed)

	for _, item := range result.Items {
		result.Groups[item.State] = append(result.Groups[item.State], item)
		if item.State == model.StateNeedsReview || item.State == model.StateMergedNeedsReview {
			result.ActionableCount++
		}
	}
	return result
}

func sortItems(items []model.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].LastActivity.Equal(items[j].LastActivity) {
			return items[i].ID < items[j].ID
		}
		return items[i].LastActivity.After(items[j].LastActivity)
	})
}
