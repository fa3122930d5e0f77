package filter

import (
	"testing"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
)

type fakeSnoozer struct {
	snoozed map[string]bool
	purged  bool
}

func (f *fakeSnoozer) Purge()                  { f.purged = true }
func (f *fakeSnoozer) IsSnoozed(id string) bool { return f.snoozed[id] }

func makeItem(id string, state model.State, age time.Duration, now time.Time) model.Item {
	return model.Item{ID: id, State: state, LastActivity: now.Add(-age)}
}

func TestApplyCategoryToggles(t *testing.T) {
	now := time.Now()
	raw := []model.Item{
		makeItem("a", model.StateNeedsReview, time.Hour, now),
		makeItem("b", model.StateWaiting, 2*time.Hour, now),
		makeItem("c", model.StateAuthored, 3*time.Hour, now),
		makeItem("d", model.StateTeamOther, 4*time.Hour, now),
		makeItem("e", model.StateMergedNeedsReview, 5*time.Hour, now),
	}

	tests := []struct {
		name    string
		toggles Toggles
		wantIDs []string
	}{
		{"all on", DefaultToggles(), []string{"a", "b", "c", "d", "e"}},
		{
			"waiting hidden",
			Toggles{ShowNeedsReview: true, ShowAuthored: true, ShowTeam: true, ShowMerged: true},
			[]string{"a", "c", "d", "e"},
		},
		{
			"only needs review",
			Toggles{ShowNeedsReview: true},
			[]string{"a"},
		},
		{"everything hidden", Toggles{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Apply(raw, nil, tt.toggles, 7*24*time.Hour, now)
			var got []string
			for _, item := range result.Items {
				got = append(got, item.ID)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("items = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("items = %v, want %v", got, tt.wantIDs)
					break
				}
			}
		})
	}
}

func TestApplyUnknownAlwaysExcluded(t *testing.T) {
	now := time.Now()
	raw := []model.Item{makeItem("u", model.StateUnknown, time.Hour, now)}

	result := Apply(raw, nil, DefaultToggles(), 7*24*time.Hour, now)
	if result.VisibleCount() != 0 {
		t.Errorf("VisibleCount() = %d, want 0", result.VisibleCount())
	}
}

func TestApplySnoozedRouting(t *testing.T) {
	now := time.Now()
	raw := []model.Item{
		makeItem("visible", model.StateNeedsReview, time.Hour, now),
		makeItem("hidden", model.StateNeedsReview, 2*time.Hour, now),
	}
	snoozes := &fakeSnoozer{snoozed: map[string]bool{"hidden": true}}

	toggles := DefaultToggles()
	result := Apply(raw, snoozes, toggles, 7*24*time.Hour, now)
	if !snoozes.purged {
		t.Error("expired snoozes not purged before filtering")
	}
	if len(result.Items) != 1 || result.Items[0].ID != "visible" {
		t.Errorf("items = %+v", result.Items)
	}
	if len(result.Snoozed) != 0 {
		t.Errorf("snoozed group populated while toggle off: %+v", result.Snoozed)
	}

	toggles.ShowSnoozed = true
	result = Apply(raw, snoozes, toggles, 7*24*time.Hour, now)
	if len(result.Snoozed) != 1 || result.Snoozed[0].ID != "hidden" {
		t.Fatalf("snoozed = %+v", result.Snoozed)
	}
	if !result.Snoozed[0].IsSnoozed {
		t.Error("snoozed item not tagged")
	}
	// Routed to the snoozed group, not its normal category.
	if len(result.Groups[model.StateNeedsReview]) != 1 {
		t.Errorf("needs-review group = %d items, want 1", len(result.Groups[model.StateNeedsReview]))
	}
	if result.VisibleCount() != 2 {
		t.Errorf("VisibleCount() = %d, want 2", result.VisibleCount())
	}
}

func TestApplyMergedLookbackRefinement(t *testing.T) {
	now := time.Now()
	raw := []model.Item{
		makeItem("recent", model.StateMergedNeedsReview, 2*24*time.Hour, now),
		makeItem("old", model.StateMergedNeedsReview, 10*24*time.Hour, now),
	}

	result := Apply(raw, nil, DefaultToggles(), 7*24*time.Hour, now)
	if len(result.Items) != 1 || result.Items[0].ID != "recent" {
		t.Errorf("items = %+v", result.Items)
	}
	if result.LookbackDropped != 1 {
		t.Errorf("LookbackDropped = %d, want 1", result.LookbackDropped)
	}
}

func TestApplyActionableCount(t *testing.T) {
	now := time.Now()
	raw := []model.Item{
		makeItem("a", model.StateNeedsReview, time.Hour, now),
		makeItem("b", model.StateMergedNeedsReview, 2*time.Hour, now),
		makeItem("c", model.StateWaiting, 3*time.Hour, now),
		makeItem("d", model.StateAuthored, 4*time.Hour, now),
	}

	result := Apply(raw, nil, DefaultToggles(), 7*24*time.Hour, now)
	if result.ActionableCount != 2 {
		t.Errorf("ActionableCount = %d, want 2", result.ActionableCount)
	}
}

func TestApplySortsByActivity(t *testing.T) {
	now := time.Now()
	raw := []model.Item{
		makeItem("older", model.StateNeedsReview, 5*time.Hour, now),
		makeItem("newest", model.StateWaiting, time.Minute, now),
		makeItem("middle", model.StateTeamOther, time.Hour, now),
	}

	result := Apply(raw, nil, DefaultToggles(), 7*24*time.Hour, now)
	want := []string{"newest", "middle", "older"}
	for i, item := range result.Items {
		if item.ID != want[i] {
			t.Errorf("items[%d] = %s, want %s", i, item.ID, want[i])
		}
	}
}
