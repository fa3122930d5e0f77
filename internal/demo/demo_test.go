package demo

import (
	"testing"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
)

func TestItemsReturnsWholeDatasetWhenNothingMonitored(t *testing.T) {
	items := Items(nil, time.Now())
	if len(items) != 12 {
		t.Fatalf("items = %d, want 12", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].LastActivity.After(items[i-1].LastActivity) {
			t.Fatal("items not sorted by activity descending")
		}
	}
}

func TestItemsFiltersByMonitoredRepositories(t *testing.T) {
	monitored := []model.Repository{
		{ID: "gh-orbit-ios", Provider: model.ProviderGitHub},
	}
	items := Items(monitored, time.Now())
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.Repository != "orbit-ios" {
			t.Errorf("unexpected repository %q", item.Repository)
		}
	}
}

func TestItemsFallsBackWhenMonitoredSetUnknown(t *testing.T) {
	monitored := []model.Repository{
		{ID: "not-in-catalogue", Provider: model.ProviderGitHub},
	}
	if got := len(Items(monitored, time.Now())); got != 12 {
		t.Errorf("items = %d, want full dataset fallback", got)
	}
}

func TestSearchRepositories(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		provider model.Provider
		want     int
	}{
		{"provider only", "", model.ProviderBitbucket, 2},
		{"substring match", "orbit", model.ProviderGitHub, 1},
		{"wrong provider", "orbit", model.ProviderGitLab, 0},
		{"case insensitive", "FORGE", model.ProviderGitLab, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(SearchRepositories(tt.query, tt.provider)); got != tt.want {
				t.Errorf("SearchRepositories(%q, %s) = %d, want %d", tt.query, tt.provider, got, tt.want)
			}
		})
	}
}

func TestItemsAreDeterministic(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Items(nil, now)
	b := Items(nil, now)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("items differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}
