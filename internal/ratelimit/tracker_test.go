package ratelimit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
)

func newTestTracker(t *testing.T, budgets Budgets) *Tracker {
	t.Helper()
	return NewAt(filepath.Join(t.TempDir(), "ratelimit.json"), budgets)
}

func TestLevelForFraction(t *testing.T) {
	tests := []struct {
		fraction float64
		want     Level
	}{
		{0.0, LevelNone},
		{0.49, LevelNone},
		{0.5, LevelLow},
		{0.69, LevelLow},
		{0.7, LevelMedium},
		{0.89, LevelMedium},
		{0.9, LevelHigh},
		{1.5, LevelHigh},
	}
	for _, tt := range tests {
		if got := LevelForFraction(tt.fraction); got != tt.want {
			t.Errorf("LevelForFraction(%v) = %s, want %s", tt.fraction, got, tt.want)
		}
	}
}

func TestRecordCallAndLevels(t *testing.T) {
	tr := newTestTracker(t, Budgets{model.ProviderBitbucket: 10})

	for i := 0; i < 5; i++ {
		tr.RecordCall(model.ProviderBitbucket)
	}
	if got := tr.Level(model.ProviderBitbucket); got != LevelLow {
		t.Errorf("Level() after 5/10 calls = %s, want low", got)
	}

	for i := 0; i < 4; i++ {
		tr.RecordCall(model.ProviderBitbucket)
	}
	if got := tr.Level(model.ProviderBitbucket); got != LevelHigh {
		t.Errorf("Level() after 9/10 calls = %s, want high", got)
	}

	// Overall level is the worst provider.
	if got := tr.OverallLevel(); got != LevelHigh {
		t.Errorf("OverallLevel() = %s, want high", got)
	}
	if got := tr.Level(model.ProviderGitHub); got != LevelNone {
		t.Errorf("Level(github) = %s, want none", got)
	}
}

func TestTrackRateLimitSignals(t *testing.T) {
	tests := []struct {
		name        string
		provider    model.Provider
		status      int
		wantLimited bool
	}{
		{"429 limits bitbucket", model.ProviderBitbucket, 429, true},
		{"429 limits github", model.ProviderGitHub, 429, true},
		{"403 limits github only", model.ProviderGitHub, 403, true},
		{"403 does not limit gitlab", model.ProviderGitLab, 403, false},
		{"200 records a call", model.ProviderGitLab, 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, nil)
			tr.Track(tt.provider, tt.status)
			if got := tr.IsLimited(tt.provider); got != tt.wantLimited {
				t.Errorf("IsLimited() = %v, want %v", got, tt.wantLimited)
			}
		})
	}
}

func TestResetTimeComputation(t *testing.T) {
	tr := newTestTracker(t, nil)

	start := time.Now().Add(-30 * time.Minute)
	tr.windowStart = start
	tr.ReportLimitReached(model.ProviderGitHub)

	// Window started 30 minutes ago, so reset lands ~30 minutes out.
	want := start.Add(Window)
	if got := tr.ResetAt(); !got.Equal(want) {
		t.Errorf("ResetAt() = %v, want %v", got, want)
	}

	// A stale window start falls back to one hour from now.
	tr2 := newTestTracker(t, nil)
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr2.now = func() time.Time { return fixed }
	tr2.windowStart = fixed.Add(-50 * time.Minute)
	tr2.ReportLimitReached(model.ProviderBitbucket)
	// windowStart+1h is still ahead of the fixed clock.
	if got := tr2.ResetAt(); !got.Equal(fixed.Add(10 * time.Minute)) {
		t.Errorf("ResetAt() = %v, want %v", got, fixed.Add(10*time.Minute))
	}
}

func TestWindowReset(t *testing.T) {
	tr := newTestTracker(t, nil)
	fixed := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }
	tr.windowStart = fixed.Add(-2 * time.Hour)
	tr.usage[model.ProviderGitHub] = 4000
	tr.limited[model.ProviderGitHub] = true

	// Any observation first validates the window.
	tr.RecordCall(model.ProviderGitHub)

	if got := tr.Statuses()[1].Usage; got != 1 {
		t.Errorf("usage after stale-window reset = %d, want 1", got)
	}
	if tr.IsLimited(model.ProviderGitHub) {
		t.Error("limited flag should clear on window reset")
	}
	if !tr.WindowStart().Equal(fixed) {
		t.Errorf("window start = %v, want %v", tr.WindowStart(), fixed)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.json")

	tr := NewAt(path, nil)
	tr.RecordCall(model.ProviderBitbucket)
	tr.RecordCall(model.ProviderBitbucket)
	tr.RecordCall(model.ProviderGitLab)
	start := tr.WindowStart()

	reloaded := NewAt(path, nil)
	statuses := reloaded.Statuses()
	if statuses[0].Usage != 2 {
		t.Errorf("bitbucket usage after reload = %d, want 2", statuses[0].Usage)
	}
	if statuses[2].Usage != 1 {
		t.Errorf("gitlab usage after reload = %d, want 1", statuses[2].Usage)
	}
	if !reloaded.WindowStart().Equal(start) {
		t.Errorf("window start after reload = %v, want %v", reloaded.WindowStart(), start)
	}
}

func TestPersistenceStaleWindowResetOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.json")

	tr := NewAt(path, nil)
	tr.mu.Lock()
	tr.usage[model.ProviderGitHub] = 999
	tr.windowStart = time.Now().Add(-3 * time.Hour)
	tr.saveLocked()
	tr.mu.Unlock()

	reloaded := NewAt(path, nil)
	if got := reloaded.Statuses()[1].Usage; got != 0 {
		t.Errorf("stale usage survived reload: %d, want 0", got)
	}
}
