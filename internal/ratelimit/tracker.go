// Package ratelimit tracks advisory per-provider API usage against hourly
// budgets. The tracker never blocks calls; it counts them, computes warning
// levels, and remembers when a provider explicitly reported exhaustion.
package ratelimit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
)

// Window is the fixed usage window length.
const Window = time.Hour

// Level is a usage warning level derived from the fraction of the hourly
// budget consumed.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	}
	return "none"
}

// LevelForFraction maps a usage fraction to a warning level.
func LevelForFraction(fraction float64) Level {
	switch {
	case fraction < 0.5:
		return LevelNone
	case fraction < 0.7:
		return LevelLow
	case fraction < 0.9:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Budgets holds the configured hourly call budget per provider.
type Budgets map[model.Provider]int

// DefaultBudgets returns the default hourly budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		model.ProviderBitbucket: 1000,
		model.ProviderGitHub:    5000,
		model.ProviderGitLab:    2000,
	}
}

// persistedState is the on-disk shape. Counts and window start survive
// restarts; they are revalidated (reset-if-stale) on load.
type persistedState struct {
	Usage       map[model.Provider]int `json:"usage"`
	WindowStart time.Time              `json:"windowStart"`
}

// Status is a read-only view for display.
type Status struct {
	Provider model.Provider
	Usage    int
	Budget   int
	Level    Level
	Limited  bool
}

// Tracker counts outbound calls per provider within a sliding hourly
// window. All state is guarded by a single mutex so readers never observe
// a torn counter/window-start pair.
type Tracker struct {
	mu          sync.Mutex
	path        string
	budgets     Budgets
	usage       map[model.Provider]int
	windowStart time.Time
	limited     map[model.Provider]bool
	resetAt     time.Time
	now         func() time.Time
}

// New creates a Tracker persisting under the user cache directory and
// reloads any previous window state.
func New(budgets Budgets) (*Tracker, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(cacheDir, "reviewdeck")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return NewAt(filepath.Join(dir, "ratelimit.json"), budgets), nil
}

// NewAt creates a Tracker persisting at an explicit path. Used by tests.
func NewAt(path string, budgets Budgets) *Tracker {
	if budgets == nil {
		budgets = DefaultBudgets()
	}
	t := &Tracker{
		path:        path,
		budgets:     budgets,
		usage:       make(map[model.Provider]int),
		limited:     make(map[model.Provider]bool),
		windowStart: time.Now(),
		now:         time.Now,
	}
	if err := t.load(); err != nil {
		log.Debug("could not load rate limit state, starting fresh", "error", err)
	}
	return t
}

// Track observes one outbound call. A 429 (any provider) or 403 (GitHub
// only) marks the provider limited; anything else counts against the
// window.
func (t *Tracker) Track(p model.Provider, statusCode int) {
	if statusCode == 429 || (p == model.ProviderGitHub && statusCode == 403) {
		t.ReportLimitReached(p)
		return
	}
	t.RecordCall(p)
}

// RecordCall increments the provider's counter for the current window.
func (t *Tracker) RecordCall(p model.Provider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	t.usage[p]++
	t.saveLocked()
}

// ReportLimitReached marks the provider limited and computes a reset time
// one hour from window start, or one hour from now if that already passed.
func (t *Tracker) ReportLimitReached(p model.Provider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	t.limited[p] = true
	next := t.windowStart.Add(Window)
	if now := t.now(); !next.After(now) {
		next = now.Add(Window)
	}
	t.resetAt = next
	t.saveLocked()
}

// IsLimited reports whether the provider reported rate-limit exhaustion in
// the current window.
func (t *Tracker) IsLimited(p model.Provider) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	return t.limited[p]
}

// ResetAt returns the computed reset time, zero if no provider is limited.
func (t *Tracker) ResetAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	return t.resetAt
}

// Level returns the warning level for one provider.
func (t *Tracker) Level(p model.Provider) Level {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	return t.levelLocked(p)
}

// OverallLevel returns the maximum warning level across providers.
func (t *Tracker) OverallLevel() Level {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()

	max := LevelNone
	for _, p := range model.AllProviders {
		if l := t.levelLocked(p); l > max {
			max = l
		}
	}
	return max
}

// Statuses returns a display snapshot for every provider.
func (t *Tracker) Statuses() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()

	statuses := make([]Status, 0, len(model.AllProviders))
	for _, p := range model.AllProviders {
		statuses = append(statuses, Status{
			Provider: p,
			Usage:    t.usage[p],
			Budget:   t.budget(p),
			Level:    t.levelLocked(p),
			Limited:  t.limited[p],
		})
	}
	return statuses
}

// WindowStart returns the start of the current usage window.
func (t *Tracker) WindowStart() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
	return t.windowStart
}

// Reset clears all usage and limit state and starts a new window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.saveLocked()
}

func (t *Tracker) levelLocked(p model.Provider) Level {
	budget := t.budget(p)
	if budget <= 0 {
		return LevelNone
	}
	return LevelForFraction(float64(t.usage[p]) / float64(budget))
}

func (t *Tracker) budget(p model.Provider) int {
	if b, ok := t.budgets[p]; ok && b > 0 {
		return b
	}
	return DefaultBudgets()[p]
}

// checkResetLocked starts a fresh window when more than an hour has
// elapsed since the window start.
func (t *Tracker) checkResetLocked() {
	if t.now().Sub(t.windowStart) > Window {
		t.resetLocked()
		t.saveLocked()
	}
}

func (t *Tracker) resetLocked() {
	t.usage = make(map[model.Provider]int)
	t.limited = make(map[model.Provider]bool)
	t.windowStart = t.now()
	t.resetAt = time.Time{}
}

func (t *Tracker) saveLocked() {
	if t.path == "" {
		return
	}
	data, err := json.MarshalIndent(persistedState{
		Usage:       t.usage,
		WindowStart: t.windowStart,
	}, "", "  ")
	if err != nil {
		log.Debug("failed to encode rate limit state", "error", err)
		return
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		log.Debug("failed to save rate limit state", "error", err)
	}
}

func (t *Tracker) load() error {
	if t.path == "" {
		return nil
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Usage != nil {
		t.usage = state.Usage
	}
	if !state.WindowStart.IsZero() {
		t.windowStart = state.WindowStart
	}

	t.checkResetLocked()
	return nil
}
