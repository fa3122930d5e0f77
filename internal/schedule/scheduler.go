// Package schedule drives periodic refreshes inside a configurable
// active-hours window.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/spiffcs/reviewdeck/internal/log"
)

const (
	// DefaultInterval is used when no refresh interval is configured.
	DefaultInterval = time.Hour

	// MinInterval is the floor for the poll interval; shorter configured
	// values are clamped up to protect provider quotas.
	MinInterval = 15 * time.Minute

	// repoChangeDebounce coalesces quick add/remove bursts into one
	// refresh.
	repoChangeDebounce = 350 * time.Millisecond

	// wakeSettleDelay gives the network stack time to come back before
	// the post-wake refresh.
	wakeSettleDelay = 5 * time.Second

	// wakeCheckInterval is how often the loop compares wall clock against
	// the previous check to spot a suspend/resume gap.
	wakeCheckInterval = 30 * time.Second

	// wakeJumpSlack is how far beyond the check interval the clock must
	// jump before the gap counts as a resume rather than ticker drift.
	wakeJumpSlack = 2 * time.Minute
)

// RefreshFunc runs one refresh cycle. force bypasses the freshness guard.
type RefreshFunc func(force bool)

// Scheduler owns the poll loop. It is restartable: changing the interval
// or hours stops the running loop and starts a fresh one.
type Scheduler struct {
	refresh RefreshFunc

	mu       sync.Mutex
	interval time.Duration
	hours    Hours
	cancel   context.CancelFunc
	debounce *time.Timer
	now      func() time.Time

	debounceDelay time.Duration
	wakeDelay     time.Duration
	wakeCheck     time.Duration
	wakeSlack     time.Duration
}

// New returns a stopped scheduler. A non-positive interval selects the
// default; anything below the minimum is clamped.
func New(interval time.Duration, hours Hours, refresh RefreshFunc) *Scheduler {
	return &Scheduler{
		refresh:       refresh,
		interval:      EffectiveInterval(interval),
		hours:         hours,
		now:           time.Now,
		debounceDelay: repoChangeDebounce,
		wakeDelay:     wakeSettleDelay,
		wakeCheck:     wakeCheckInterval,
		wakeSlack:     wakeJumpSlack,
	}
}

// EffectiveInterval clamps a configured poll interval into the allowed
// range.
func EffectiveInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Start launches the poll loop, replacing any running one. The first
// cycle runs immediately (unforced, so fresh data short-circuits it);
// subsequent cycles run at the poll interval and force a fetch.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	interval := s.interval
	wakeCheck := s.wakeCheck
	s.mu.Unlock()

	go s.loop(ctx, interval, wakeCheck)
}

// Stop halts the poll loop and any pending debounced refresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// Update applies a new interval and hours, restarting the loop.
func (s *Scheduler) Update(interval time.Duration, hours Hours) {
	s.mu.Lock()
	s.interval = EffectiveInterval(interval)
	s.hours = hours
	s.mu.Unlock()
	s.Start()
}

func (s *Scheduler) loop(ctx context.Context, interval, wakeCheck time.Duration) {
	s.cycle(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	clock := time.NewTicker(wakeCheck)
	defer clock.Stop()
	lastSeen := s.clockNow()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(true)
		case <-clock.C:
			now := s.clockNow()
			if gap := now.Sub(lastSeen); gap > wakeCheck+s.wakeSlack {
				log.Debug("clock jumped, treating as system wake", "gap", gap)
				s.OnWake()
			}
			lastSeen = now
		}
	}
}

func (s *Scheduler) clockNow() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func (s *Scheduler) cycle(force bool) {
	s.mu.Lock()
	hours := s.hours
	now := s.now()
	s.mu.Unlock()

	if !hours.Active(now) {
		log.Debug("skipping refresh outside active hours", "next", hours.NextActiveText(now))
		return
	}
	s.refresh(force)
}

// NotifyRepoChange schedules a forced refresh after a short debounce so
// a burst of repository edits fetches once.
func (s *Scheduler) NotifyRepoChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.debounceDelay, func() {
		s.cycle(true)
	})
}

// OnWake handles a system resume: wait for the network to settle, then
// force a refresh if inside active hours.
func (s *Scheduler) OnWake() {
	time.AfterFunc(s.wakeDelay, func() {
		s.cycle(true)
	})
}

// Status describes the scheduler for the status line.
func (s *Scheduler) Status() string {
	s.mu.Lock()
	hours := s.hours
	now := s.now()
	s.mu.Unlock()

	if hours.Active(now) {
		return "active"
	}
	return "sleeping until " + hours.NextActiveText(now)
}
