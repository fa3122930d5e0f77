// Package core owns the refresh cycle: it snapshots credentials, fans the
// fetch out across providers, resolves errors, filters the result, and
// publishes an immutable snapshot to observers.
package core

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spiffcs/reviewdeck/internal/credentials"
	"github.com/spiffcs/reviewdeck/internal/demo"
	"github.com/spiffcs/reviewdeck/internal/fetch"
	"github.com/spiffcs/reviewdeck/internal/filter"
	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/provider"
	"github.com/spiffcs/reviewdeck/internal/provider/bitbucket"
	"github.com/spiffcs/reviewdeck/internal/provider/github"
	"github.com/spiffcs/reviewdeck/internal/provider/gitlab"
	"github.com/spiffcs/reviewdeck/internal/ratelimit"
	"github.com/spiffcs/reviewdeck/internal/repos"
	"github.com/spiffcs/reviewdeck/internal/snooze"
)

// freshFor is how long a completed refresh suppresses non-forced ones.
const freshFor = 30 * time.Second

// Settings carries the resolved runtime knobs the service needs.
type Settings struct {
	MergeLookback time.Duration
	MaxConcurrent int
	Toggles       filter.Toggles
	GitLabHost    string
}

// Snapshot is a point-in-time view of the worklist. Err holds the single
// user-visible condition resolved from the cycle, nil when the cycle was
// clean or partial data was accepted.
type Snapshot struct {
	Result      filter.Result
	Err         error
	LastUpdated time.Time
}

// Service coordinates stores, providers, and filtering behind one mutex.
type Service struct {
	repoStore   *repos.Store
	snoozeStore *snooze.Store
	tracker     *ratelimit.Tracker
	source      credentials.Source
	settings    Settings
	factory     fetch.ClientFactory
	demoMode    bool
	now         func() time.Time

	mu          sync.Mutex
	raw         []model.Item
	result      filter.Result
	lastErr     error
	lastUpdated time.Time
	cancelFetch context.CancelFunc

	obsMu     sync.Mutex
	observers []chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithDemo forces the deterministic in-memory dataset; no network calls
// are made while enabled.
func WithDemo(enabled bool) Option {
	return func(s *Service) { s.demoMode = enabled }
}

// WithFactory overrides the provider client factory.
func WithFactory(factory fetch.ClientFactory) Option {
	return func(s *Service) { s.factory = factory }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires a Service from its stores and settings.
func New(repoStore *repos.Store, snoozeStore *snooze.Store, tracker *ratelimit.Tracker, source credentials.Source, settings Settings, opts ...Option) *Service {
	s := &Service{
		repoStore:   repoStore,
		snoozeStore: snoozeStore,
		tracker:     tracker,
		source:      source,
		settings:    settings,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		s.factory = s.defaultFactory()
	}
	return s
}

// DemoEnabled reports whether demo mode is requested via flag or
// environment.
func DemoEnabled(flag bool) bool {
	return flag || os.Getenv("REVIEWDECK_DEMO") == "1"
}

func (s *Service) defaultFactory() fetch.ClientFactory {
	return func(p model.Provider, creds model.Credentials) (provider.Client, error) {
		if creds.Empty() {
			return nil, fmt.Errorf("%s: no credentials configured", p)
		}
		switch p {
		case model.ProviderBitbucket:
			return bitbucket.New(creds, s.tracker, s.settings.MergeLookback), nil
		case model.ProviderGitHub:
			return github.New(creds, s.tracker, s.settings.MergeLookback,
				github.WithConcurrency(s.settings.MaxConcurrent)), nil
		case model.ProviderGitLab:
			var opts []gitlab.Option
			if s.settings.GitLabHost != "" {
				opts = append(opts, gitlab.WithBaseURL(s.settings.GitLabHost))
			}
			return gitlab.New(creds, s.tracker, s.settings.MergeLookback, opts...), nil
		}
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}

// Refresh runs one fetch cycle and publishes the outcome. Non-forced
// refreshes within the freshness window are skipped. A new cycle cancels
// any cycle still in flight; the superseded cycle's result is discarded by
// its own cancellation.
func (s *Service) Refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	if !force && !s.lastUpdated.IsZero() && s.now().Sub(s.lastUpdated) < freshFor {
		s.mu.Unlock()
		log.Debug("refresh skipped, data is fresh", "age", s.now().Sub(s.lastUpdated))
		return nil
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	monitored := s.repoStore.All()
	s.mu.Unlock()
	defer cancel()

	if s.demoMode {
		s.publish(demo.Items(monitored, s.now()), nil, true)
		return nil
	}

	snap := credentials.Snapshot(s.source)
	result := fetch.Run(fetchCtx, s.factory, monitored, snap)

	if err := fetchCtx.Err(); err != nil {
		log.Debug("refresh superseded or canceled", "error", err)
		return err
	}

	cycleErr := fetch.Resolve(result)
	s.publish(result.Items, cycleErr, fetch.ShouldReplaceSnapshot(result))
	return cycleErr
}

// publish stores the cycle outcome and refilters. When replace is false
// the previous item snapshot is retained and only the error surfaces.
func (s *Service) publish(items []model.Item, err error, replace bool) {
	s.mu.Lock()
	if replace {
		s.raw = items
	}
	s.lastErr = err
	s.lastUpdated = s.now()
	s.result = filter.Apply(s.raw, s.snoozeStore, s.settings.Toggles, s.settings.MergeLookback, s.now())
	s.mu.Unlock()
	s.notify()
}

// refilter recomputes the filtered view from the stored raw items, without
// touching the network.
func (s *Service) refilter() {
	s.mu.Lock()
	s.result = filter.Apply(s.raw, s.snoozeStore, s.settings.Toggles, s.settings.MergeLookback, s.now())
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns the current published view.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Result: s.result, Err: s.lastErr, LastUpdated: s.lastUpdated}
}

// SetToggles replaces the category toggles and refilters.
func (s *Service) SetToggles(t filter.Toggles) {
	s.mu.Lock()
	s.settings.Toggles = t
	s.mu.Unlock()
	s.refilter()
}

// Snooze hides an item for the given duration.
func (s *Service) Snooze(id string, d time.Duration) error {
	if err := s.snoozeStore.Snooze(id, d); err != nil {
		return err
	}
	s.refilter()
	return nil
}

// SnoozeUntilTomorrow hides an item until the next day at 09:00 local.
func (s *Service) SnoozeUntilTomorrow(id string) error {
	if err := s.snoozeStore.SnoozeUntil(id, snooze.TomorrowMorning(s.now())); err != nil {
		return err
	}
	s.refilter()
	return nil
}

// Unsnooze clears an item's snooze.
func (s *Service) Unsnooze(id string) error {
	if err := s.snoozeStore.Unsnooze(id); err != nil {
		return err
	}
	s.refilter()
	return nil
}

// SearchRepositories queries one provider for repositories matching the
// substring query.
func (s *Service) SearchRepositories(ctx context.Context, p model.Provider, query string) ([]model.Repository, error) {
	if s.demoMode {
		return demo.SearchRepositories(query, p), nil
	}
	client, err := s.factory(p, s.source.Credentials(p))
	if err != nil {
		return nil, err
	}
	return client.Repositories(ctx, query)
}

// Repos exposes the monitored repository store.
func (s *Service) Repos() *repos.Store { return s.repoStore }

// Snoozes exposes the snooze store.
func (s *Service) Snoozes() *snooze.Store { return s.snoozeStore }

// Tracker exposes the rate-limit tracker.
func (s *Service) Tracker() *ratelimit.Tracker { return s.tracker }

// Subscribe returns a channel that receives a tick after every published
// snapshot. The channel is buffered; a slow reader coalesces ticks instead
// of blocking publication.
func (s *Service) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.obsMu.Lock()
	s.observers = append(s.observers, ch)
	s.obsMu.Unlock()
	return ch
}

func (s *Service) notify() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for _, ch := range s.observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
