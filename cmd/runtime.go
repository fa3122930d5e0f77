package cmd

import (
	"fmt"
	"io"

	"github.com/spiffcs/reviewdeck/config"
	"github.com/spiffcs/reviewdeck/internal/core"
	"github.com/spiffcs/reviewdeck/internal/credentials"
	"github.com/spiffcs/reviewdeck/internal/log"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/ratelimit"
	"github.com/spiffcs/reviewdeck/internal/repos"
	"github.com/spiffcs/reviewdeck/internal/snooze"
)

// runtime bundles everything a command needs after setup.
type runtime struct {
	cfg      *config.Config
	settings config.Settings
	svc      *core.Service
	tracker  *ratelimit.Tracker
}

// setupRuntime loads configuration, opens the stores, and wires the
// service. logTo controls where logs go so TUI commands can discard them.
func setupRuntime(opts *Options, logTo io.Writer) (*runtime, error) {
	log.Initialize(opts.Verbosity, logTo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	settings := cfg.GetSettings()

	repoStore, err := repos.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open repository store: %w", err)
	}
	snoozeStore, err := snooze.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open snooze store: %w", err)
	}
	tracker, err := ratelimit.New(settings.Budgets)
	if err != nil {
		return nil, fmt.Errorf("failed to open rate limit state: %w", err)
	}

	source := credentials.Chain{
		credentials.EnvSource{},
		credentials.StaticSource(cfg.FileCredentials()),
	}

	svc := core.New(repoStore, snoozeStore, tracker, source, core.Settings{
		MergeLookback: settings.MergeLookback,
		MaxConcurrent: settings.MaxConcurrent,
		Toggles:       settings.Toggles,
		GitLabHost:    cfg.GitLabHost,
	}, core.WithDemo(core.DemoEnabled(opts.Demo)))

	return &runtime{
		cfg:      cfg,
		settings: settings,
		svc:      svc,
		tracker:  tracker,
	}, nil
}

// parseProvider validates a provider flag value.
func parseProvider(s string) (model.Provider, error) {
	p := model.Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q (must be bitbucket, github, or gitlab)", s)
	}
	return p, nil
}
