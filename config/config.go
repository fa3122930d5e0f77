package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spiffcs/reviewdeck/internal/filter"
	"github.com/spiffcs/reviewdeck/internal/model"
	"github.com/spiffcs/reviewdeck/internal/ratelimit"
	"github.com/spiffcs/reviewdeck/internal/schedule"
)

// Config represents the application configuration
type Config struct {
	DefaultFormat     string `yaml:"default_format,omitempty"`
	BitbucketUsername string `yaml:"bitbucket_username,omitempty"`
	GitLabHost        string `yaml:"gitlab_host,omitempty"`

	// Top-level config sections
	Fetch       *FetchOverrides       `yaml:"fetch,omitempty"`
	Schedule    *ScheduleOverrides    `yaml:"schedule,omitempty"`
	Display     *DisplayOverrides     `yaml:"display,omitempty"`
	RateBudgets *RateBudgetOverrides  `yaml:"rate_budgets,omitempty"`
	Credentials *CredentialsOverrides `yaml:"credentials,omitempty"`
}

// FetchOverrides customizes how pull requests are fetched
type FetchOverrides struct {
	MergeLookbackDays *int `yaml:"merge_lookback_days,omitempty"`
	MaxConcurrent     *int `yaml:"max_concurrent,omitempty"`
}

// ScheduleOverrides customizes the background refresh schedule
type ScheduleOverrides struct {
	RefreshIntervalMinutes *int     `yaml:"refresh_interval_minutes,omitempty"`
	StartHour              *int     `yaml:"start_hour,omitempty"`
	EndHour                *int     `yaml:"end_hour,omitempty"`
	ActiveDays             []string `yaml:"active_days,omitempty"`
}

// DisplayOverrides customizes which categories are shown
type DisplayOverrides struct {
	ShowNeedsReview *bool `yaml:"show_needs_review,omitempty"`
	ShowWaiting     *bool `yaml:"show_waiting,omitempty"`
	ShowAuthored    *bool `yaml:"show_authored,omitempty"`
	ShowTeam        *bool `yaml:"show_team,omitempty"`
	ShowMerged      *bool `yaml:"show_merged,omitempty"`
	ShowSnoozed     *bool `yaml:"show_snoozed,omitempty"`
}

// RateBudgetOverrides customizes the advisory hourly call budgets
type RateBudgetOverrides struct {
	Bitbucket *int `yaml:"bitbucket,omitempty"`
	GitHub    *int `yaml:"github,omitempty"`
	GitLab    *int `yaml:"gitlab,omitempty"`
}

// CredentialsOverrides holds file-based tokens. Environment variables
// always take precedence; these exist for users who prefer a config file
// over shell profiles. Tokens are never written back out by any command.
type CredentialsOverrides struct {
	BitbucketToken string `yaml:"bitbucket_token,omitempty"`
	GitHubToken    string `yaml:"github_token,omitempty"`
	GitLabToken    string `yaml:"gitlab_token,omitempty"`
}

// Settings is the complete set of resolved runtime settings
type Settings struct {
	RefreshInterval time.Duration
	Hours           schedule.Hours
	MergeLookback   time.Duration
	MaxConcurrent   int
	Toggles         filter.Toggles
	Budgets         ratelimit.Budgets
}

// DefaultSettings returns the default runtime settings
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval: schedule.DefaultInterval,
		Hours:           schedule.DefaultHours(),
		MergeLookback:   7 * 24 * time.Hour,
		MaxConcurrent:   6,
		Toggles:         filter.DefaultToggles(),
		Budgets:         ratelimit.DefaultBudgets(),
	}
}

// GetSettings returns runtime settings with user overrides merged with defaults
func (c *Config) GetSettings() Settings {
	settings := DefaultSettings()

	if c.Fetch != nil {
		f := c.Fetch
		if f.MergeLookbackDays != nil && *f.MergeLookbackDays > 0 {
			settings.MergeLookback = time.Duration(*f.MergeLookbackDays) * 24 * time.Hour
		}
		if f.MaxConcurrent != nil && *f.MaxConcurrent > 0 {
			settings.MaxConcurrent = *f.MaxConcurrent
		}
	}

	if c.Schedule != nil {
		s := c.Schedule
		if s.RefreshIntervalMinutes != nil && *s.RefreshIntervalMinutes > 0 {
			settings.RefreshInterval = time.Duration(*s.RefreshIntervalMinutes) * time.Minute
		}
		if s.StartHour != nil {
			settings.Hours.StartHour = *s.StartHour
		}
		if s.EndHour != nil {
			settings.Hours.EndHour = *s.EndHour
		}
		if len(s.ActiveDays) > 0 {
			if days, err := parseActiveDays(s.ActiveDays); err == nil {
				settings.Hours.Days = days
			}
		}
	}

	if c.Display != nil {
		d := c.Display
		if d.ShowNeedsReview != nil {
			settings.Toggles.ShowNeedsReview = *d.ShowNeedsReview
		}
		if d.ShowWaiting != nil {
			settings.Toggles.ShowWaiting = *d.ShowWaiting
		}
		if d.ShowAuthored != nil {
			settings.Toggles.ShowAuthored = *d.ShowAuthored
		}
		if d.ShowTeam != nil {
			settings.Toggles.ShowTeam = *d.ShowTeam
		}
		if d.ShowMerged != nil {
			settings.Toggles.ShowMerged = *d.ShowMerged
		}
		if d.ShowSnoozed != nil {
			settings.Toggles.ShowSnoozed = *d.ShowSnoozed
		}
	}

	if c.RateBudgets != nil {
		r := c.RateBudgets
		if r.Bitbucket != nil && *r.Bitbucket > 0 {
			settings.Budgets[model.ProviderBitbucket] = *r.Bitbucket
		}
		if r.GitHub != nil && *r.GitHub > 0 {
			settings.Budgets[model.ProviderGitHub] = *r.GitHub
		}
		if r.GitLab != nil && *r.GitLab > 0 {
			settings.Budgets[model.ProviderGitLab] = *r.GitLab
		}
	}

	return settings
}

// FileCredentials returns the credential map stored in the config file.
// Providers without a file-based token are absent from the map.
func (c *Config) FileCredentials() map[model.Provider]model.Credentials {
	creds := make(map[model.Provider]model.Credentials)
	if c.Credentials == nil {
		return creds
	}
	if c.Credentials.BitbucketToken != "" {
		creds[model.ProviderBitbucket] = model.Credentials{
			Username: c.BitbucketUsername,
			Token:    c.Credentials.BitbucketToken,
		}
	}
	if c.Credentials.GitHubToken != "" {
		creds[model.ProviderGitHub] = model.Credentials{Token: c.Credentials.GitHubToken}
	}
	if c.Credentials.GitLabToken != "" {
		creds[model.ProviderGitLab] = model.Credentials{Token: c.Credentials.GitLabToken}
	}
	return creds
}

func parseActiveDays(names []string) ([]time.Weekday, error) {
	byName := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, day)
	}
	return days, nil
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".reviewdeck"
	}
	return filepath.Join(configDir, "reviewdeck")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".reviewdeck.yaml"
}

// ConfigFileExists returns true if the config file exists on disk
func ConfigFileExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Load loads the configuration from disk.
// It first loads the global config from the XDG config directory, then
// merges any local .reviewdeck.yaml config on top (local values take
// precedence).
func Load() (*Config, error) {
	cfg := &Config{
		DefaultFormat: "table",
	}

	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}

		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}

		cfg = mergeConfig(cfg, &localCfg)
	}

	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "table"
	}

	return cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{}

	if local.DefaultFormat != "" {
		result.DefaultFormat = local.DefaultFormat
	} else {
		result.DefaultFormat = global.DefaultFormat
	}

	if local.BitbucketUsername != "" {
		result.BitbucketUsername = local.BitbucketUsername
	} else {
		result.BitbucketUsername = global.BitbucketUsername
	}

	if local.GitLabHost != "" {
		result.GitLabHost = local.GitLabHost
	} else {
		result.GitLabHost = global.GitLabHost
	}

	result.Fetch = mergeFetch(global.Fetch, local.Fetch)
	result.Schedule = mergeSchedule(global.Schedule, local.Schedule)
	result.Display = mergeDisplay(global.Display, local.Display)
	result.RateBudgets = mergeRateBudgets(global.RateBudgets, local.RateBudgets)
	result.Credentials = mergeCredentials(global.Credentials, local.Credentials)

	return result
}

func mergeFetch(global, local *FetchOverrides) *FetchOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &FetchOverrides{}

	if global != nil {
		result.MergeLookbackDays = global.MergeLookbackDays
		result.MaxConcurrent = global.MaxConcurrent
	}

	if local != nil {
		if local.MergeLookbackDays != nil {
			result.MergeLookbackDays = local.MergeLookbackDays
		}
		if local.MaxConcurrent != nil {
			result.MaxConcurrent = local.MaxConcurrent
		}
	}

	if result.MergeLookbackDays == nil && result.MaxConcurrent == nil {
		return nil
	}
	return result
}

func mergeSchedule(global, local *ScheduleOverrides) *ScheduleOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &ScheduleOverrides{}

	if global != nil {
		result.RefreshIntervalMinutes = global.RefreshIntervalMinutes
		result.StartHour = global.StartHour
		result.EndHour = global.EndHour
		result.ActiveDays = global.ActiveDays
	}

	if local != nil {
		if local.RefreshIntervalMinutes != nil {
			result.RefreshIntervalMinutes = local.RefreshIntervalMinutes
		}
		if local.StartHour != nil {
			result.StartHour = local.StartHour
		}
		if local.EndHour != nil {
			result.EndHour = local.EndHour
		}
		if len(local.ActiveDays) > 0 {
			result.ActiveDays = local.ActiveDays
		}
	}

	if result.RefreshIntervalMinutes == nil && result.StartHour == nil &&
		result.EndHour == nil && len(result.ActiveDays) == 0 {
		return nil
	}
	return result
}

func mergeDisplay(global, local *DisplayOverrides) *DisplayOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &DisplayOverrides{}

	if global != nil {
		result.ShowNeedsReview = global.ShowNeedsReview
		result.ShowWaiting = global.ShowWaiting
		result.ShowAuthored = global.ShowAuthored
		result.ShowTeam = global.ShowTeam
		result.ShowMerged = global.ShowMerged
		result.ShowSnoozed = global.ShowSnoozed
	}

	if local != nil {
		if local.ShowNeedsReview != nil {
			result.ShowNeedsReview = local.ShowNeedsReview
		}
		if local.ShowWaiting != nil {
			result.ShowWaiting = local.ShowWaiting
		}
		if local.ShowAuthored != nil {
			result.ShowAuthored = local.ShowAuthored
		}
		if local.ShowTeam != nil {
			result.ShowTeam = local.ShowTeam
		}
		if local.ShowMerged != nil {
			result.ShowMerged = local.ShowMerged
		}
		if local.ShowSnoozed != nil {
			result.ShowSnoozed = local.ShowSnoozed
		}
	}

	if result.ShowNeedsReview == nil && result.ShowWaiting == nil &&
		result.ShowAuthored == nil && result.ShowTeam == nil &&
		result.ShowMerged == nil && result.ShowSnoozed == nil {
		return nil
	}
	return result
}

func mergeRateBudgets(global, local *RateBudgetOverrides) *RateBudgetOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &RateBudgetOverrides{}

	if global != nil {
		result.Bitbucket = global.Bitbucket
		result.GitHub = global.GitHub
		result.GitLab = global.GitLab
	}

	if local != nil {
		if local.Bitbucket != nil {
			result.Bitbucket = local.Bitbucket
		}
		if local.GitHub != nil {
			result.GitHub = local.GitHub
		}
		if local.GitLab != nil {
			result.GitLab = local.GitLab
		}
	}

	if result.Bitbucket == nil && result.GitHub == nil && result.GitLab == nil {
		return nil
	}
	return result
}

func mergeCredentials(global, local *CredentialsOverrides) *CredentialsOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &CredentialsOverrides{}

	if global != nil {
		*result = *global
	}

	if local != nil {
		if local.BitbucketToken != "" {
			result.BitbucketToken = local.BitbucketToken
		}
		if local.GitHubToken != "" {
			result.GitHubToken = local.GitHubToken
		}
		if local.GitLabToken != "" {
			result.GitLabToken = local.GitLabToken
		}
	}

	if result.BitbucketToken == "" && result.GitHubToken == "" && result.GitLabToken == "" {
		return nil
	}
	return result
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configDir := DefaultConfigDir()

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := ConfigPath()
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetDefaultFormat sets the default output format and saves
func (c *Config) SetDefaultFormat(format string) error {
	c.DefaultFormat = format
	return c.Save()
}

// DefaultConfig returns a fully populated config with all default values.
// This is useful for generating a complete config file template.
func DefaultConfig() *Config {
	settings := DefaultSettings()

	refreshMinutes := int(settings.RefreshInterval / time.Minute)
	lookbackDays := int(settings.MergeLookback / (24 * time.Hour))
	maxConcurrent := settings.MaxConcurrent
	startHour := settings.Hours.StartHour
	endHour := settings.Hours.EndHour
	days := make([]string, 0, len(settings.Hours.Days))
	for _, day := range settings.Hours.Days {
		days = append(days, strings.ToLower(day.String()))
	}

	bbBudget := settings.Budgets[model.ProviderBitbucket]
	ghBudget := settings.Budgets[model.ProviderGitHub]
	glBudget := settings.Budgets[model.ProviderGitLab]

	t := settings.Toggles
	return &Config{
		DefaultFormat: "table",
		Fetch: &FetchOverrides{
			MergeLookbackDays: &lookbackDays,
			MaxConcurrent:     &maxConcurrent,
		},
		Schedule: &ScheduleOverrides{
			RefreshIntervalMinutes: &refreshMinutes,
			StartHour:              &startHour,
			EndHour:                &endHour,
			ActiveDays:             days,
		},
		Display: &DisplayOverrides{
			ShowNeedsReview: &t.ShowNeedsReview,
			ShowWaiting:     &t.ShowWaiting,
			ShowAuthored:    &t.ShowAuthored,
			ShowTeam:        &t.ShowTeam,
			ShowMerged:      &t.ShowMerged,
			ShowSnoozed:     &t.ShowSnoozed,
		},
		RateBudgets: &RateBudgetOverrides{
			Bitbucket: &bbBudget,
			GitHub:    &ghBudget,
			GitLab:    &glBudget,
		},
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# reviewdeck configuration file
# See: reviewdeck config defaults  (for all available options)

# Output format: table or json
default_format: table

# Bitbucket app passwords require the account username
# bitbucket_username: myuser

# Self-hosted GitLab API base (defaults to gitlab.com)
# gitlab_host: https://gitlab.example.com/api/v4

# Background refresh schedule (optional)
# schedule:
#   refresh_interval_minutes: 60
#   start_hour: 9
#   end_hour: 17
#   active_days: [monday, tuesday, wednesday, thursday, friday]

# Hide categories (optional)
# display:
#   show_team: false

# See README.md for full configuration options
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
