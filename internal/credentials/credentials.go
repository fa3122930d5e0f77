// Package credentials resolves provider tokens from the environment and
// the config file. Tokens never leave this package in logs or output.
package credentials

import (
	"os"

	"github.com/spiffcs/reviewdeck/internal/model"
)

// Source yields credentials for a provider. An empty token means the
// provider is not configured.
type Source interface {
	Credentials(p model.Provider) model.Credentials
}

// EnvSource reads credentials from environment variables. The
// REVIEWDECK_-prefixed variables win over the conventional per-provider
// ones (GITHUB_TOKEN, GITLAB_TOKEN, BITBUCKET_APP_PASSWORD).
type EnvSource struct{}

// Credentials implements Source.
func (EnvSource) Credentials(p model.Provider) model.Credentials {
	switch p {
	case model.ProviderBitbucket:
		return model.Credentials{
			Username: firstEnv("REVIEWDECK_BITBUCKET_USERNAME", "BITBUCKET_USERNAME"),
			Token:    firstEnv("REVIEWDECK_BITBUCKET_TOKEN", "BITBUCKET_APP_PASSWORD"),
		}
	case model.ProviderGitHub:
		return model.Credentials{Token: firstEnv("REVIEWDECK_GITHUB_TOKEN", "GITHUB_TOKEN")}
	case model.ProviderGitLab:
		return model.Credentials{Token: firstEnv("REVIEWDECK_GITLAB_TOKEN", "GITLAB_TOKEN")}
	}
	return model.Credentials{}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// StaticSource serves a fixed credential map, typically loaded from the
// config file.
type StaticSource map[model.Provider]model.Credentials

// Credentials implements Source.
func (s StaticSource) Credentials(p model.Provider) model.Credentials {
	return s[p]
}

// Chain tries each source in order and returns the first non-empty
// credentials.
type Chain []Source

// Credentials implements Source.
func (c Chain) Credentials(p model.Provider) model.Credentials {
	for _, src := range c {
		if creds := src.Credentials(p); !creds.Empty() {
			return creds
		}
	}
	return model.Credentials{}
}

// Snapshot captures every provider's credentials at once. A refresh cycle
// works from one snapshot so a token change mid-cycle cannot mix
// credentials.
func Snapshot(src Source) map[model.Provider]model.Credentials {
	snap := make(map[model.Provider]model.Credentials, len(model.AllProviders))
	for _, p := range model.AllProviders {
		snap[p] = src.Credentials(p)
	}
	return snap
}

// Configured lists the providers the source has a token for.
func Configured(src Source) []model.Provider {
	var out []model.Provider
	for _, p := range model.AllProviders {
		if !src.Credentials(p).Empty() {
			out = append(out, p)
		}
	}
	return out
}
