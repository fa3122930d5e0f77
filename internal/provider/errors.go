package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/spiffcs/reviewdeck/internal/model"
)

// Error taxonomy shared by all provider clients. Pagination failures
// propagate these unchanged: an error on any page aborts the whole call
// with no partial results.
var (
	// ErrInvalidURL is returned when an endpoint cannot be built.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnauthorized is returned on HTTP 401. Note the GitHub API also
	// answers 403 for bad credentials; that maps to ErrRateLimited
	// because the same status signals quota exhaustion (a known
	// provider-API ambiguity).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned on HTTP 429, or 403 from GitHub.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidResponse is returned for non-HTTP or undecodable replies.
	ErrInvalidResponse = errors.New("invalid response")
)

// APIError is a generic non-2xx status outside the mapped cases.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider api error: status %d", e.StatusCode)
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RepoError attributes an error to the provider (and optionally the
// repository) it came from, so the orchestrator can reduce errors across
// providers without losing attribution.
type RepoError struct {
	Provider model.Provider
	Repo     string
	Err      error
}

func (e *RepoError) Error() string {
	if e.Repo == "" {
		return fmt.Sprintf("%s: %v", e.Provider.DisplayName(), e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider.DisplayName(), e.Repo, e.Err)
}

func (e *RepoError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether an error must stop further fetching for its
// provider within the current cycle. Everything else is recoverable and
// isolated to one repository or item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRateLimited)
}

// IsCanceled reports whether an error is a cancellation result; the
// orchestrator drops these silently rather than recording them.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StatusError maps an HTTP status code to the shared taxonomy. GitHub
// overloads 403 for both auth and rate-limit failures; per observed
// provider behavior it maps to ErrRateLimited there and to a generic
// APIError everywhere else.
func StatusError(p model.Provider, statusCode int) error {
	switch {
	case statusCode == 401:
		return ErrUnauthorized
	case statusCode == 429:
		return ErrRateLimited
	case statusCode == 403 && p == model.ProviderGitHub:
		return ErrRateLimited
	default:
		return &APIError{StatusCode: statusCode}
	}
}
