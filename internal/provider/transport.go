package provider

import (
	"net/http"
	"time"

	"github.com/spiffcs/reviewdeck/internal/model"
)

// trackingTransport wraps an http.RoundTripper so the rate-limit tracker
// sees every outbound call, successful or not. Tracking is advisory: the
// transport never blocks or rejects a request.
type trackingTransport struct {
	base     http.RoundTripper
	provider model.Provider
	tracker  Tracker
}

func (t *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if t.tracker != nil {
		t.tracker.Track(t.provider, resp.StatusCode)
	}
	return resp, err
}

// NewHTTPClient returns an http.Client whose transport reports every call
// to the tracker under the given provider tag.
func NewHTTPClient(p model.Provider, tracker Tracker) *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: WrapTransport(http.DefaultTransport, p, tracker),
	}
}

// WrapTransport wraps base with call tracking. It is used directly by the
// GitHub client, whose transport chain already carries oauth2.
func WrapTransport(base http.RoundTripper, p model.Provider, tracker Tracker) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &trackingTransport{base: base, provider: p, tracker: tracker}
}
