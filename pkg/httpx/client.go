// Package httpx provides the HTTP client used for all calls to the
// identity provider: a sane default timeout plus transport-level pacing so
// a misbehaving caller cannot hammer the provider's endpoints.
package httpx

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds each round trip to the identity provider. The
// upstream design relied on transport defaults; an explicit timeout is
// deliberate here.
const DefaultTimeout = 15 * time.Second

// DefaultProviderLimit paces outbound identity-provider requests.
// Interactive logins are rare; anything faster than this indicates a retry
// loop.
var DefaultProviderLimit = rate.NewLimiter(rate.Every(time.Second), 5)

// NewClient returns an *http.Client with DefaultTimeout whose transport
// waits on limiter before each request. A nil limiter disables pacing.
func NewClient(limiter *rate.Limiter) *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &pacedTransport{
			base:    http.DefaultTransport,
			limiter: limiter,
		},
	}
}

// pacedTransport delays requests to honor the rate limiter. Context
// cancellation during the wait aborts the request.
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("request pacing aborted: %w", err)
		}
	}
	return t.base.RoundTrip(req)
}
