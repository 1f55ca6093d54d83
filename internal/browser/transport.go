package browser

import (
	"errors"
	"net/http"
)

// retryTransport sets a user agent and retries replayable requests a bounded number of times.
type retryTransport struct {
	base      http.RoundTripper
	userAgent string
	// retries is the number of retries after the first attempt
	retries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	// Only GET/HEAD without a body can be replayed safely.
	max := t.retries
	if (req.Method != http.MethodGet && req.Method != http.MethodHead) || req.Body != nil {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", t.userAgent)
		}

		resp, err := t.base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
