package config

import (
	"context"
	"fmt"
	"net/http"
)

// HeaderTransport sets headers on every outgoing request without
// mutating the caller's request.
type HeaderTransport struct {
	base   http.RoundTripper
	header func(ctx context.Context) http.Header
}

func NewHeaderTransport(header func(ctx context.Context) http.Header) func(http.RoundTripper) http.RoundTripper {
	return func(base http.RoundTripper) http.RoundTripper {
		if base == nil {
			base = http.DefaultTransport
		}
		return &HeaderTransport{
			base:   base,
			header: header,
		}
	}
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	req = req.Clone(ctx)

	for key, values := range t.header(ctx) {
		// headers set by interceptors win over static config
		if req.Header.Get(key) != "" {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("round trip %s: %w", req.URL.Redacted(), err)
	}

	return resp, nil
}

// TransportAppend wraps roundTripper with each decorator in turn; the last
// one runs first.
func TransportAppend(roundTripper http.RoundTripper, newRoundTrippers ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	for _, newRoundTripper := range newRoundTrippers {
		roundTripper = newRoundTripper(roundTripper)
	}

	return roundTripper
}
