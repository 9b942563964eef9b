package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
)

type retriedKey struct{}

// Transport is an http.RoundTripper that authorizes requests with the session
// access token and, on 401, refreshes through the Coordinator and replays the
// request once. Requests rejected during one refresh are replayed in the
// order they were rejected.
type Transport struct {
	// Base performs the actual requests; nil means http.DefaultTransport.
	Base        http.RoundTripper
	Session     *Session
	Coordinator *Coordinator
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Session.AccessToken()
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || t.Coordinator == nil || retried(req.Context()) {
		return resp, nil
	}
	// a consumed body cannot be sent again
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	fresh, done, err := t.Coordinator.refreshTurn(req.Context(), token)
	defer done()
	if err != nil {
		return nil, err
	}

	// the next queued caller may replay once this request is on the wire
	ctx := context.WithValue(req.Context(), retriedKey{}, true)
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { done() },
	})

	replay := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("client.transport.RoundTrip: rebuild body: %w", err)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+fresh)

	return t.base().RoundTrip(replay)
}

func retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}
