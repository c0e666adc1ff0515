// Package api is the GraphQL client for the tuber admin server.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/machinebox/graphql"
)

const (
	// AuthRedirectHeader is set by the admin server when the caller must
	// log in before retrying.
	AuthRedirectHeader = "TUBER_AUTH_REDIRECT"
	TokenHeader        = "Tuber-Token"
	RequestIDHeader    = "X-Request-Id"
)

// Options configures a Client.
type Options struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client runs named queries and mutations against one admin server.
type Client struct {
	gql    *graphql.Client
	token  string
	logger *slog.Logger
}

// New builds a client. A nil HTTPClient gets a default with Options.Timeout.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = &transport{next: next}

	gql := graphql.NewClient(opts.Endpoint, graphql.WithHTTPClient(&wrapped))
	gql.Log = func(s string) { logger.Debug(s, "component", "graphql") }

	return &Client{gql: gql, token: opts.Token, logger: logger}
}

func (c *Client) run(ctx context.Context, op, doc string, vars map[string]any, resp any) error {
	req := graphql.NewRequest(doc)
	for k, v := range vars {
		req.Var(k, v)
	}

	id := uuid.NewString()
	req.Header.Set(RequestIDHeader, id)
	req.Header.Set("Cache-Control", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set(TokenHeader, c.token)
	}

	start := time.Now()
	err := c.gql.Run(ctx, req, resp)
	if err != nil {
		c.logger.Warn("graphql request failed", "op", op, "request_id", id, "error", err)
		return err
	}
	c.logger.Debug("graphql request", "op", op, "request_id", id, "duration", time.Since(start))
	return nil
}

// transport turns auth redirects and non-2xx responses into typed errors
// before the GraphQL client tries to decode them.
type transport struct {
	next http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if loc := res.Header.Get(AuthRedirectHeader); loc != "" {
		res.Body.Close()
		return nil, &AuthRedirectError{URL: loc}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		return nil, &StatusError{Code: res.StatusCode, Message: errorMessage(body, res.Status)}
	}
	return res, nil
}
