// Package backend is the REST client for the OwnaFarm backend API. It
// covers the public registration surface and the bearer-authenticated
// admin surface; the bearer token comes from an injected TokenSource so
// no credential ever lives in package state.
package backend

import (
	"context"
	"fmt"
	"io"

	ownhttp "github.com/ownafarm/ownafarm-gateway/internal/client/http"
)

// TokenSource supplies the current admin bearer token. The second return
// is false when no session is active.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the OwnaFarm backend.
type Client struct {
	http   *ownhttp.Client
	tokens TokenSource
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *ownhttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets the admin bearer token source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, options ...Option) *Client {
	c := &Client{
		http: ownhttp.NewClient(ownhttp.WithBaseURL(baseURL)),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Health probes GET / on the backend.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.Get(ctx, "/")
	if err != nil {
		return asAPIError(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return nil
}

// GetAdminNonce requests a single-use login nonce for a wallet address.
func (c *Client) GetAdminNonce(ctx context.Context, walletAddress string) (*NonceResponse, error) {
	resp, err := c.http.Get(ctx, "/admin/auth/nonce",
		ownhttp.WithQueryParam("wallet_address", walletAddress))
	if err != nil {
		return nil, asAPIError(err)
	}

	var nonce NonceResponse
	if err := c.http.ProcessJSONResponse(resp, &nonce); err != nil {
		return nil, asAPIError(err)
	}
	return &nonce, nil
}

// AdminLogin exchanges a wallet signature over the nonce message for a
// bearer token.
func (c *Client) AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	resp, err := c.http.Post(ctx, "/admin/auth/login", req)
	if err != nil {
		return nil, asAPIError(err)
	}

	var login LoginResponse
	if err := c.http.ProcessJSONResponse(resp, &login); err != nil {
		return nil, asAPIError(err)
	}
	if login.Token == "" {
		return nil, &APIError{StatusCode: 502, Message: "login response missing token"}
	}
	return &login, nil
}

// bearer returns the request option carrying the active session token.
func (c *Client) bearer() (ownhttp.RequestOption, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("no token source configured")
	}
	token, ok := c.tokens.Token()
	if !ok {
		return nil, &APIError{StatusCode: 401, Message: "no active admin session"}
	}
	return ownhttp.WithBearerToken(token), nil
}
