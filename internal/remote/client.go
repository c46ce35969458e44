// Package remote provides typed request wrappers over the wellness
// service's HTTP API.
//
// Every call resolves to exactly one of three outcomes:
//
//   - Ok: a nil error and a decoded payload
//   - Rejected (*RejectedError): the server understood the request and
//     declined it; never retried automatically
//   - Unreachable (*UnreachableError): no usable response (network
//     failure, timeout, 5xx); always eligible for queued replay
//
// This three-way split is the crux of the engine's retry policy, so the
// classification lives here and nowhere else.
//
// Token refresh is internal to this package: on a 401 the client attempts
// exactly one silent refresh and replays the same call once. A second 401
// is surfaced as Rejected — the caller must re-authenticate.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/stillapp/stillsync/internal/schema"
)

// Config holds client configuration.
type Config struct {
	// Timeout bounds every remote call. Expiry is treated as Unreachable.
	// Default: 10s.
	Timeout time.Duration

	// HTTPClient is the transport to use. Default: http.DefaultClient.
	HTTPClient *http.Client

	// Logger for request outcomes. Default: stderr logger.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Logger:  log.New(os.Stderr, "[remote] ", log.LstdFlags),
	}
}

// Client issues typed requests against the remote service.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	timeout time.Duration
	logger  *log.Logger
}

// New creates a remote client for the API rooted at baseURL
// (e.g. "https://api.example.com"). The token source supplies the bearer
// credential for authenticated calls and receives refreshed pairs.
func New(baseURL string, tokens TokenSource, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    config.HTTPClient,
		timeout: config.Timeout,
		logger:  config.Logger,
	}
}

// errorBody is the server's error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// do issues one API call and classifies the outcome. If out is non-nil the
// success payload is decoded into it. Authenticated calls get the bearer
// header and the one-shot refresh-and-retry on 401.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	return c.doRetry(ctx, method, path, query, body, out, authed, true)
}

func (c *Client) doRetry(ctx context.Context, method, path string, query url.Values, body, out any, authed, allowRefresh bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		creds, err := c.tokens.Credentials()
		if err != nil {
			return &RejectedError{Status: http.StatusUnauthorized, Detail: "not authenticated"}
		}
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failure or timeout: no usable response.
		return &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return &UnreachableError{Err: fmt.Errorf("server error: %s", resp.Status)}

	case resp.StatusCode == http.StatusUnauthorized && authed && allowRefresh:
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := c.refresh(ctx); err != nil {
			return err
		}
		c.logger.Printf("Refreshed credentials, retrying %s %s", method, path)
		return c.doRetry(ctx, method, path, query, body, out, authed, false)

	case resp.StatusCode >= 400:
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &RejectedError{Status: resp.StatusCode, Detail: eb.Detail}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// refresh performs the silent credential refresh. A transport failure is
// Unreachable; a declined refresh is Rejected (re-authentication needed).
func (c *Client) refresh(ctx context.Context) error {
	creds, err := c.tokens.Credentials()
	if err != nil {
		return &RejectedError{Status: http.StatusUnauthorized, Detail: "not authenticated"}
	}

	reqBody := map[string]string{"refresh_token": creds.RefreshToken}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/refresh", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &UnreachableError{Err: fmt.Errorf("server error: %s", resp.Status)}
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return &RejectedError{Status: resp.StatusCode, Detail: eb.Detail}
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}

	next := &schema.Credentials{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         creds.User,
	}
	if err := c.tokens.Store(next); err != nil {
		return err
	}
	return nil
}
