// Package client is an HTTP client for the administrative endpoints of the
// management service: auth roles, hooks and provisioner worker types.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ciadmin/ciadmin/pkg/engine"
)

// Service path prefixes relative to the root URL.
const (
	authPrefix        = "/api/auth/v1"
	hooksPrefix       = "/api/hooks/v1"
	provisionerPrefix = "/api/aws-provisioner/v1"
)

// Config contains client configuration options.
type Config struct {
	// RootURL is the base URL of the deployment, e.g. https://tc.example.com.
	RootURL string

	// ClientID and AccessToken authenticate mutating requests. Listing works
	// without them.
	ClientID    string
	AccessToken string

	// RequestTimeout bounds each individual request. Zero means 60s.
	RequestTimeout time.Duration

	// HTTPClient overrides the transport. Defaults to a new http.Client.
	HTTPClient *http.Client

	// UserAgent is sent with every request.
	UserAgent string

	// Logger receives one debug line per request.
	Logger zerolog.Logger
}

// Client talks to the management service. A single Client is built per run
// and shared read-only by every operation.
type Client struct {
	root        *url.URL
	clientID    string
	accessToken string
	timeout     time.Duration
	http        *http.Client
	userAgent   string
	logger      zerolog.Logger
}

// NewClient creates a new client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.RootURL == "" {
		return nil, fmt.Errorf("root URL is required")
	}

	root, err := url.Parse(strings.TrimRight(cfg.RootURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}
	if root.Scheme != "http" && root.Scheme != "https" {
		return nil, fmt.Errorf("invalid root URL scheme %q", root.Scheme)
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "ciadmin"
	}

	return &Client{
		root:        root,
		clientID:    cfg.ClientID,
		accessToken: cfg.AccessToken,
		timeout:     timeout,
		http:        httpClient,
		userAgent:   userAgent,
		logger:      cfg.Logger.With().Str("component", "client").Logger(),
	}, nil
}

// RootURL returns the configured root URL.
func (c *Client) RootURL() string {
	return c.root.String()
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when out is non-nil. Failures are returned as classified
// *engine.EngineError values.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return engine.NewPermanentError("failed to encode request", err).
				WithOperation(method + " " + path).
				WithCode(engine.ErrCodeValidation)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.root.String()+path, reader)
	if err != nil {
		return engine.NewPermanentError("failed to build request", err).
			WithOperation(method + " " + path)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("X-Client-Id", c.clientID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyResponse(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return engine.NewPermanentError("failed to decode response", err).
			WithOperation(method + " " + path)
	}
	return nil
}

func classifyTransportError(method, path string, err error) error {
	op := method + " " + path
	if errors.Is(err, context.DeadlineExceeded) {
		return engine.NewTransientError("request timed out", err).
			WithOperation(op).
			WithCode(engine.ErrCodeTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return engine.NewPermanentError("request cancelled", err).WithOperation(op)
	}
	return engine.NewTransientError("request failed", err).WithOperation(op)
}

func classifyResponse(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	message := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		message = body.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	cause := fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, message)

	var e *engine.EngineError
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e = engine.NewThrottledError("rate limited", cause).WithCode(engine.ErrCodeRateLimited)
	case resp.StatusCode == http.StatusConflict:
		e = engine.NewConflictError("conflict", cause).WithCode(engine.ErrCodeConflict)
	case resp.StatusCode == http.StatusNotFound:
		e = engine.NewPermanentError("not found", cause).WithCode(engine.ErrCodeNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e = engine.NewPermanentError("permission denied", cause).WithCode(engine.ErrCodePermissionDenied)
	case resp.StatusCode == http.StatusBadRequest:
		e = engine.NewPermanentError("request rejected", cause).WithCode(engine.ErrCodeValidation)
	case resp.StatusCode >= 500:
		e = engine.NewTransientError("server error", cause).WithCode(engine.ErrCodeInternal)
	default:
		e = engine.NewPermanentError("unexpected status", cause)
	}

	e = e.WithOperation(method+" "+path).WithDetail("status", resp.StatusCode)
	if body.Code != "" {
		e = e.WithDetail("remote_code", body.Code)
	}
	return e
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
