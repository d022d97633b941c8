// Package api is the client for the storefront backend REST API. It
// attaches session credentials, recovers from rejected credentials
// through an Authenticator, retries rate-limited calls and normalizes
// every failure to *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/model"
)

// Authenticator supplies credentials for outgoing requests and recovers
// from a 401. session.Manager implements it.
type Authenticator interface {
	// AttachCredentials sets the request's bearer header and returns the
	// token it attached, or "".
	AttachCredentials(req *http.Request) string

	// HandleAuthFailure is called once per request that was answered 401
	// while carrying rejected. It returns the token to retry with.
	HandleAuthFailure(ctx context.Context, rejected string) (string, error)
}

const maxBackoff = 30 * time.Second

// Client is a thin HTTP client for the storefront REST API. It handles
// Bearer authentication, JSON marshaling, and automatic retry with
// exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	auth       Authenticator
	signals    *events.Signals
	logger     *zap.Logger
}

// NewClient creates a client for cfg.BaseURL. Each attempt is bounded by
// cfg.RequestTimeout().
func NewClient(cfg model.APIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		signals:    events.NewSignals(),
		logger:     logger,
	}
}

// SetAuthenticator installs the session used for credentials. It must be
// called before the client is shared between goroutines.
func (c *Client) SetAuthenticator(a Authenticator) { c.auth = a }

// SetSignals sets the bus cart mutations are announced on.
func (c *Client) SetSignals(s *events.Signals) { c.signals = s }

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// request describes a single logical call.
type request struct {
	method string
	path   string
	body   any
	result any
	// public calls never carry or recover credentials.
	public bool
}

// Get performs an authenticated GET and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, result: result})
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body, result: result})
}

// Put performs an authenticated PUT with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body, result: result})
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path})
}

// do sends r, and on a 401 hands the rejected token to the
// Authenticator and retries exactly once with the token it returns.
func (c *Client) do(ctx context.Context, r request) error {
	op := r.method + " " + r.path

	var payload []byte
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	useAuth := !r.public && c.auth != nil

	status, respBody, sent, err := c.send(ctx, r, payload, useAuth, "")
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && useAuth {
		c.logger.Debug("credentials rejected, recovering", zap.String("op", op))
		token, authErr := c.auth.HandleAuthFailure(ctx, sent)
		if authErr != nil {
			if ctx.Err() != nil {
				return transportError(op, authErr)
			}
			return &Error{
				Kind:    KindSessionExpired,
				Status:  http.StatusUnauthorized,
				Message: KindSessionExpired.defaultMessage(),
				Op:      op,
				Err:     authErr,
			}
		}

		status, respBody, _, err = c.send(ctx, r, payload, useAuth, token)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		apiErr := statusError(op, status, respBody)
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.Int("status", status),
			zap.Stringer("kind", apiErr.Kind),
		)
		return apiErr
	}

	// No content to parse (e.g. 204).
	if r.result == nil || status == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, r.result); err != nil {
		return &Error{
			Kind:    KindInvalid,
			Status:  status,
			Message: "The server sent an unexpected response.",
			Op:      op,
			Err:     fmt.Errorf("unmarshaling response: %w", err),
		}
	}
	return nil
}

// send performs one authenticated attempt, retrying on 429. When token is
// non-empty it is used instead of asking the Authenticator. It returns the
// token that was sent with the final attempt.
func (c *Client) send(
	ctx context.Context,
	r request,
	payload []byte,
	useAuth bool,
	token string,
) (status int, body []byte, sent string, err error) {
	op := r.method + " " + r.path
	url := c.baseURL + r.path

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		req, err := http.NewRequestWithContext(attemptCtx, r.method, url, bodyReader)
		if err != nil {
			cancel()
			return 0, nil, "", fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		sent = ""
		if useAuth {
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
				sent = token
			} else {
				sent = c.auth.AttachCredentials(req)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			cancel()
			return 0, nil, sent, transportError(op, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		if readErr != nil {
			return 0, nil, sent, transportError(op, fmt.Errorf("reading response body: %w", readErr))
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp.StatusCode, respBody, sent, nil
		}

		if attempt >= c.maxRetries {
			return 0, nil, sent, &Error{
				Kind:    KindTransient,
				Status:  http.StatusTooManyRequests,
				Message: "The server is busy. Please try again shortly.",
				Op:      op,
				Err:     fmt.Errorf("max retries (%d) exceeded", c.maxRetries),
			}
		}

		wait := retryAfterDuration(resp, attempt)
		c.logger.Debug("rate limited, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
		)

		select {
		case <-ctx.Done():
			return 0, nil, sent, transportError(op, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return min(time.Duration(seconds)*time.Second, maxBackoff)
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	return min(time.Duration(1<<uint(attempt))*time.Second, maxBackoff)
}
