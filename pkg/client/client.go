// Package client is a typed Go client for the MedSimplify HTTP API.
//
// Error responses are decoded back into *errors.AppError, so callers can
// branch with errors.IsCode exactly as server-side code does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

const Version = "0.1.0"

// DefaultBaseURL is used when NewClient gets an empty base URL.
const DefaultBaseURL = "http://localhost:8080"

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client calls the MedSimplify HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid base URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.InvalidParam("base URL scheme must be http or https").WithDetail(baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    fmt.Sprintf("medsimplify-go-client/%s", Version),
		logger:       noopLogger{},
		retryMax:     2,
		retryWaitMin: 250 * time.Millisecond,
		retryWaitMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// request is one logical call. body is kept as bytes so retries can resend it.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
}

// response is a completed exchange with a non-error status or a status the
// caller asked to inspect.
type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, r request, result interface{}) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if result != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, result); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "decode response")
		}
	}
	return nil
}

// send performs r with retries on transport errors, 5xx and 429. The final
// error status is returned as an *errors.AppError carrying the server's code.
func (c *Client) send(ctx context.Context, r request) (*response, error) {
	if !strings.HasPrefix(r.path, "/") {
		r.path = "/" + r.path
	}
	fullURL := c.baseURL + r.path

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debugf("retry attempt %d after %v", attempt, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var bodyReader io.Reader
		if r.body != nil {
			bodyReader = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, fullURL, bodyReader)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "build request")
		}

		requestID := uuid.NewString()
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Errorf("request failed: %v", err)
			lastErr = errors.Wrap(err, errors.ErrCodeServiceUnavailable, "request failed").WithDetail(fullURL)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeExternalService, "read response body")
		}
		c.logger.Debugf("%s %s %d (%v)", r.method, r.path, resp.StatusCode, time.Since(start))

		if resp.StatusCode < 400 {
			return &response{status: resp.StatusCode, body: respBody}, nil
		}

		lastErr = decodeError(resp.StatusCode, respBody, requestID)
		if !shouldRetry(resp.StatusCode) || attempt == c.retryMax {
			return &response{status: resp.StatusCode, body: respBody}, lastErr
		}
		if wait := retryAfter(resp); wait > 0 {
			c.logger.Infof("rate limited, retrying after %v", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// decodeError rebuilds the server's AppError from an error body. Bodies that
// are not error envelopes keep the raw text as detail.
func decodeError(status int, body []byte, requestID string) *errors.AppError {
	var env lab.ErrorBody
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		appErr := errors.New(errors.ErrorCode(env.Error.Code), env.Error.Message)
		if env.Error.Detail != "" {
			appErr = appErr.WithDetail(env.Error.Detail)
		}
		return appErr
	}
	return errors.Newf(errors.ErrCodeExternalService, "unexpected HTTP %d", status).
		WithDetailf("request_id=%s body=%q", requestID, truncate(string(body), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}
	if backoff < 4 {
		return backoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
	return backoff + jitter
}
