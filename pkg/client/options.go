package client

import (
	"net/http"
	"time"
)

// Option adjusts a Client during NewClient. Zero or invalid values leave the
// default in place.
type Option func(*Client)

// WithHTTPClient replaces the transport. A later WithTimeout copies it
// instead of mutating the caller's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		c.httpClient = hc
	}
}

// WithTimeout bounds each attempt, not the whole retry loop.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l == nil {
			return
		}
		c.logger = l
	}
}

// WithRetryMax caps retries after the first attempt. Zero disables retrying.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n < 0 {
			return
		}
		c.retryMax = n
	}
}

// WithRetryWait sets the backoff floor and ceiling. The ceiling only applies
// when it is not below the floor.
func WithRetryWait(floor, ceiling time.Duration) Option {
	return func(c *Client) {
		if floor <= 0 {
			return
		}
		c.retryWaitMin = floor
		if ceiling >= floor {
			c.retryWaitMax = ceiling
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua == "" {
			return
		}
		c.userAgent = ua
	}
}
