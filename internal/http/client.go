package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRateLimited matches a StatusError carrying HTTP 429.
var ErrRateLimited = errors.New("http: rate limited")

// TransportError reports a failure before a usable response was obtained,
// or while reading the response body.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a response whose status is outside [200, 300).
//
// Use errors.Is(err, ErrRateLimited) to detect HTTP 429.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s: %s", e.StatusCode, e.URL, e.Status)
}

// Is makes a 429 StatusError match ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds a whole request including reading the body.
	// Default: 60s
	Timeout time.Duration

	// UserAgent is sent with every request.
	// Default: "msch-harvester"
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:   60 * time.Second,
		UserAgent: "msch-harvester",
	}
}

// Client performs the single GET transfer the scheduler needs.
//
// Client never retries on its own; retry and rate-limit handling belong to
// the caller.
//
// Example usage:
//
//	client := NewClient(DefaultOptions())
//	body, err := client.Fetch(ctx, "https://cdn.example.com/attachments/1/drill.msch")
//	switch {
//	case errors.Is(err, ErrRateLimited):
//	    // back off
//	case err != nil:
//	    // transport or status failure
//	}
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		userAgent: opts.UserAgent,
	}
}

// Fetch performs a GET request and returns the full response body.
//
// Returns:
//   - *TransportError if the request could not be sent, no response arrived,
//     or the body could not be read
//   - *StatusError if the status is outside [200, 300)
//
// A malformed URL is reported as a TransportError as well, since no
// response can ever be obtained for it.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	return body, nil
}
