package refsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTP fetches the dataset with a GET request.
type HTTP struct {
	URL    string
	Client *http.Client
}

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.Client = c
		}
	}
}

// WithTimeout sets the client timeout for one fetch.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.Client = &http.Client{Timeout: d}
		}
	}
}

// NewHTTP returns an HTTP source for url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{URL: url, Client: &http.Client{Timeout: defaultHTTPTimeout}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open issues the request and returns the body of a 200 response.
func (h *HTTP) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %d", ErrUnexpectedStatus, h.URL, resp.StatusCode)
	}
	return resp.Body, nil
}

func (h *HTTP) String() string { return h.URL }
