// Package fetch retrieves marketplace posting pages and reduces them to
// plain text. The API carries most posting data; this package fills in
// descriptions the API truncates or omits.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single page request.
const DefaultTimeout = 30 * time.Second

const defaultUserAgent = "Mozilla/5.0 (compatible; BidPilot/1.0)"

// Page is a fetched posting page. Text is filled in by the PageFetcher
// after extraction; a bare Client leaves it empty.
type Page struct {
	URL         string
	HTML        string
	Text        string
	ContentType string
	StatusCode  int
}

// PageError reports a failed page retrieval. Status is set when the
// server replied with a non-200 code.
type PageError struct {
	URL    string
	Status int
	Err    error
}

func (e *PageError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Client fetches pages over plain HTTP.
type Client struct {
	http      *http.Client
	userAgent string
	headers   map[string]string
}

// NewClient creates a Client with the default timeout and user agent.
func NewClient() *Client {
	return &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: defaultUserAgent,
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.http.Timeout = d
	return c
}

// WithUserAgent overrides the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// WithHeader adds a header sent on every request.
func (c *Client) WithHeader(key, value string) *Client {
	if c.headers == nil {
		c.headers = make(map[string]string)
	}
	c.headers[key] = value
	return c
}

func (c *Client) timeout() time.Duration { return c.http.Timeout }

// Get retrieves a page. A non-200 reply returns both the page and a
// *PageError, so callers can still inspect the body of error pages.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &PageError{URL: rawURL, Err: fmt.Errorf("invalid URL")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &PageError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &PageError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PageError{URL: rawURL, Err: err}
	}

	page := &Page{
		URL:         rawURL,
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return page, &PageError{URL: rawURL, Status: resp.StatusCode}
	}
	return page, nil
}
