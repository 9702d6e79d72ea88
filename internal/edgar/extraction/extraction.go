// Package extraction talks to the external text-extraction service: given
// a filing document's raw bytes, it returns the rendered text Tika (or a
// compatible endpoint) extracted from it.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// response is the shape returned by the extraction endpoint. An empty or
// missing Content field means "no text" rather than an error.
type response struct {
	Content string `json:"content"`
}

// Client POSTs raw document bytes to an external extraction endpoint and
// returns the extracted text.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates an extraction Client targeting baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract POSTs raw to the extraction endpoint with contentType and returns
// the extracted text. An empty or missing content field is not an error.
func (c *Client) Extract(ctx context.Context, raw []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return "", eris.Wrap(err, "extraction: create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "extraction: execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "extraction: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("extraction: unexpected status %d: %s", resp.StatusCode, string(data))
	}

	var out response
	if len(data) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", eris.Wrap(err, "extraction: decode response")
	}
	return out.Content, nil
}
