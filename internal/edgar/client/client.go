// Package client implements the EDGAR HTTP fetcher: directory listing, byte
// fetching, sentinel error-page recognition, and the fixed backoff-ladder
// retry discipline EDGAR's request-rate policy requires.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	BaseURL         string
	UserAgent       string
	RequestInterval time.Duration   // polite pacing after every successful fetch
	Backoff         []time.Duration // B = [b0, ..., bk-1]; ordered failure-backoff ladder
	HTTPClient      *http.Client
}

// Client implements the EDGAR HTTP operations of the ingestion pipeline.
// It applies no token-bucket rate limiter: its only pacing is the
// inter-request sleep and the failure-backoff retry ladder.
type Client struct {
	base    *url.URL
	opts    Options
	http    *http.Client
	backoff []time.Duration
}

// New constructs a Client. BaseURL defaults to https://www.sec.gov.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.sec.gov"
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar client: parse base url %q", opts.BaseURL)
	}
	if opts.UserAgent == "" {
		return nil, eris.New("edgar client: user agent is required by SEC's fair-access policy")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	return &Client{base: base, opts: opts, http: opts.HTTPClient, backoff: backoff}, nil
}

// DefaultBackoff returns the reference failure-backoff ladder.
func DefaultBackoff() []time.Duration {
	return []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

// GetBuffer fetches path and returns its body and, if present, the parsed
// Last-Modified date. On transport-retryable exhaustion it returns
// (nil, nil, nil) — a successfully-surrendered empty result, not an error.
// Sentinel upstream-policy bodies are surfaced as a *FetchError.
func (c *Client) GetBuffer(ctx context.Context, path string) ([]byte, *time.Time, error) {
	u := c.resolve(path)
	log := zap.L().With(zap.String("component", "edgar.client"), zap.String("url", u))

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, lastModified, err := c.attempt(ctx, u)
		if err == nil {
			return body, lastModified, nil
		}

		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, nil, err
		}

		lastErr = err
		if attempt >= len(c.backoff) {
			log.Warn("edgar fetch: retry ladder exhausted, surrendering",
				zap.Int("attempts", attempt+1), zap.Error(lastErr))
			return nil, nil, nil
		}

		d := c.backoff[attempt]
		log.Debug("edgar fetch: transport error, backing off",
			zap.Int("attempt", attempt+1), zap.Duration("sleep", d), zap.Error(err))
		if !sleepCtx(ctx, d) {
			return nil, nil, ctx.Err()
		}
	}
}

func (c *Client) attempt(ctx context.Context, u string) ([]byte, *time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "edgar client: build request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, eris.Wrap(err, "edgar client: transport error")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, eris.Wrap(err, "edgar client: read body")
	}

	if fe := detectSentinel(body); fe != nil {
		fe.URL = u
		fe.StatusCode = resp.StatusCode
		return nil, nil, fe
	}

	if resp.StatusCode >= 500 {
		return nil, nil, eris.Errorf("edgar client: http %d from %s", resp.StatusCode, u)
	}

	var lastModified *time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, perr := http.ParseTime(lm); perr == nil {
			lastModified = &t
		}
	}

	// Polite pacing: sleep after every successful fetch before returning
	// control, so the next caller-issued request is naturally throttled.
	if c.opts.RequestInterval > 0 {
		if !sleepCtx(ctx, c.opts.RequestInterval) {
			return nil, nil, ctx.Err()
		}
	}

	return body, lastModified, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ListPath lists the directory entries of path, excluding the conventional
// "Parent Directory" link, as absolute paths (trailing slashes preserved).
func (c *Client) ListPath(ctx context.Context, path string) ([]string, error) {
	body, _, err := c.GetBuffer(ctx, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, eris.Errorf("edgar client: list path: no body for %s", path)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrap(err, "edgar client: parse directory listing")
	}

	var links []string
	doc.Find("#main-content a, .main-content a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "Parent Directory" {
			return
		}
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		links = append(links, c.toAbsolutePath(path, href))
	})

	return links, nil
}

func (c *Client) toAbsolutePath(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.Path
	}
	baseRef, err := url.Parse(base)
	if err != nil {
		return href
	}
	resolved := baseRef.ResolveReference(ref)
	return resolved.Path
}

// GetCikPath returns the canonical per-CIK directory prefix.
func GetCikPath(cik int64) string {
	return fmt.Sprintf("edgar/data/%d/", cik)
}

// ListIndexByMonth lists form.* index files for year/quarter, restricted to
// a single calendar month (used by the monthly daily-index variant).
func (c *Client) ListIndexByMonth(ctx context.Context, year, month int) ([]string, error) {
	quarter := (month-1)/3 + 1
	entries, err := c.ListIndexByQuarter(ctx, year, quarter)
	if err != nil {
		return nil, err
	}
	suffix := fmt.Sprintf("%02d", month)
	var filtered []string
	for _, e := range entries {
		if strings.Contains(e, suffix) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ListIndexByQuarter lists form.* index files under .../<year>/QTR<q>/.
func (c *Client) ListIndexByQuarter(ctx context.Context, year, quarter int) ([]string, error) {
	qtrPath := fmt.Sprintf("/Archives/edgar/full-index/%d/QTR%d/", year, quarter)
	entries, err := c.ListPath(ctx, qtrPath)
	if err != nil {
		return nil, err
	}
	var forms []string
	for _, e := range entries {
		base := path(e)
		if strings.HasPrefix(base, "form.") {
			forms = append(forms, e)
		}
	}
	return forms, nil
}

// ListIndexByYear lists all form.* index files across every quarter of year.
func (c *Client) ListIndexByYear(ctx context.Context, year int) ([]string, error) {
	yearPath := fmt.Sprintf("/Archives/edgar/full-index/%d/", year)
	children, err := c.ListPath(ctx, yearPath)
	if err != nil {
		return nil, err
	}

	var all []string
	for _, child := range children {
		base := strings.Trim(path(child), "/")
		if !strings.HasPrefix(base, "QTR") {
			continue
		}
		q, convErr := strconv.Atoi(strings.TrimPrefix(base, "QTR"))
		if convErr != nil {
			continue
		}
		forms, err := c.ListIndexByQuarter(ctx, year, q)
		if err != nil {
			return nil, err
		}
		all = append(all, forms...)
	}
	return all, nil
}

// ListIndex walks every year directory in [minYear, maxYear] under the
// full-index root and yields every form.* index file found.
func (c *Client) ListIndex(ctx context.Context, minYear, maxYear int) ([]string, error) {
	root, err := c.ListPath(ctx, "/Archives/edgar/full-index/")
	if err != nil {
		return nil, err
	}

	var all []string
	for _, child := range root {
		base := strings.Trim(path(child), "/")
		y, convErr := strconv.Atoi(base)
		if convErr != nil || y < minYear || y > maxYear {
			continue
		}
		forms, err := c.ListIndexByYear(ctx, y)
		if err != nil {
			return nil, err
		}
		all = append(all, forms...)
	}
	return all, nil
}

// path returns the final "/"-delimited segment of p, trailing slash preserved.
func path(p string) string {
	trimmed := strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return p
	}
	tail := trimmed[idx+1:]
	if strings.HasSuffix(p, "/") {
		return tail + "/"
	}
	return tail
}
