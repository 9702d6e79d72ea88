package client

import (
	"bytes"
	"fmt"
)

// SentinelKind classifies an EDGAR upstream-policy error page.
type SentinelKind int

const (
	// SentinelRateLimited means EDGAR rejected the request under its rate policy.
	SentinelRateLimited SentinelKind = iota
	// SentinelNotFound means EDGAR served its own 404 error page.
	SentinelNotFound
	// SentinelAccessDenied means the backend returned an access-denied body
	// (most often surfaced when the path actually resolves to a storage
	// backend proxy rather than EDGAR itself).
	SentinelAccessDenied
)

func (k SentinelKind) String() string {
	switch k {
	case SentinelRateLimited:
		return "rate_limited"
	case SentinelNotFound:
		return "not_found"
	case SentinelAccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// FetchError is raised when a fetched body matches one of EDGAR's known
// sentinel fragments. It is an upstream-policy error (§7): never retried
// automatically by the client, recorded by callers, and repaired
// retroactively by the hygiene sweep.
type FetchError struct {
	Kind       SentinelKind
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("edgar client: %s sentinel in response from %s (status %d)", e.Kind, e.URL, e.StatusCode)
}

const (
	rateLimitSentinel    = "SEC.gov | Request Rate Threshold Exceeded"
	notFoundSentinel     = "SEC.gov | File Not Found Error Alert (404)"
	accessDeniedSentinel = "<Error><Code>AccessDenied</Code>"
)

// RateLimitedObjectSize is the exact object size (in bytes) the reference
// implementation uses as a fast-path signal that a stored artifact is a
// captured rate-limit error page rather than real filing content. Brittle
// by construction (see SPEC_FULL.md §9 open questions); the substring check
// below is the authoritative fallback.
const RateLimitedObjectSize = 2139

// detectSentinel inspects a fetched body for EDGAR's known error fragments.
func detectSentinel(body []byte) *FetchError {
	switch {
	case bytes.Contains(body, []byte(rateLimitSentinel)):
		return &FetchError{Kind: SentinelRateLimited}
	case bytes.Contains(body, []byte(notFoundSentinel)):
		return &FetchError{Kind: SentinelNotFound}
	case bytes.Contains(body, []byte(accessDeniedSentinel)):
		return &FetchError{Kind: SentinelAccessDenied}
	default:
		return nil
	}
}

// IsRateLimitedBody reports whether body looks like a captured rate-limit
// error page, using the object-size fast path with the substring check as
// fallback. Used by the hygiene sweep (§4.7), not by the live fetch path.
func IsRateLimitedBody(body []byte) bool {
	if len(body) == RateLimitedObjectSize {
		return true
	}
	return bytes.Contains(body, []byte(rateLimitSentinel))
}

// IsAccessDeniedBody reports whether body is a captured access-denied page.
func IsAccessDeniedBody(body []byte) bool {
	return bytes.Contains(body, []byte(accessDeniedSentinel))
}
