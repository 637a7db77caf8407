package domain

import (
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies a failed fetch. The empty kind means success.
type ErrorKind string

// Error kinds.
const (
	ErrorNone             ErrorKind = ""
	ErrorRequiresKey      ErrorKind = "requires_key"
	ErrorMissingServerKey ErrorKind = "missing_server_key"
	ErrorRequiresConfig   ErrorKind = "requires_config"
	ErrorInvalidRSS       ErrorKind = "invalid_rss"
	ErrorFetchFailed      ErrorKind = "fetch_failed"
	ErrorUnknownFeed      ErrorKind = "unknown_feed"

	httpErrorPrefix = "http_"
)

// HTTPErrorKind returns the http_<status> kind.
func HTTPErrorKind(status int) ErrorKind {
	return ErrorKind(httpErrorPrefix + strconv.Itoa(status))
}

// IsHTTP reports whether k is an http_<status> kind.
func (k ErrorKind) IsHTTP() bool {
	return strings.HasPrefix(string(k), httpErrorPrefix)
}

// Candidate labels recorded in FetchResult.FallbackUsed.
const (
	CandidateDirect   = "direct"
	CandidateInsecure = "insecure"
	candidateProxy    = "proxy:"
)

// ProxyCandidate returns the label of a proxy candidate.
func ProxyCandidate(name string) string {
	return candidateProxy + name
}

// FetchResult is produced exactly once per feed per fetch attempt.
type FetchResult struct {
	FeedID       string    `json:"feedId"`
	Query        string    `json:"query,omitempty"`
	FetchedAt    time.Time `json:"fetchedAt"`
	HTTPStatus   int       `json:"httpStatus"`
	ContentType  string    `json:"contentType,omitempty"`
	RawBody      []byte    `json:"-"`
	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	FallbackUsed string    `json:"fallbackUsed,omitempty"`
	Attempts     int       `json:"attempts"`
}

// OK reports whether the fetch produced a usable body.
func (r FetchResult) OK() bool {
	return r.ErrorKind == ErrorNone
}

// Age returns how old the result is at now.
func (r FetchResult) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// Stale reports whether the result has outlived ttl.
func (r FetchResult) Stale(ttl time.Duration, now time.Time) bool {
	return IsStale(ttl, r.FetchedAt, now)
}

const (
	staleBufferDivisor = 5
	staleBufferMin     = 5 * time.Minute
	staleBufferMax     = 15 * time.Minute
)

// IsStale reports whether a fetch at fetchedAt is no longer fresh for ttl.
func IsStale(ttl time.Duration, fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) >= ttl
}

// StaleRetryBuffer is the grace added to ttl before a stale retry is due:
// 20% of ttl clamped to [5m, 15m].
func StaleRetryBuffer(ttl time.Duration) time.Duration {
	buffer := ttl / staleBufferDivisor

	switch {
	case buffer < staleBufferMin:
		return staleBufferMin
	case buffer > staleBufferMax:
		return staleBufferMax
	default:
		return buffer
	}
}

// NeedsStaleRetry reports whether a successful fetch is old enough to be
// picked up by the stale retry pass.
func NeedsStaleRetry(ttl time.Duration, fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) > ttl+StaleRetryBuffer(ttl)
}
