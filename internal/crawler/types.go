package crawler

import (
	"errors"
	"net/http"
	"time"
)

// Sentinel errors surfaced inside Failed outcomes.
var (
	// ErrStatus marks a response whose status code is outside 2xx.
	ErrStatus = errors.New("unexpected status code")
	// ErrEmptyName is returned when a locator has no final path segment.
	ErrEmptyName = errors.New("locator has no file name")
	// ErrInvalidName is returned for names that would escape the destination.
	ErrInvalidName = errors.New("invalid file name")
	// ErrQueueClosed is returned by a drained, closed queue.
	ErrQueueClosed = errors.New("queue closed")
)

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Outcome is the per-locator result of a retrieval attempt. A nil Err means the
// resource was saved to Path and Bytes holds its on-disk size.
type Outcome struct {
	Locator string
	Path    string
	Bytes   int64
	// Digest is the hex SHA-256 of the saved body when a Hasher is configured.
	Digest string
	Err    error
}

// Saved builds a successful outcome.
func Saved(locator, path string, size int64) Outcome {
	return Outcome{Locator: locator, Path: path, Bytes: size}
}

// Failed builds a failed outcome.
func Failed(locator string, err error) Outcome {
	return Outcome{Locator: locator, Err: err}
}

// OK reports whether the outcome is a saved file.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Status returns the metrics label for the outcome.
func (o Outcome) Status() string {
	if o.OK() {
		return "saved"
	}
	return "failed"
}

// QueueItem wraps a locator awaiting retrieval.
type QueueItem struct {
	Locator string
	Seq     int
}
