package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Transport failures
// and non-2xx statuses are both reported through the error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Store persists a retrieved body under dir/name and returns the final path
// and the size of the file on disk.
type Store interface {
	Save(ctx context.Context, dir, name string, body []byte) (string, int64, error)
}

// Hasher computes a content digest of a retrieved body.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Limiter throttles retrievals per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Queue provides enqueue/dequeue semantics for pending locators.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}
