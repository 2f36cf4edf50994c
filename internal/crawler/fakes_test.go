package crawler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// fakeFetcher serves canned bodies keyed by URL; anything else is a 404.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	f := &fakeFetcher{bodies: make(map[string][]byte, len(bodies))}
	for k, v := range bodies {
		f.bodies[k] = []byte(v)
	}
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := ctx.Err(); err != nil {
		return FetchResponse{}, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return FetchResponse{}, fmt.Errorf("%w: %d", ErrStatus, http.StatusNotFound)
	}
	return FetchResponse{URL: url, StatusCode: http.StatusOK, Body: body}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeStore records saves in memory.
type fakeStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string][]byte)}
}

func (s *fakeStore) Save(_ context.Context, dir, name string, body []byte) (string, int64, error) {
	if s.err != nil {
		return "", 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := dir + "/" + name
	s.saved[path] = append([]byte(nil), body...)
	return path, int64(len(body)), nil
}
