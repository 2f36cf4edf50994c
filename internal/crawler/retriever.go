package crawler

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/miles-crawler/internal/metrics"
)

// Retriever downloads a single locator into a destination directory.
type Retriever struct {
	fetcher  Fetcher
	store    Store
	hasher   Hasher
	announce io.Writer
	logger   *zap.Logger
}

// RetrieverOption customizes a Retriever.
type RetrieverOption func(*Retriever)

// WithHasher records a digest of every saved body in Outcome.Digest.
func WithHasher(h Hasher) RetrieverOption {
	return func(r *Retriever) {
		r.hasher = h
	}
}

// NewRetriever constructs a Retriever. Announcements ("Downloading URL...")
// are written to announce; a nil writer discards them.
func NewRetriever(
	fetcher Fetcher,
	store Store,
	announce io.Writer,
	logger *zap.Logger,
	opts ...RetrieverOption,
) *Retriever {
	if announce == nil {
		announce = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{
		fetcher:  fetcher,
		store:    store,
		announce: announce,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve fetches locator and saves it as destinationDir/<final path segment>.
// It never returns an error: every failure is folded into a Failed outcome.
// An existing file with the same name is overwritten, and two locators that
// share a final segment race on the same file with the last writer winning.
func (r *Retriever) Retrieve(ctx context.Context, locator, destinationDir string) Outcome {
	// Announcement is part of the program output, independent of log level.
	_, _ = fmt.Fprintf(r.announce, "Downloading %s...\n", locator)

	start := time.Now()
	resp, err := r.fetcher.Fetch(ctx, locator)
	if err != nil {
		r.logger.Debug("retrieval fetch failed", zap.String("url", locator), zap.Error(err))
		return r.observe(Failed(locator, fmt.Errorf("fetch %s: %w", locator, err)), start)
	}

	name := FileName(locator)
	if name == "" {
		return r.observe(Failed(locator, ErrEmptyName), start)
	}

	path, size, err := r.store.Save(ctx, destinationDir, name, resp.Body)
	if err != nil {
		r.logger.Debug("retrieval save failed", zap.String("url", locator), zap.Error(err))
		return r.observe(Failed(locator, fmt.Errorf("save %s: %w", name, err)), start)
	}
	outcome := Saved(locator, path, size)
	if r.hasher != nil {
		// A digest failure does not undo a completed save.
		if digest, err := r.hasher.Hash(resp.Body); err == nil {
			outcome.Digest = digest
		} else {
			r.logger.Warn("digest failed", zap.String("path", path), zap.Error(err))
		}
	}
	return r.observe(outcome, start)
}

func (r *Retriever) observe(outcome Outcome, start time.Time) Outcome {
	metrics.ObserveRetrieval(outcome.Locator, outcome.Status(), outcome.Bytes, time.Since(start))
	return outcome
}
