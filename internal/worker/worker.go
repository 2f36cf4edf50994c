// Package worker implements the retrieval loop run by each pool member.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/miles-crawler/internal/crawler"
	"github.com/JakeFAU/miles-crawler/internal/metrics"
)

// Retriever downloads one locator into a directory.
type Retriever interface {
	Retrieve(ctx context.Context, locator, destinationDir string) crawler.Outcome
}

// Config controls Worker behavior.
type Config struct {
	Destination string
}

// Worker consumes queue items and emits one outcome per item.
type Worker struct {
	queue     crawler.Queue
	retriever Retriever
	limiter   crawler.Limiter
	results   chan<- crawler.Outcome
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. limiter may be nil.
func New(
	queue crawler.Queue,
	retriever Retriever,
	limiter crawler.Limiter,
	results chan<- crawler.Outcome,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		retriever: retriever,
		limiter:   limiter,
		results:   results,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the queue is closed and drained or
// the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued locator", zap.Int("seq", item.Seq), zap.String("url", item.Locator))
		w.results <- w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item crawler.QueueItem) crawler.Outcome {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, item.Locator); err != nil {
			w.logger.Warn("rate limit wait aborted", zap.String("url", item.Locator), zap.Error(err))
			return crawler.Failed(item.Locator, fmt.Errorf("rate limit: %w", err))
		}
	}

	outcome := w.retriever.Retrieve(ctx, item.Locator, w.cfg.Destination)
	if outcome.OK() {
		w.logger.Debug("resource saved",
			zap.Int("seq", item.Seq),
			zap.String("url", item.Locator),
			zap.String("path", outcome.Path),
			zap.Int64("bytes", outcome.Bytes),
			zap.String("sha256", outcome.Digest),
		)
	} else {
		w.logger.Warn("resource failed",
			zap.Int("seq", item.Seq),
			zap.String("url", item.Locator),
			zap.Error(outcome.Err),
		)
	}
	return outcome
}
