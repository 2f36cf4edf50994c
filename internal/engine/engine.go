// Package engine runs one crawl: it streams references from the extractor into
// a bounded queue, retrieves them with a fixed worker pool and aggregates the
// outcomes into a report.
package engine

import (
	"context"
	"errors"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/JakeFAU/miles-crawler/internal/clock/system"
	"github.com/JakeFAU/miles-crawler/internal/crawler"
	"github.com/JakeFAU/miles-crawler/internal/dispatcher"
	"github.com/JakeFAU/miles-crawler/internal/metrics"
	"github.com/JakeFAU/miles-crawler/internal/queue/memory"
	"github.com/JakeFAU/miles-crawler/internal/worker"
)

// Extractor produces absolute locators for the references on a page.
type Extractor interface {
	Extract(ctx context.Context, base string, types []crawler.ResourceType) iter.Seq[string]
}

// Dependencies bundles the collaborators of an Engine. Limiter and IDs are
// optional; a nil Clock uses the wall clock.
type Dependencies struct {
	Extractor Extractor
	Retriever worker.Retriever
	Limiter   crawler.Limiter
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
	// Report receives the four summary lines; nil discards them.
	Report io.Writer
	Logger *zap.Logger
}

// Engine orchestrates crawl runs. It holds no per-run state, so Crawl may be
// called repeatedly.
type Engine struct {
	deps   Dependencies
	logger *zap.Logger
}

// New constructs an Engine.
func New(deps Dependencies) *Engine {
	if deps.Report == nil {
		deps.Report = io.Discard
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{deps: deps, logger: logger}
}

// Crawl harvests every reference of the requested types found on base into
// destinationDir using workerCount concurrent retrievals, prints the summary
// and returns it. An empty types list means every recognized type; a
// workerCount below one is treated as one. Individual failures never abort
// the run; cancelling ctx stops it early and reports what completed.
func (e *Engine) Crawl(
	ctx context.Context,
	base string,
	types []crawler.ResourceType,
	destinationDir string,
	workerCount int,
) crawler.Report {
	if len(types) == 0 {
		types = crawler.AllTypes
	}
	if workerCount < 1 {
		workerCount = 1
	}

	logger := e.logger.With(zap.String("run_id", e.runID()), zap.String("url", base))
	logger.Info("crawl started",
		zap.Int("workers", workerCount),
		zap.Strings("types", typeNames(types)),
		zap.String("destination", destinationDir),
	)

	start := e.deps.Clock.Now()

	queue := memory.NewQueue(workerCount)
	results := make(chan crawler.Outcome, workerCount)

	workers := make([]*worker.Worker, 0, workerCount)
	for i := range workerCount {
		workers = append(workers, worker.New(
			queue,
			e.deps.Retriever,
			e.deps.Limiter,
			results,
			worker.Config{Destination: destinationDir},
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	pool := dispatcher.New(queue, workers)
	logger.Debug("worker pool ready", zap.Int("size", pool.Size()))

	go e.produce(ctx, pool, queue, base, types, logger)

	go func() {
		pool.Run(ctx)
		close(results)
	}()

	var outcomes []crawler.Outcome
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}

	report := crawler.NewReport(outcomes, e.deps.Clock.Now().Sub(start))
	metrics.ObserveCrawl(report.Bandwidth)
	logger.Info("crawl finished",
		zap.Int("attempted", len(outcomes)),
		zap.Int("files", report.Files),
		zap.Int64("bytes", report.Bytes),
		zap.Duration("elapsed", report.Elapsed),
		zap.Float64("bandwidth_mbps", report.Bandwidth),
		zap.Bool("canceled", ctx.Err() != nil),
	)

	if _, err := report.WriteTo(e.deps.Report); err != nil {
		logger.Error("report write failed", zap.Error(err))
	}
	return report
}

// produce feeds the queue from the extractor and closes it when the page is
// exhausted or ctx is done.
func (e *Engine) produce(
	ctx context.Context,
	pool *dispatcher.Dispatcher,
	queue *memory.Queue,
	base string,
	types []crawler.ResourceType,
	logger *zap.Logger,
) {
	defer queue.Close()

	seq := 0
	for locator := range e.deps.Extractor.Extract(ctx, base, types) {
		if err := pool.Enqueue(ctx, crawler.QueueItem{Locator: locator, Seq: seq}); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Error("enqueue failed", zap.String("locator", locator), zap.Error(err))
			}
			return
		}
		seq++
	}
	logger.Debug("extraction complete", zap.Int("references", seq))
}

func (e *Engine) runID() string {
	if e.deps.IDs == nil {
		return ""
	}
	id, err := e.deps.IDs.NewID()
	if err != nil {
		e.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func typeNames(types []crawler.ResourceType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
