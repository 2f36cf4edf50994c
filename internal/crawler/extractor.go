package crawler

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/JakeFAU/miles-crawler/internal/metrics"
)

// Extractor fetches a page and scans it for resource references.
type Extractor struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewExtractor constructs an Extractor around fetcher.
func NewExtractor(fetcher Fetcher, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, logger: logger}
}

// Extract yields the absolute locator of every reference on base that matches
// a rule of the requested types. The page is fetched when iteration begins;
// ranging over the sequence again fetches and scans it again. A failed fetch
// yields nothing. Duplicate references are yielded as many times as they
// match.
func (e *Extractor) Extract(ctx context.Context, base string, types []ResourceType) iter.Seq[string] {
	return func(yield func(string) bool) {
		resp, err := e.fetcher.Fetch(ctx, base)
		if err != nil {
			metrics.ObservePageFetch("failed")
			e.logger.Warn("page fetch failed", zap.String("url", base), zap.Error(err))
			return
		}
		metrics.ObservePageFetch("ok")
		body := string(resp.Body)

		for _, t := range types {
			rules := Rules(t)
			if len(rules) == 0 {
				e.logger.Debug("no rules for type", zap.String("type", string(t)))
				continue
			}
			for _, rule := range rules {
				for _, match := range rule.FindAllStringSubmatch(body, -1) {
					metrics.ObserveReference(string(t))
					if !yield(Resolve(base, match[1])) {
						return
					}
				}
			}
		}
	}
}
