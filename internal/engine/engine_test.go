package engine

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/miles-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/miles-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/miles-crawler/internal/storage/local"
	memstore "github.com/JakeFAU/miles-crawler/internal/storage/memory"
)

const (
	sizeOstep   = 53696
	sizeLecture = 20480
	sizeDoc     = 4096
)

// newSite serves a page referencing two JPGs and one PDF, each tag on its own
// line, plus one dangling JPG reference when withMissing is set.
func newSite(t *testing.T, withMissing bool) *httptest.Server {
	t.Helper()

	page := []string{
		"<html><body>",
		`<img src="img/ostep.jpg">`,
		`<a href="/files/lecture.jpg">lecture</a>`,
		`<a href="docs/syllabus.pdf">syllabus</a>`,
	}
	if withMissing {
		page = append(page, `<img src="img/missing.jpg">`)
	}
	page = append(page, "</body></html>")

	mux := http.NewServeMux()
	mux.HandleFunc("/course/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Join(page, "\n")))
	})
	serve := func(size int) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(bytes.Repeat([]byte{0xAB}, size))
		}
	}
	mux.HandleFunc("/course/img/ostep.jpg", serve(sizeOstep))
	mux.HandleFunc("/files/lecture.jpg", serve(sizeLecture))
	mux.HandleFunc("/course/docs/syllabus.pdf", serve(sizeDoc))
	mux.HandleFunc("/course/img/missing.jpg", http.NotFound)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	engine   *Engine
	out      *bytes.Buffer
	announce *SyncWriter
}

func newHarness(t *testing.T, clock crawler.Clock, limiter crawler.Limiter) harness {
	t.Helper()

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	announce := NewSyncWriter(&bytes.Buffer{})
	out := &bytes.Buffer{}
	eng := New(Dependencies{
		Extractor: crawler.NewExtractor(fetcher, zap.NewNop()),
		Retriever: crawler.NewRetriever(fetcher, local.New(), announce, zap.NewNop()),
		Limiter:   limiter,
		Clock:     clock,
		IDs:       staticIDs("run-1"),
		Report:    out,
		Logger:    zap.NewNop(),
	})
	return harness{engine: eng, out: out, announce: announce}
}

func TestCrawlEndToEnd(t *testing.T) {
	t.Parallel()

	srv := newSite(t, false)
	dest := t.TempDir()
	h := newHarness(t, nil, nil)

	report := h.engine.Crawl(context.Background(), srv.URL+"/course/", []crawler.ResourceType{crawler.TypeJPG}, dest, 2)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, int64(sizeOstep+sizeLecture), report.Bytes)
	assert.InDelta(t, float64(sizeOstep+sizeLecture)/crawler.Megabyte, report.Megabytes(), 1e-9)

	for name, size := range map[string]int64{"ostep.jpg": sizeOstep, "lecture.jpg": sizeLecture} {
		info, err := os.Stat(filepath.Join(dest, name))
		require.NoError(t, err, name)
		assert.Equal(t, size, info.Size(), name)
	}
	_, err := os.Stat(filepath.Join(dest, "syllabus.pdf"))
	assert.True(t, os.IsNotExist(err), "pdf was not requested")

	out := h.out.String()
	assert.Contains(t, out, "Files Downloaded: 2\n")
	assert.Contains(t, out, "Bytes Downloaded: 0.07 MB\n")
	assert.Contains(t, out, "Elapsed Time:     ")
	assert.Contains(t, out, "Bandwidth:        ")

	announced := h.announce.String()
	assert.Contains(t, announced, "Downloading "+srv.URL+"/course/img/ostep.jpg...\n")
	assert.Contains(t, announced, "Downloading "+srv.URL+"/files/lecture.jpg...\n")
}

func TestCrawlIntoMemoryStore(t *testing.T) {
	t.Parallel()

	srv := newSite(t, false)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	store := memstore.NewStore()
	eng := New(Dependencies{
		Extractor: crawler.NewExtractor(fetcher, zap.NewNop()),
		Retriever: crawler.NewRetriever(fetcher, store, nil, zap.NewNop()),
	})

	report := eng.Crawl(context.Background(), srv.URL+"/course/", []crawler.ResourceType{crawler.TypePDF}, "mem", 1)

	assert.Equal(t, 1, report.Files)
	body, ok := store.Get("mem", "syllabus.pdf")
	require.True(t, ok)
	assert.Len(t, body, sizeDoc)
}

func TestCrawlEmptyTypesMeansAll(t *testing.T) {
	t.Parallel()

	srv := newSite(t, false)
	dest := t.TempDir()
	h := newHarness(t, nil, nil)

	report := h.engine.Crawl(context.Background(), srv.URL+"/course/", nil, dest, 3)

	assert.Equal(t, 3, report.Files)
	assert.Equal(t, int64(sizeOstep+sizeLecture+sizeDoc), report.Bytes)
	assert.FileExists(t, filepath.Join(dest, "syllabus.pdf"))
}

func TestCrawlWorkerCountDoesNotChangeTotals(t *testing.T) {
	t.Parallel()

	srv := newSite(t, true)
	var reports []crawler.Report
	for _, workers := range []int{1, 8} {
		h := newHarness(t, nil, nil)
		reports = append(reports, h.engine.Crawl(context.Background(), srv.URL+"/course/", nil, t.TempDir(), workers))
	}

	assert.Equal(t, reports[0].Files, reports[1].Files)
	assert.Equal(t, reports[0].Bytes, reports[1].Bytes)
	assert.Equal(t, 3, reports[0].Files, "the missing jpg is not counted")
}

func TestCrawlNonPositiveWorkersClampToOne(t *testing.T) {
	t.Parallel()

	srv := newSite(t, false)
	for _, workers := range []int{0, -1} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, nil, nil)

			done := make(chan crawler.Report, 1)
			go func() {
				done <- h.engine.Crawl(context.Background(), srv.URL+"/course/", []crawler.ResourceType{crawler.TypePDF}, t.TempDir(), workers)
			}()
			select {
			case report := <-done:
				assert.Equal(t, 1, report.Files)
			case <-time.After(10 * time.Second):
				t.Fatal("crawl deadlocked")
			}
		})
	}
}

func TestCrawlUnreachablePage(t *testing.T) {
	t.Parallel()

	srv := newSite(t, false)
	url := srv.URL + "/course/"
	srv.Close()

	h := newHarness(t, nil, nil)
	report := h.engine.Crawl(context.Background(), url, nil, t.TempDir(), 2)

	assert.Zero(t, report.Files)
	assert.Zero(t, report.Bytes)
	assert.Contains(t, h.out.String(), "Files Downloaded: 0\n")
	assert.Empty(t, h.announce.String())
}

func TestCrawlZeroElapsedReportsZeroBandwidth(t *testing.T) {
	t.Parallel()

	srv := newSite(t, false)
	h := newHarness(t, frozenClock{at: time.Unix(1_700_000_000, 0)}, nil)

	report := h.engine.Crawl(context.Background(), srv.URL+"/course/", nil, t.TempDir(), 2)

	assert.Equal(t, 3, report.Files)
	assert.Zero(t, report.Elapsed)
	assert.Zero(t, report.Bandwidth)
	assert.Contains(t, h.out.String(), "Elapsed Time:     0.00 s\n")
	assert.Contains(t, h.out.String(), "Bandwidth:        0.00 MB/s\n")
}

func TestCrawlBandwidthFromClock(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	extractor := fixedExtractor{"https://a.test/x.jpg", "https://a.test/y.jpg"}
	retriever := &sizedRetriever{size: crawler.Megabyte}
	out := &bytes.Buffer{}
	eng := New(Dependencies{
		Extractor: extractor,
		Retriever: retriever,
		Clock:     &steppingClock{next: start, step: 2 * time.Second},
		Report:    out,
	})

	report := eng.Crawl(context.Background(), "https://a.test/", nil, "dest", 2)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 2*time.Second, report.Elapsed)
	assert.InDelta(t, 1.0, report.Bandwidth, 1e-9)
	assert.Equal(t,
		"Files Downloaded: 2\nBytes Downloaded: 2.00 MB\nElapsed Time:     2.00 s\nBandwidth:        1.00 MB/s\n",
		out.String())
}

func TestCrawlDuplicatesAreRetrievedTwice(t *testing.T) {
	t.Parallel()

	retriever := &sizedRetriever{size: 10}
	eng := New(Dependencies{
		Extractor: fixedExtractor{"https://a.test/x.jpg", "https://a.test/x.jpg"},
		Retriever: retriever,
	})

	report := eng.Crawl(context.Background(), "https://a.test/", nil, "dest", 4)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, int64(2), retriever.calls.Load())
}

func TestCrawlAppliesLimiterPerRetrieval(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{}
	eng := New(Dependencies{
		Extractor: fixedExtractor{"https://a.test/1.png", "https://a.test/2.png", "https://b.test/3.png"},
		Retriever: &sizedRetriever{size: 1},
		Limiter:   limiter,
	})

	report := eng.Crawl(context.Background(), "https://a.test/", nil, "dest", 2)

	assert.Equal(t, 3, report.Files)
	assert.Equal(t, int64(3), limiter.calls.Load())
}

func TestCrawlCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := &bytes.Buffer{}
	eng := New(Dependencies{
		Extractor: fixedExtractor{"https://a.test/x.jpg"},
		Retriever: &sizedRetriever{size: 1},
		Report:    out,
	})

	done := make(chan crawler.Report, 1)
	go func() { done <- eng.Crawl(ctx, "https://a.test/", nil, "dest", 2) }()

	select {
	case report := <-done:
		assert.LessOrEqual(t, report.Files, 1)
		assert.Contains(t, out.String(), "Files Downloaded: ")
	case <-time.After(5 * time.Second):
		t.Fatal("canceled crawl did not return")
	}
}

func TestCrawlCancelMidRunStopsWorkers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	retriever := &blockingRetriever{release: ctx.Done(), started: make(chan struct{}, 16)}
	eng := New(Dependencies{
		Extractor: endlessExtractor{},
		Retriever: retriever,
	})

	done := make(chan crawler.Report, 1)
	go func() { done <- eng.Crawl(ctx, "https://a.test/", nil, "dest", 3) }()

	<-retriever.started
	cancel()

	select {
	case report := <-done:
		assert.Zero(t, report.Files)
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not stop after cancel")
	}
}

func TestCrawlIsRepeatable(t *testing.T) {
	t.Parallel()

	eng := New(Dependencies{
		Extractor: fixedExtractor{"https://a.test/x.jpg", "https://a.test/y.jpg"},
		Retriever: &sizedRetriever{size: 5},
	})
	first := eng.Crawl(context.Background(), "https://a.test/", nil, "dest", 1)
	second := eng.Crawl(context.Background(), "https://a.test/", nil, "dest", 3)

	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, first.Bytes, second.Bytes)
}

type staticIDs string

func (s staticIDs) NewID() (string, error) { return string(s), nil }

type frozenClock struct{ at time.Time }

func (c frozenClock) Now() time.Time { return c.at }

// steppingClock advances by step on every call after the first.
type steppingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

type fixedExtractor []string

func (f fixedExtractor) Extract(ctx context.Context, _ string, _ []crawler.ResourceType) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, loc := range f {
			if ctx.Err() != nil || !yield(loc) {
				return
			}
		}
	}
}

type endlessExtractor struct{}

func (endlessExtractor) Extract(ctx context.Context, _ string, _ []crawler.ResourceType) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 0; ctx.Err() == nil; i++ {
			if !yield(fmt.Sprintf("https://a.test/%d.jpg", i)) {
				return
			}
		}
	}
}

type sizedRetriever struct {
	size  int64
	calls atomic.Int64
}

func (r *sizedRetriever) Retrieve(_ context.Context, locator, dir string) crawler.Outcome {
	r.calls.Add(1)
	return crawler.Saved(locator, dir+"/"+crawler.FileName(locator), r.size)
}

type blockingRetriever struct {
	release <-chan struct{}
	started chan struct{}
}

func (r *blockingRetriever) Retrieve(ctx context.Context, locator, _ string) crawler.Outcome {
	select {
	case r.started <- struct{}{}:
	default:
	}
	<-r.release
	return crawler.Failed(locator, ctx.Err())
}

type countingLimiter struct{ calls atomic.Int64 }

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return nil
}
