package crawler

import (
	"fmt"
	"io"
	"time"
)

// Megabyte is the divisor used for every MB figure in the report.
const Megabyte = 1 << 20

// minElapsed is the smallest duration that prints as non-zero with two
// decimals; below it bandwidth is reported as 0.
const minElapsed = 5 * time.Millisecond

// Report summarizes one crawl run. Only saved outcomes contribute.
type Report struct {
	Files     int
	Bytes     int64
	Elapsed   time.Duration
	Bandwidth float64 // MB/s
}

// NewReport aggregates saved outcomes; failed outcomes are ignored.
func NewReport(outcomes []Outcome, elapsed time.Duration) Report {
	report := Report{Elapsed: elapsed}
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		report.Files++
		report.Bytes += o.Bytes
	}
	if elapsed >= minElapsed {
		report.Bandwidth = report.Megabytes() / elapsed.Seconds()
	}
	return report
}

// Megabytes returns the downloaded volume in MB.
func (r Report) Megabytes() float64 {
	return float64(r.Bytes) / Megabyte
}

// WriteTo prints the four summary lines.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"Files Downloaded: %d\nBytes Downloaded: %.2f MB\nElapsed Time:     %.2f s\nBandwidth:        %.2f MB/s\n",
		r.Files, r.Megabytes(), r.Elapsed.Seconds(), r.Bandwidth,
	)
	if err != nil {
		return int64(n), fmt.Errorf("write report: %w", err)
	}
	return int64(n), nil
}
