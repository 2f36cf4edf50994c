package engine

import (
	"io"
	"sync"
)

// SyncWriter serializes writes from concurrent workers so that announcement
// lines never interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w.
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write forwards p to the wrapped writer under a lock.
func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// String returns the buffered text when the wrapped writer is a
// fmt.Stringer such as *bytes.Buffer.
func (s *SyncWriter) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sv, ok := s.w.(interface{ String() string }); ok {
		return sv.String()
	}
	return ""
}
