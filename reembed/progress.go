package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports how far a re-embedding run has got through the
// document table, one completed batch at a time.
type ProgressTracker struct {
	writer         io.Writer
	documents      int
	batches        int
	reportInterval int

	mu           sync.Mutex
	done         int
	batchesDone  int
	lastReported int
	startTime    time.Time
	started      bool
}

// NewProgressTracker creates a tracker for documents split into batches.
// A line is written whenever at least reportInterval documents have
// completed since the last one.
func NewProgressTracker(writer io.Writer, documents, batches, reportInterval int) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		documents:      documents,
		batches:        batches,
		reportInterval: reportInterval,
	}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.done = 0
	p.batchesDone = 0
	p.lastReported = 0
}

// BatchDone records a completed batch of size documents.
func (p *ProgressTracker) BatchDone(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.batchesDone = min(p.batchesDone+1, p.batches)
	p.done = min(p.done+size, p.documents)

	if p.done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.done
	}
}

// Processed returns the number of documents in completed batches.
func (p *ProgressTracker) Processed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish writes the final line and a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.done = p.documents
	p.batchesDone = p.batches
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if secs := time.Since(p.startTime).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}

	percentage := 0.0
	if p.documents > 0 {
		percentage = float64(p.done) / float64(p.documents) * 100.0
	}

	fmt.Fprintf(p.writer, "\rBatch %d/%d: %d/%d documents (%.1f%%), %.1f documents/s",
		p.batchesDone, p.batches, p.done, p.documents, percentage, rate)
}
