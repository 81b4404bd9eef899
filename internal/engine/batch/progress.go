package batch

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of a Progress.
type Snapshot struct {
	TotalItems     int
	ProcessedItems int
	TotalChunks    int
	DoneChunks     int
	Elapsed        time.Duration
}

// Percent returns completion in [0, 100]. An empty run is complete.
func (s Snapshot) Percent() float64 {
	if s.TotalItems == 0 {
		return 100
	}
	return float64(s.ProcessedItems) / float64(s.TotalItems) * 100
}

// Complete reports whether every item has been processed.
func (s Snapshot) Complete() bool {
	return s.ProcessedItems >= s.TotalItems
}

// ItemsPerSecond returns the processing rate so far.
func (s Snapshot) ItemsPerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.ProcessedItems) / secs
}

// Remaining estimates the time left at the current rate, or 0 before the
// first chunk finishes.
func (s Snapshot) Remaining() time.Duration {
	if s.ProcessedItems == 0 {
		return 0
	}
	perItem := s.Elapsed / time.Duration(s.ProcessedItems)
	return perItem * time.Duration(s.TotalItems-s.ProcessedItems)
}

// Progress counts processed items across concurrent chunks.
type Progress struct {
	mu        sync.Mutex
	total     int
	processed int
	chunks    int
	done      int
	start     time.Time
}

// NewProgress starts tracking a run of totalItems split into totalChunks.
func NewProgress(totalItems, totalChunks int) *Progress {
	return &Progress{total: totalItems, chunks: totalChunks, start: time.Now()}
}

// Add records a finished chunk of n items and returns the new state.
func (p *Progress) Add(n int) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed += n
	p.done++
	return p.snapshotLocked()
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	return Snapshot{
		TotalItems:     p.total,
		ProcessedItems: p.processed,
		TotalChunks:    p.chunks,
		DoneChunks:     p.done,
		Elapsed:        time.Since(p.start),
	}
}
