package batch

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Reporter receives (current, total) after every item. It is purely
// observational and never influences scheduling.
type Reporter interface {
	Report(current, total int)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(current, total int)

// Report calls f.
func (f ReporterFunc) Report(current, total int) { f(current, total) }

// MultiReporter fans one update out to several reporters.
type MultiReporter []Reporter

// Report forwards to every non-nil reporter in order.
func (m MultiReporter) Report(current, total int) {
	for _, r := range m {
		if r != nil {
			r.Report(current, total)
		}
	}
}

// Percent returns round(current/total*100), or 0 when total is 0.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(current) / float64(total) * percentMultiplier))
}

// LogReporter logs one line per update.
type LogReporter struct {
	Logger zerolog.Logger
}

// Report logs the update at info level.
func (r LogReporter) Report(current, total int) {
	r.Logger.Info().
		Int("current", current).
		Int("total", total).
		Int("percent", Percent(current, total)).
		Msg("progress")
}

// Progress tracks the progress of a job for renderers: rates, ETA and
// snapshots. It implements Reporter and is safe for concurrent reads while the
// scheduler reports.
type Progress struct {
	// TotalItems is the total number of items to process.
	TotalItems int

	// ProcessedItems is the number of items processed so far.
	ProcessedItems int

	// ChunkSize is the configured chunk size.
	ChunkSize int

	// StartTime is when processing started.
	StartTime time.Time

	// LastUpdateTime is when progress was last updated.
	LastUpdateTime time.Time

	now func() time.Time
	mu  sync.RWMutex
}

// NewProgress creates a new progress tracker.
func NewProgress(totalItems, chunkSize int) *Progress {
	return newProgress(totalItems, chunkSize, time.Now)
}

func newProgress(totalItems, chunkSize int, now func() time.Time) *Progress {
	t := now()
	return &Progress{
		TotalItems:     totalItems,
		ChunkSize:      chunkSize,
		StartTime:      t,
		LastUpdateTime: t,
		now:            now,
	}
}

// Report records that current of total items are done.
func (p *Progress) Report(current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedItems = current
	p.TotalItems = total
	p.LastUpdateTime = p.now()
}

// PercentComplete returns the completion percentage (0-100).
func (p *Progress) PercentComplete() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Percent(p.ProcessedItems, p.TotalItems)
}

// IsComplete returns true if all items have been processed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.ProcessedItems >= p.TotalItems
}

// ProcessedChunks returns how many chunks have been completed.
func (p *Progress) ProcessedChunks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.processedChunksUnsafe()
}

// ElapsedTime returns the time elapsed since processing started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.now().Sub(p.StartTime)
}

// EstimatedTimeRemaining estimates the remaining processing time based on current progress.
// Returns 0 if no items have been processed yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.etaUnsafe()
}

// ItemsPerSecond returns the processing rate in items per second.
func (p *Progress) ItemsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.itemsPerSecondUnsafe()
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalItems:      p.TotalItems,
		ProcessedItems:  p.ProcessedItems,
		ProcessedChunks: p.processedChunksUnsafe(),
		ChunkSize:       p.ChunkSize,
		StartTime:       p.StartTime,
		LastUpdateTime:  p.LastUpdateTime,
		PercentComplete: Percent(p.ProcessedItems, p.TotalItems),
		ElapsedTime:     p.now().Sub(p.StartTime),
		ItemsPerSecond:  p.itemsPerSecondUnsafe(),
		Remaining:       p.etaUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalItems      int
	ProcessedItems  int
	ProcessedChunks int
	ChunkSize       int
	StartTime       time.Time
	LastUpdateTime  time.Time
	PercentComplete int
	ElapsedTime     time.Duration
	ItemsPerSecond  float64
	Remaining       time.Duration
}

// processedChunksUnsafe must be called with the lock held.
func (p *Progress) processedChunksUnsafe() int {
	if p.ChunkSize <= 0 {
		return 0
	}
	return p.ProcessedItems / p.ChunkSize
}

// etaUnsafe must be called with the lock held.
func (p *Progress) etaUnsafe() time.Duration {
	if p.ProcessedItems == 0 || p.ProcessedItems >= p.TotalItems {
		return 0
	}
	elapsed := p.LastUpdateTime.Sub(p.StartTime)
	avgTimePerItem := elapsed / time.Duration(p.ProcessedItems)
	return avgTimePerItem * time.Duration(p.TotalItems-p.ProcessedItems)
}

// itemsPerSecondUnsafe must be called with the lock held.
func (p *Progress) itemsPerSecondUnsafe() float64 {
	elapsed := p.now().Sub(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.ProcessedItems) / elapsed
}

// Reset resets the progress tracker to initial state.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.now()
	p.ProcessedItems = 0
	p.StartTime = t
	p.LastUpdateTime = t
}
