package tui

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const barThrottle = 100 * time.Millisecond

// BarReporter draws a single-line progress bar for styled, non-interactive
// output. It implements batch.Reporter.
type BarReporter struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int
}

// NewBarReporter creates a bar for total items writing to w.
func NewBarReporter(w io.Writer, total int, description string) *BarReporter {
	return &BarReporter{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(40), //nolint:mnd // Bar width.
			progressbar.OptionThrottle(barThrottle),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() {
				_, _ = io.WriteString(w, "\n")
			}),
		),
		max: total,
	}
}

// Report moves the bar to current. A changed total resizes it.
func (r *BarReporter) Report(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if total != r.max {
		r.bar.ChangeMax(total)
		r.max = total
	}
	_ = r.bar.Set(current)
}

// Finish completes the bar if the job stopped early.
func (r *BarReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.bar.IsFinished() {
		_ = r.bar.Exit()
	}
}
