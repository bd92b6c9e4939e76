package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/varbatch/internal/engine/batch"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge connects a scheduler to a ProgressModel. It is the scheduler's
// Reporter, Prompter and Observer, and forwards everything as messages.
type Bridge struct {
	batch.NopObserver

	sender Sender
}

var (
	_ batch.Reporter = (*Bridge)(nil)
	_ batch.Prompter = (*Bridge)(nil)
	_ batch.Observer = (*Bridge)(nil)
)

// NewBridge creates a Bridge sending to s.
func NewBridge(s Sender) *Bridge {
	return &Bridge{sender: s}
}

// Report forwards a progress update.
func (b *Bridge) Report(current, total int) {
	b.sender.Send(ProgressMsg{Current: current, Total: total})
}

// PhaseChanged forwards a phase transition.
func (b *Bridge) PhaseChanged(from, to batch.Phase) {
	b.sender.Send(PhaseMsg{From: from, To: to})
}

// ItemProcessed forwards the outcome of one item.
func (b *Bridge) ItemProcessed(rec batch.ItemRecord, _ time.Duration) {
	b.sender.Send(ItemMsg{Index: rec.Index, Failed: rec.Failed()})
}

// Confirm asks the model and waits for the answer. A cancelled context
// declines.
func (b *Bridge) Confirm(ctx context.Context, gate batch.Gate) bool {
	reply := make(chan bool, 1)
	b.sender.Send(ConfirmMsg{Gate: gate, Reply: reply})
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// OnTimeout asks the model and waits for the answer. A cancelled context
// stops.
func (b *Bridge) OnTimeout(ctx context.Context, t batch.Timeout) batch.Decision {
	reply := make(chan batch.Decision, 1)
	b.sender.Send(TimeoutMsg{Timeout: t, Reply: reply})
	select {
	case d := <-reply:
		return d
	case <-ctx.Done():
		return batch.DecisionStop
	}
}

// Done tells the model the job finished.
func (b *Bridge) Done(res *batch.Result, err error) {
	b.sender.Send(DoneMsg{Result: res, Err: err})
}
