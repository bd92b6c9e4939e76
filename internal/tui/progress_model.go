package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/varbatch/internal/engine/batch"
)

// ProgressState is the interaction state of the progress TUI.
type ProgressState int

const (
	// ProgressStateRunning shows the bar while items are processed.
	ProgressStateRunning ProgressState = iota
	// ProgressStateConfirming asks the user to pass a confirmation gate.
	ProgressStateConfirming
	// ProgressStateTimeout asks whether to extend the deadline.
	ProgressStateTimeout
	// ProgressStateCancelling waits for the job to reach a chunk boundary.
	ProgressStateCancelling
	// ProgressStateDone shows the final line until the program exits.
	ProgressStateDone
)

// ProgressMsg carries a reporter update.
type ProgressMsg struct {
	Current int
	Total   int
}

// PhaseMsg carries a job phase transition.
type PhaseMsg struct {
	From batch.Phase
	To   batch.Phase
}

// ItemMsg carries the outcome of one item.
type ItemMsg struct {
	Index  int
	Failed bool
}

// ConfirmMsg asks for a gate decision. Reply must be buffered.
type ConfirmMsg struct {
	Gate  batch.Gate
	Reply chan<- bool
}

// TimeoutMsg asks for a timeout decision. Reply must be buffered.
type TimeoutMsg struct {
	Timeout batch.Timeout
	Reply   chan<- batch.Decision
}

// DoneMsg ends the program.
type DoneMsg struct {
	Result *batch.Result
	Err    error
}

const (
	progressDefaultWidth = 80
	progressBarMaxWidth  = 60
	progressBarPadding   = 4
)

// ProgressModel is the Bubble Tea model shown while a job runs.
type ProgressModel struct {
	title    string
	bar      progress.Model
	tracker  *batch.Progress
	onCancel func()

	state   ProgressState
	phase   batch.Phase
	failed  int
	confirm *ConfirmMsg
	timeout *TimeoutMsg

	result *batch.Result
	err    error

	width int
}

// NewProgressModel creates the model for a job of total items. onCancel is
// called once when the user asks to stop; it may be nil.
func NewProgressModel(title string, total, chunkSize int, onCancel func()) *ProgressModel {
	return &ProgressModel{
		title:    title,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarMaxWidth)),
		tracker:  batch.NewProgress(total, chunkSize),
		onCancel: onCancel,
		state:    ProgressStateRunning,
		width:    progressDefaultWidth,
	}
}

// Init initializes the model (Bubble Tea interface).
func (m *ProgressModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-progressBarPadding, 1), progressBarMaxWidth)
		return m, nil

	case ProgressMsg:
		m.tracker.Report(msg.Current, msg.Total)
		return m, nil

	case PhaseMsg:
		m.phase = msg.To
		return m, nil

	case ItemMsg:
		if msg.Failed {
			m.failed++
		}
		return m, nil

	case ConfirmMsg:
		m.confirm = &msg
		m.state = ProgressStateConfirming
		return m, nil

	case TimeoutMsg:
		m.timeout = &msg
		m.state = ProgressStateTimeout
		return m, nil

	case DoneMsg:
		m.answerPending()
		m.result = msg.Result
		m.err = msg.Err
		m.state = ProgressStateDone
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

// handleKeyMsg processes keyboard input.
//
//nolint:exhaustive // Only handling relevant key types for the progress screen.
func (m *ProgressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.state == ProgressStateCancelling || m.state == ProgressStateDone {
			return m, tea.Quit
		}
		m.answerPending()
		m.requestCancel()
		return m, nil

	case tea.KeyEnter:
		m.answerPending()
		return m, nil

	case tea.KeyRunes:
		return m.handleRune(strings.ToLower(string(msg.Runes)))
	}
	return m, nil
}

func (m *ProgressModel) handleRune(key string) (tea.Model, tea.Cmd) {
	switch m.state {
	case ProgressStateConfirming:
		switch key {
		case "y":
			m.answerConfirm(true)
		case "n":
			m.answerConfirm(false)
		}
	case ProgressStateTimeout:
		switch key {
		case "c":
			m.answerTimeout(batch.DecisionContinue)
		case "s":
			m.answerTimeout(batch.DecisionStop)
		}
	case ProgressStateRunning:
		if key == "c" {
			m.requestCancel()
		}
	case ProgressStateDone:
		if key == "q" {
			return m, tea.Quit
		}
	case ProgressStateCancelling:
	}
	return m, nil
}

// answerPending resolves an open question with its default: decline the
// gate, stop on timeout.
func (m *ProgressModel) answerPending() {
	switch {
	case m.confirm != nil:
		m.answerConfirm(false)
	case m.timeout != nil:
		m.answerTimeout(batch.DecisionStop)
	}
}

func (m *ProgressModel) answerConfirm(ok bool) {
	if m.confirm == nil {
		return
	}
	m.confirm.Reply <- ok
	m.confirm = nil
	m.state = ProgressStateRunning
}

func (m *ProgressModel) answerTimeout(d batch.Decision) {
	if m.timeout == nil {
		return
	}
	m.timeout.Reply <- d
	m.timeout = nil
	m.state = ProgressStateRunning
}

func (m *ProgressModel) requestCancel() {
	if m.state == ProgressStateCancelling || m.state == ProgressStateDone {
		return
	}
	m.state = ProgressStateCancelling
	if m.onCancel != nil {
		m.onCancel()
	}
}

// State returns the interaction state.
func (m *ProgressModel) State() ProgressState {
	return m.state
}

// Result returns the job result once DoneMsg arrived.
func (m *ProgressModel) Result() (*batch.Result, error) {
	return m.result, m.err
}

// View renders the model (Bubble Tea interface).
func (m *ProgressModel) View() string {
	var b strings.Builder
	snap := m.tracker.Snapshot()

	b.WriteString(HeaderStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(SubtleStyle.Render(m.phase.String()))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(float64(snap.PercentComplete) / 100)) //nolint:mnd // Percent to ratio.
	b.WriteString("\n")

	b.WriteString(LabelStyle.Render("Items: "))
	b.WriteString(ValueStyle.Render(fmt.Sprintf("%d/%d", snap.ProcessedItems, snap.TotalItems)))
	b.WriteString(LabelStyle.Render("  Failed: "))
	if m.failed > 0 {
		b.WriteString(WarningStyle.Render(fmt.Sprint(m.failed)))
	} else {
		b.WriteString(ValueStyle.Render("0"))
	}
	if snap.Remaining > 0 {
		b.WriteString(LabelStyle.Render("  ETA: "))
		b.WriteString(ValueStyle.Render(snap.Remaining.Round(time.Second).String()))
	}
	b.WriteString("\n\n")

	switch m.state {
	case ProgressStateConfirming:
		b.WriteString(WarningStyle.Render(m.confirm.Gate.Message()))
		b.WriteString(" [y/N]")
	case ProgressStateTimeout:
		t := m.timeout.Timeout
		b.WriteString(WarningStyle.Render(fmt.Sprintf(
			"Still running after %s (%d of %d items).", t.Elapsed.Round(time.Second), t.Processed, t.Total)))
		b.WriteString(" [c]ontinue / [S]top")
	case ProgressStateCancelling:
		b.WriteString(InfoStyle.Render("Stopping after the current chunk..."))
	case ProgressStateDone:
		b.WriteString(m.doneLine())
	case ProgressStateRunning:
		b.WriteString(SubtleStyle.Render("c: cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *ProgressModel) doneLine() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}
	if m.result == nil {
		return InfoStyle.Render("Done.")
	}
	return OKStyle.Render(fmt.Sprintf("%s: %d records", m.result.Phase, len(m.result.Records)))
}
