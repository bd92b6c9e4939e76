package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/varbatch/internal/engine/batch"
)

const (
	// recordsBufferRows are rendered above and below the viewport.
	recordsBufferRows    = 2
	recordsDefaultHeight = 20
	recordsChromeRows    = 4
	recordTextWidth      = 72
	recordMinTextWidth   = 16
	recordRowColumns     = 28
)

// RecordsModel browses the item records of one job. Only the rows around
// the selection are rendered, so large jobs scroll without cost.
type RecordsModel struct {
	title   string
	all     []batch.ItemRecord
	visible []batch.ItemRecord

	failedOnly bool
	detail     bool

	selected int
	from, to int
	height   int
	width    int
}

// NewRecordsModel creates the browser for records.
func NewRecordsModel(title string, records []batch.ItemRecord) *RecordsModel {
	m := &RecordsModel{
		title:  title,
		all:    records,
		height: recordsDefaultHeight,
		width:  progressDefaultWidth,
	}
	m.applyFilter()
	return m
}

// Init initializes the model (Bubble Tea interface).
func (m *RecordsModel) Init() tea.Cmd {
	return nil
}

// Update handles navigation keys and resizes (Bubble Tea interface).
func (m *RecordsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = max(msg.Height-recordsChromeRows, 1)
		m.scroll()
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

// handleKeyMsg processes keyboard input.
//
//nolint:exhaustive // Only navigation keys are handled.
func (m *RecordsModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		if m.detail && msg.Type == tea.KeyEsc {
			m.detail = false
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyEnter:
		m.detail = !m.detail && len(m.visible) > 0
	case tea.KeyUp:
		m.Select(m.selected - 1)
	case tea.KeyDown:
		m.Select(m.selected + 1)
	case tea.KeyPgUp:
		m.Select(m.selected - m.height)
	case tea.KeyPgDown:
		m.Select(m.selected + m.height)
	case tea.KeyHome:
		m.Select(0)
	case tea.KeyEnd:
		m.Select(len(m.visible) - 1)
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "q":
			return m, tea.Quit
		case "j":
			m.Select(m.selected + 1)
		case "k":
			m.Select(m.selected - 1)
		case "f":
			m.failedOnly = !m.failedOnly
			m.detail = false
			m.applyFilter()
		}
	}
	return m, nil
}

// Select moves the selection to i, clamped to the visible records.
func (m *RecordsModel) Select(i int) {
	m.selected = min(max(i, 0), max(len(m.visible)-1, 0))
	m.scroll()
}

// Selected returns the selected record, or nil when nothing is shown.
func (m *RecordsModel) Selected() *batch.ItemRecord {
	if len(m.visible) == 0 {
		return nil
	}
	return &m.visible[m.selected]
}

// Window returns the visible range [from, to) of the filtered records.
//
//nolint:nonamedreturns // Named returns document the bounds.
func (m *RecordsModel) Window() (from, to int) {
	return m.from, m.to
}

// Shown returns how many records pass the current filter.
func (m *RecordsModel) Shown() int {
	return len(m.visible)
}

func (m *RecordsModel) applyFilter() {
	if !m.failedOnly {
		m.visible = m.all
	} else {
		m.visible = make([]batch.ItemRecord, 0, len(m.all))
		for _, r := range m.all {
			if r.Failed() {
				m.visible = append(m.visible, r)
			}
		}
	}
	m.Select(0)
}

// scroll keeps the selection centred in the viewport where possible.
func (m *RecordsModel) scroll() {
	n := len(m.visible)
	if n == 0 {
		m.from, m.to = 0, 0
		return
	}
	m.from = max(m.selected-m.height/2, 0) //nolint:mnd // Half the viewport.
	m.to = m.from + m.height
	if m.to > n {
		m.to = n
		m.from = max(n-m.height, 0)
	}
}

// View renders the list or the detail of the selected record.
func (m *RecordsModel) View() string {
	var b strings.Builder
	filter := "all"
	if m.failedOnly {
		filter = "failed only"
	}
	b.WriteString(HeaderStyle.Render(m.title))
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("  %d of %d records (%s)", len(m.visible), len(m.all), filter)))
	b.WriteString("\n\n")

	switch {
	case len(m.visible) == 0:
		b.WriteString(SubtleStyle.Render("No records."))
		b.WriteString("\n")
	case m.detail:
		b.WriteString(RenderRecordDetail(m.visible[m.selected]))
	default:
		from := max(m.from-recordsBufferRows, 0)
		to := min(m.to+recordsBufferRows, len(m.visible))
		for i := from; i < to; i++ {
			b.WriteString(renderRecordRow(m.visible[i], i == m.selected, m.textWidth()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render("↑/↓ move  enter detail  f failures  q quit"))
	return b.String()
}

// textWidth is the room left for item text after the fixed row columns.
func (m *RecordsModel) textWidth() int {
	return max(min(m.width-recordRowColumns, recordTextWidth), recordMinTextWidth)
}

func renderRecordRow(r batch.ItemRecord, selected bool, width int) string {
	status := OKStyle.Render("ok  ")
	if r.Failed() {
		status = ErrorStyle.Render("FAIL")
	}
	line := fmt.Sprintf("%5d %s %-12s %s", r.Index, status, r.Pre.ObjectKind, clip(oneLine(r.Post.CurrentText), width))
	if selected {
		return InfoStyle.Render("> ") + line
	}
	return "  " + line
}

// RenderRecordDetail renders every captured field of one record.
func RenderRecordDetail(r batch.ItemRecord) string {
	var b strings.Builder
	writeRow(&b, "Index:     ", fmt.Sprintf("%d", r.Index))
	writeRow(&b, "Kind:      ", r.Pre.ObjectKind)
	writeRow(&b, "Original:  ", r.Pre.OriginalText)
	writeRow(&b, "Current:   ", r.Post.CurrentText)
	writeRow(&b, "Variables: ", fmt.Sprintf("%d", r.Post.VariableCount))
	if r.Failed() {
		b.WriteString(LabelStyle.Render("Error:     "))
		b.WriteString(ErrorStyle.Render(r.Error))
		b.WriteString("\n")
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
