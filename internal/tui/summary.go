package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/export"
)

const (
	borderPadding   = 2
	maxFailureLines = 5
)

var printer = message.NewPrinter(language.English)

// RenderSummary renders a boxed job summary. dest may be nil when nothing
// was exported.
func RenderSummary(res *batch.Result, dest *export.Destination, width int) string {
	if res == nil {
		return InfoStyle.Render("No results to display.")
	}

	var content strings.Builder
	content.WriteString(HeaderStyle.Render("JOB SUMMARY"))
	content.WriteString("\n")

	writeRow(&content, "Job:       ", res.JobID)
	content.WriteString(LabelStyle.Render("Phase:     "))
	content.WriteString(phaseStyle(res.Phase).Render(res.Phase.String()))
	content.WriteString("\n")

	content.WriteString(LabelStyle.Render("Processed: "))
	content.WriteString(ValueStyle.Render(printer.Sprintf("%d of %d", len(res.Records), res.Total)))
	if res.Failed > 0 {
		content.WriteString(LabelStyle.Render("    Failed: "))
		content.WriteString(WarningStyle.Render(printer.Sprintf("%d", res.Failed)))
	}
	content.WriteString("\n")

	if res.Capped > 0 {
		writeRow(&content, "Capped:    ", printer.Sprintf("%d items skipped by the item cap", res.Capped))
	}
	writeRow(&content, "Duration:  ", res.Duration().Round(time.Millisecond).String())
	if res.Extensions > 0 {
		writeRow(&content, "Extended:  ", printer.Sprintf("%d times", res.Extensions))
	}

	if dest != nil {
		content.WriteString("\n")
		content.WriteString(HeaderStyle.Render("EXPORT"))
		content.WriteString("\n")
		writeRow(&content, "File:      ", dest.Path)
		writeRow(&content, "Encoding:  ", dest.Encoding)
		writeRow(&content, "Variables: ", printer.Sprintf("%d", dest.Fields))
		if dest.FellBack {
			content.WriteString(WarningStyle.Render("Fallback encoding used: " + dest.Reason))
			content.WriteString("\n")
		}
	}

	if failures := failureLines(res); len(failures) > 0 {
		content.WriteString("\n")
		content.WriteString(HeaderStyle.Render("FAILURES"))
		content.WriteString("\n")
		for _, line := range failures {
			content.WriteString(SubtleStyle.Render(line))
			content.WriteString("\n")
		}
	}

	return BoxStyle.Width(max(width-borderPadding, 0)).Render(strings.TrimRight(content.String(), "\n"))
}

// RenderPlainSummary renders the summary without styling, one fact per line.
func RenderPlainSummary(res *batch.Result, dest *export.Destination) string {
	if res == nil {
		return "No results to display.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "job: %s\n", res.JobID)
	fmt.Fprintf(&b, "phase: %s\n", res.Phase)
	b.WriteString(printer.Sprintf("processed: %d of %d\n", len(res.Records), res.Total))
	b.WriteString(printer.Sprintf("failed: %d\n", res.Failed))
	if res.Capped > 0 {
		b.WriteString(printer.Sprintf("capped: %d\n", res.Capped))
	}
	fmt.Fprintf(&b, "duration: %s\n", res.Duration().Round(time.Millisecond))
	if dest != nil {
		fmt.Fprintf(&b, "export: %s (%s)\n", dest.Path, dest.Encoding)
		if dest.FellBack {
			fmt.Fprintf(&b, "fallback: %s\n", dest.Reason)
		}
	}
	for _, line := range failureLines(res) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(label))
	b.WriteString(ValueStyle.Render(value))
	b.WriteString("\n")
}

func phaseStyle(p batch.Phase) lipgloss.Style {
	switch p {
	case batch.PhaseCompleted:
		return OKStyle
	case batch.PhaseCancelled, batch.PhaseTimedOut:
		return WarningStyle
	default:
		return ValueStyle
	}
}

func failureLines(res *batch.Result) []string {
	var lines []string
	shown := 0
	for _, rec := range res.Records {
		if !rec.Failed() {
			continue
		}
		if shown == maxFailureLines {
			lines = append(lines, printer.Sprintf("... and %d more", res.Failed-shown))
			break
		}
		lines = append(lines, fmt.Sprintf("- item %d: %s", rec.Index, rec.Error))
		shown++
	}
	return lines
}
