package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rshade/varbatch/internal/engine/batch"
)

// PromptResult contains the result of a user prompt interaction.
type PromptResult struct {
	// Accepted is true if the user typed "y" or "yes".
	Accepted bool
	// Answer is the trimmed, lower-cased input.
	Answer string
	// Cancelled is true when input ended or the context was cancelled.
	Cancelled bool
}

// lineReader reads lines from one reader on a single goroutine so that a
// prompt can give up on context cancellation without losing the reader.
type lineReader struct {
	once  sync.Once
	in    io.Reader
	lines chan string
}

func newLineReader(in io.Reader) *lineReader {
	return &lineReader{in: in, lines: make(chan string)}
}

func (r *lineReader) start() {
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			r.lines <- scanner.Text()
		}
		close(r.lines)
	}()
}

// ReadLine returns the next line; ok is false on EOF or cancellation.
//
//nolint:nonamedreturns // Named returns document the pair.
func (r *lineReader) ReadLine(ctx context.Context) (line string, ok bool) {
	r.once.Do(r.start)
	select {
	case <-ctx.Done():
		return "", false
	case line, ok = <-r.lines:
		return line, ok
	}
}

// Confirm asks a [y/N] question. Empty input, EOF and anything but
// y/yes decline.
func Confirm(ctx context.Context, w io.Writer, r *lineReader, question string) PromptResult {
	fmt.Fprintf(w, "? %s [y/N] ", question)

	line, ok := r.ReadLine(ctx)
	if !ok {
		fmt.Fprintln(w)
		return PromptResult{Cancelled: true}
	}

	input := strings.ToLower(strings.TrimSpace(line))
	switch input {
	case "y", "yes":
		return PromptResult{Accepted: true, Answer: input}
	default:
		return PromptResult{Answer: input}
	}
}

// AskTimeout asks whether to keep going after the deadline passed. The
// default is to stop.
func AskTimeout(ctx context.Context, w io.Writer, r *lineReader, t batch.Timeout) batch.Decision {
	fmt.Fprintf(w, "\nProcessing has run for %s (%d of %d items done).\n",
		t.Elapsed.Round(time.Second), t.Processed, t.Total)
	fmt.Fprint(w, "? [c]ontinue or [S]top: ")

	line, ok := r.ReadLine(ctx)
	if !ok {
		fmt.Fprintln(w)
		return batch.DecisionStop
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "continue":
		return batch.DecisionContinue
	default:
		return batch.DecisionStop
	}
}

// TerminalPrompter asks questions on a terminal. When Interactive is false
// every question is answered by Auto.
type TerminalPrompter struct {
	Out         io.Writer
	Interactive bool
	Auto        batch.AutoPrompter

	in *lineReader
	mu sync.Mutex
}

// NewTerminalPrompter creates a prompter reading answers from in.
func NewTerminalPrompter(in io.Reader, out io.Writer, interactive bool, auto batch.AutoPrompter) *TerminalPrompter {
	return &TerminalPrompter{Out: out, Interactive: interactive, Auto: auto, in: newLineReader(in)}
}

// Confirm implements batch.Prompter. AssumeYes skips the question.
func (p *TerminalPrompter) Confirm(ctx context.Context, gate batch.Gate) bool {
	if !p.Interactive || p.Auto.Accept {
		accepted := p.Auto.Confirm(ctx, gate)
		logger.Info().Ctx(ctx).
			Str("gate", gate.Level.String()).
			Int("count", gate.Count).
			Bool("accepted", accepted).
			Msg("confirmation answered automatically")
		return accepted
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return Confirm(ctx, p.Out, p.in, gate.Message()).Accepted
}

// OnTimeout implements batch.Prompter.
func (p *TerminalPrompter) OnTimeout(ctx context.Context, t batch.Timeout) batch.Decision {
	if !p.Interactive {
		d := p.Auto.OnTimeout(ctx, t)
		logger.Info().Ctx(ctx).
			Dur("elapsed", t.Elapsed).
			Int("extension", t.Extension).
			Str("decision", d.String()).
			Msg("timeout answered automatically")
		return d
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return AskTimeout(ctx, p.Out, p.in, t)
}
