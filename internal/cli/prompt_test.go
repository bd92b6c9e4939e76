package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/varbatch/internal/engine/batch"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PromptResult
	}{
		{"yes", "y\n", PromptResult{Accepted: true, Answer: "y"}},
		{"yes word", "  YES \n", PromptResult{Accepted: true, Answer: "yes"}},
		{"empty defaults to no", "\n", PromptResult{}},
		{"anything else", "sure\n", PromptResult{Answer: "sure"}},
		{"eof", "", PromptResult{Cancelled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(context.Background(), &out, newLineReader(strings.NewReader(tt.input)), "Proceed?")
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Proceed? [y/N]")
		})
	}
}

func TestConfirm_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got := Confirm(ctx, io.Discard, newLineReader(pr), "Proceed?")
	assert.True(t, got.Cancelled)
}

func TestAskTimeout(t *testing.T) {
	tests := []struct {
		input string
		want  batch.Decision
	}{
		{"c\n", batch.DecisionContinue},
		{"Continue\n", batch.DecisionContinue},
		{"\n", batch.DecisionStop},
		{"s\n", batch.DecisionStop},
		{"", batch.DecisionStop},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			timeout := batch.Timeout{Elapsed: 90 * time.Second, Processed: 12, Total: 40}
			got := AskTimeout(context.Background(), &out, newLineReader(strings.NewReader(tt.input)), timeout)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "1m30s (12 of 40 items done)")
			assert.Contains(t, out.String(), "[c]ontinue or [S]top")
		})
	}
}

func TestTerminalPrompter_Interactive(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompter(strings.NewReader("y\nn\nc\n"), &out, true, batch.AutoPrompter{})
	ctx := context.Background()
	gate := batch.Gate{Level: batch.GateSoft, Count: 60, Threshold: 50}

	assert.True(t, p.Confirm(ctx, gate))
	assert.False(t, p.Confirm(ctx, gate))
	assert.Equal(t, batch.DecisionContinue, p.OnTimeout(ctx, batch.Timeout{Total: 3}))
	assert.Equal(t, batch.DecisionStop, p.OnTimeout(ctx, batch.Timeout{Total: 3}), "EOF stops")
	assert.Contains(t, out.String(), gate.Message())
}

func TestTerminalPrompter_Auto(t *testing.T) {
	var out bytes.Buffer
	auto := batch.AutoPrompter{Accept: false, Decision: batch.DecisionContinue, MaxExtensions: 1}
	p := NewTerminalPrompter(strings.NewReader("y\n"), &out, false, auto)
	ctx := context.Background()

	assert.False(t, p.Confirm(ctx, batch.Gate{Level: batch.GateHard, Count: 120, Threshold: 100}))
	assert.Equal(t, batch.DecisionContinue, p.OnTimeout(ctx, batch.Timeout{Extension: 0}))
	assert.Equal(t, batch.DecisionStop, p.OnTimeout(ctx, batch.Timeout{Extension: 1}))
	assert.Empty(t, out.String(), "nothing is asked")

	yes := NewTerminalPrompter(strings.NewReader(""), &out, true, batch.AutoPrompter{Accept: true})
	assert.True(t, yes.Confirm(ctx, batch.Gate{Level: batch.GateSoft}), "assume-yes skips the question")
	assert.Empty(t, out.String())
}
