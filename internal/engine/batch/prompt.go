package batch

import (
	"context"
	"fmt"
	"time"
)

// GateLevel is the strength of a confirmation gate.
type GateLevel int

// Gate levels.
const (
	GateSoft GateLevel = iota
	GateHard
	GateExport
)

// String returns the gate level name.
func (l GateLevel) String() string {
	switch l {
	case GateSoft:
		return "soft"
	case GateHard:
		return "hard"
	case GateExport:
		return "export"
	default:
		return "unknown"
	}
}

// Gate is one confirmation the user must give before work proceeds.
type Gate struct {
	Level     GateLevel
	Count     int
	Threshold int
}

// Message is the user-facing question for the gate.
func (g Gate) Message() string {
	switch g.Level {
	case GateHard:
		return fmt.Sprintf(
			"WARNING: %d items is above the hard limit of %d. The host may become unresponsive. Are you sure?",
			g.Count, g.Threshold)
	case GateExport:
		return fmt.Sprintf("%d variables will be exported (more than %d). Continue?", g.Count, g.Threshold)
	default:
		return fmt.Sprintf("%d items selected (more than %d). Processing may take a while. Continue?",
			g.Count, g.Threshold)
	}
}

// Decision is the answer to a timeout.
type Decision int

// Timeout decisions.
const (
	DecisionStop Decision = iota
	DecisionContinue
)

// String returns the decision name.
func (d Decision) String() string {
	if d == DecisionContinue {
		return "continue"
	}
	return "stop"
}

// ParseDecision parses "continue" or "stop"; anything else is stop.
func ParseDecision(s string) Decision {
	if s == "continue" {
		return DecisionContinue
	}
	return DecisionStop
}

// Timeout describes a deadline hit at a chunk boundary.
type Timeout struct {
	Elapsed   time.Duration
	Processed int
	Total     int
	Extension int
}

// Prompter answers the scheduler's questions. Implementations may block on
// user input.
type Prompter interface {
	Confirm(ctx context.Context, gate Gate) bool
	OnTimeout(ctx context.Context, t Timeout) Decision
}

// AutoPrompter answers every question with fixed values. It is used for
// non-interactive runs and tests.
type AutoPrompter struct {
	Accept   bool
	Decision Decision

	// MaxExtensions bounds how many times DecisionContinue is returned; 0 means no bound.
	MaxExtensions int
}

// Confirm returns p.Accept.
func (p AutoPrompter) Confirm(context.Context, Gate) bool { return p.Accept }

// OnTimeout returns p.Decision until MaxExtensions continuations were granted.
func (p AutoPrompter) OnTimeout(_ context.Context, t Timeout) Decision {
	if p.Decision == DecisionContinue && p.MaxExtensions > 0 && t.Extension >= p.MaxExtensions {
		return DecisionStop
	}
	return p.Decision
}
