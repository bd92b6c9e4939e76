package batch

import (
	"fmt"
	"time"
)

// Phase is the scheduler state.
type Phase int

// Scheduler phases. TimedOut is transient: it resolves to Running or Cancelled
// once the continuation decision is made.
const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseTimedOut
	PhaseCompleted
	PhaseCancelled
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseTimedOut:
		return "timed_out"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name so cached results stay readable.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for c := PhaseIdle; c <= PhaseCancelled; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// Terminal reports whether no further transition is possible for the job.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// JobState is the per-job state owned by one Scheduler. It is reset when a job
// starts and is only read through Scheduler.State snapshots.
type JobState struct {
	ID              string
	Total           int
	Processed       int
	CancelRequested bool
	StartTime       time.Time
	Deadline        time.Time
	Phase           Phase
}
