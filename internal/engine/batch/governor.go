package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resource policy defaults.
const (
	// MaxChunkCeiling is the absolute chunk size limit. No configuration can raise it.
	MaxChunkCeiling = 3

	// DefaultChunkSize is the default number of items per chunk.
	DefaultChunkSize = 3

	// DefaultSoftThreshold is the item count above which a first confirmation is required.
	DefaultSoftThreshold = 50

	// DefaultHardThreshold is the item count above which a second, stronger confirmation is required.
	DefaultHardThreshold = 100

	// DefaultExportSoftLimit is the record count above which exporting requires confirmation.
	DefaultExportSoftLimit = 25

	// StrictMaxItems is the processing cap of the strict profile.
	StrictMaxItems = 30

	// StrictSoftThreshold is the first item gate of the strict profile.
	StrictSoftThreshold = 25

	// DefaultSettleDelay is the pause after each opaque operation call.
	DefaultSettleDelay = 200 * time.Millisecond

	// DefaultChunkPause is the pause between chunks.
	DefaultChunkPause = time.Second

	// DefaultDeadline is the maximum uninterrupted run before asking to continue.
	DefaultDeadline = 5 * time.Minute

	// DefaultMaxTextLength caps captured post-operation text, in runes.
	DefaultMaxTextLength = 300

	// TextEllipsis marks truncated captured text.
	TextEllipsis = "…"
)

// Profile names.
const (
	ProfileStandard = "standard"
	ProfileStrict   = "strict"
	ProfileRelaxed  = "relaxed"
)

// Governor errors.
var (
	ErrInvalidChunkSize = fmt.Errorf("chunk size must be between 1 and %d", MaxChunkCeiling)
	ErrInvalidThreshold = errors.New("soft threshold must not exceed hard threshold")
	ErrInvalidTiming    = errors.New("invalid timing configuration")
	ErrUnknownProfile   = errors.New("unknown governor profile")
	ErrInvalidReclaim   = errors.New("invalid reclaim policy")
)

// ReclaimMode selects when the reclamation hint fires.
type ReclaimMode int

// Reclaim modes.
const (
	ReclaimChunk ReclaimMode = iota
	ReclaimItem
	ReclaimEveryN
	ReclaimNever
)

// ReclaimPolicy says how often the reclamation hint is invoked.
type ReclaimPolicy struct {
	Mode  ReclaimMode
	Every int
}

// ParseReclaimPolicy parses "item", "chunk", "never" or "n:<count>".
func ParseReclaimPolicy(s string) (ReclaimPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "chunk":
		return ReclaimPolicy{Mode: ReclaimChunk}, nil
	case "item":
		return ReclaimPolicy{Mode: ReclaimItem}, nil
	case "never", "none":
		return ReclaimPolicy{Mode: ReclaimNever}, nil
	}

	if rest, ok := strings.CutPrefix(s, "n:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return ReclaimPolicy{}, fmt.Errorf("%w: %q", ErrInvalidReclaim, s)
		}
		return ReclaimPolicy{Mode: ReclaimEveryN, Every: n}, nil
	}

	return ReclaimPolicy{}, fmt.Errorf("%w: %q", ErrInvalidReclaim, s)
}

// String renders the policy in the form accepted by ParseReclaimPolicy.
func (p ReclaimPolicy) String() string {
	switch p.Mode {
	case ReclaimItem:
		return "item"
	case ReclaimEveryN:
		return "n:" + strconv.Itoa(p.Every)
	case ReclaimNever:
		return "never"
	default:
		return "chunk"
	}
}

// Governor holds the safety thresholds read by the scheduler and the item
// processor. It performs no processing itself.
type Governor struct {
	ChunkSize       int
	SoftThreshold   int
	HardThreshold   int
	MaxItems        int
	ExportSoftLimit int
	SettleDelay     time.Duration
	ChunkPause      time.Duration
	Deadline        time.Duration
	Reclaim         ReclaimPolicy
	MaxTextLength   int
}

// DefaultGovernor returns the standard profile.
func DefaultGovernor() Governor {
	return Governor{
		ChunkSize:       DefaultChunkSize,
		SoftThreshold:   DefaultSoftThreshold,
		HardThreshold:   DefaultHardThreshold,
		ExportSoftLimit: DefaultExportSoftLimit,
		SettleDelay:     DefaultSettleDelay,
		ChunkPause:      DefaultChunkPause,
		Deadline:        DefaultDeadline,
		Reclaim:         ReclaimPolicy{Mode: ReclaimChunk},
		MaxTextLength:   DefaultMaxTextLength,
	}
}

// GovernorForProfile returns the named preset.
//
// strict is for hosts that degrade quickly: two items per chunk, a longer
// pause, a hint after every item and a hard cap of StrictMaxItems.
// relaxed shortens the pauses for hosts that tolerate load.
func GovernorForProfile(name string) (Governor, error) {
	g := DefaultGovernor()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileStandard:
		return g, nil
	case ProfileStrict:
		g.ChunkSize = 2
		g.SoftThreshold = StrictSoftThreshold
		g.MaxItems = StrictMaxItems
		g.ChunkPause = 2 * time.Second
		g.Reclaim = ReclaimPolicy{Mode: ReclaimItem}
		g.MaxTextLength = DefaultMaxTextLength
		return g, nil
	case ProfileRelaxed:
		g.SettleDelay = 100 * time.Millisecond
		g.ChunkPause = 500 * time.Millisecond
		g.Reclaim = ReclaimPolicy{Mode: ReclaimEveryN, Every: 10}
		return g, nil
	default:
		return Governor{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// Validate checks the policy for internal consistency.
func (g Governor) Validate() error {
	if g.ChunkSize < 1 || g.ChunkSize > MaxChunkCeiling {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, g.ChunkSize)
	}
	if g.SoftThreshold < 0 || g.HardThreshold < 0 || g.SoftThreshold > g.HardThreshold {
		return fmt.Errorf("%w: soft=%d hard=%d", ErrInvalidThreshold, g.SoftThreshold, g.HardThreshold)
	}
	if g.SettleDelay < 0 || g.ChunkPause < 0 || g.Deadline < 0 {
		return fmt.Errorf("%w: durations must be non-negative", ErrInvalidTiming)
	}
	if g.ChunkPause < g.SettleDelay {
		return fmt.Errorf("%w: chunk pause %s is shorter than settle delay %s",
			ErrInvalidTiming, g.ChunkPause, g.SettleDelay)
	}
	if g.MaxItems < 0 || g.MaxTextLength < 0 || g.ExportSoftLimit < 0 {
		return errors.New("limits must be non-negative")
	}
	if g.Reclaim.Mode == ReclaimEveryN && g.Reclaim.Every < 1 {
		return fmt.Errorf("%w: every must be >= 1", ErrInvalidReclaim)
	}
	return nil
}

// ClampChunk returns the chunk size actually used for a caller hint.
// Hints above the governor ceiling (or MaxChunkCeiling) are clamped; hints
// below 1 select the governor default.
func (g Governor) ClampChunk(hint int) int {
	ceiling := min(max(g.ChunkSize, 1), MaxChunkCeiling)
	if hint < 1 || hint > ceiling {
		return ceiling
	}
	return hint
}

// Gates returns the confirmations required before processing n items, in the
// order they must be asked.
func (g Governor) Gates(n int) []Gate {
	var gates []Gate
	if n > g.SoftThreshold {
		gates = append(gates, Gate{Level: GateSoft, Count: n, Threshold: g.SoftThreshold})
	}
	if n > g.HardThreshold {
		gates = append(gates, Gate{Level: GateHard, Count: n, Threshold: g.HardThreshold})
	}
	return gates
}

// ExportGate returns the confirmation required before exporting n records, if any.
func (g Governor) ExportGate(n int) (Gate, bool) {
	if g.ExportSoftLimit > 0 && n > g.ExportSoftLimit {
		return Gate{Level: GateExport, Count: n, Threshold: g.ExportSoftLimit}, true
	}
	return Gate{}, false
}

// CapItems returns how many of n items may be processed.
func (g Governor) CapItems(n int) int {
	if g.MaxItems > 0 && n > g.MaxItems {
		return g.MaxItems
	}
	return max(n, 0)
}

// ReclaimAfterItem reports whether the hint fires after the processed-th item.
func (g Governor) ReclaimAfterItem(processed int) bool {
	switch g.Reclaim.Mode {
	case ReclaimItem:
		return true
	case ReclaimEveryN:
		return g.Reclaim.Every > 0 && processed%g.Reclaim.Every == 0
	default:
		return false
	}
}

// ReclaimAfterChunk reports whether the hint fires at a chunk boundary.
func (g Governor) ReclaimAfterChunk() bool {
	return g.Reclaim.Mode == ReclaimChunk
}
