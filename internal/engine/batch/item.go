package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rshade/varbatch/internal/hostapi"
)

// PreState is captured before the operation runs.
type PreState struct {
	Index        int    `json:"index"`
	ObjectKind   string `json:"object_kind"`
	OriginalText string `json:"original_text"`
}

// PostState is captured after the operation and the settle delay.
type PostState struct {
	CurrentText   string `json:"current_text"`
	HasVariables  bool   `json:"has_variables"`
	VariableCount int    `json:"variable_count"`
}

// ItemRecord is the immutable outcome of processing one item.
type ItemRecord struct {
	Index int       `json:"index"`
	Pre   PreState  `json:"pre"`
	Post  PostState `json:"post"`
	Error string    `json:"error,omitempty"`
}

// Failed reports whether any item-level failure was recorded.
func (r ItemRecord) Failed() bool {
	return r.Error != ""
}

// ItemProcessor applies the opaque operation to a single item.
type ItemProcessor struct {
	governor Governor
	clock    Clock
	logger   zerolog.Logger
}

// NewItemProcessor creates an item processor. A nil clock means the wall clock.
func NewItemProcessor(g Governor, clock Clock, logger zerolog.Logger) *ItemProcessor {
	if clock == nil {
		clock = RealClock()
	}
	return &ItemProcessor{governor: g, clock: clock, logger: logger}
}

// Process runs the full select/capture/apply/settle/capture cycle for the
// item at the 1-based index. It never panics and never returns an error:
// every failure ends up in the record.
func (p *ItemProcessor) Process(
	ctx context.Context,
	h hostapi.Host,
	index int,
	op hostapi.Operation,
) (rec ItemRecord) {
	rec = ItemRecord{
		Index: index,
		Pre:   PreState{Index: index, ObjectKind: hostapi.KindUnknown},
	}

	defer func() {
		if r := recover(); r != nil {
			rec.Error = joinError(rec.Error, fmt.Sprintf("panic: %v", r))
		}
		if rec.Failed() {
			p.logger.Warn().
				Int("item_index", index).
				Str("error", rec.Error).
				Msg("item failed")
		}
	}()

	item, err := p.resolve(h, index)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	// The selection is cleared on the way out whatever happened below.
	defer p.release(h, index)

	if err = hostapi.Try(h.ClearSelection); err != nil {
		rec.Error = fmt.Sprintf("clear selection: %v", err)
		return rec
	}
	if err = hostapi.Try(func() error { return h.Select(item) }); err != nil {
		rec.Error = fmt.Sprintf("select item %d: %v", index, err)
		return rec
	}

	rec.Pre = p.capturePre(h, item, index)

	if err = hostapi.Try(func() error { return op.Apply(ctx, item) }); err != nil {
		// Keep going: whatever post state is still readable is worth recording.
		rec.Error = fmt.Sprintf("%s: %v", op.Name(), err)
	}

	_ = p.clock.Sleep(context.WithoutCancel(ctx), p.governor.SettleDelay)

	rec.Post = p.capturePost(h, item)
	return rec
}

func (p *ItemProcessor) resolve(h hostapi.Host, index int) (hostapi.Item, error) {
	f := hostapi.Read(func() (hostapi.Item, error) { return h.Item(index) }, nil)
	if f.OK() && f.Value != nil {
		return f.Value, nil
	}
	if f.Err == nil || errors.Is(f.Err, hostapi.ErrItemNotFound) {
		return nil, hostapi.NotFound(index)
	}
	return nil, fmt.Errorf("%w: %v", hostapi.NotFound(index), f.Err)
}

func (p *ItemProcessor) release(h hostapi.Host, index int) {
	if err := hostapi.Try(h.ClearSelection); err != nil {
		p.logger.Debug().Err(err).Int("item_index", index).Msg("clearing selection after item failed")
	}
}

func (p *ItemProcessor) capturePre(h hostapi.Host, item hostapi.Item, index int) PreState {
	pre := PreState{Index: index, ObjectKind: hostapi.KindUnknown}

	kind := hostapi.Read(func() (string, error) { return h.Kind(item) }, hostapi.KindError)
	switch {
	case !kind.OK():
		pre.ObjectKind = hostapi.KindError
	case kind.Value != "":
		pre.ObjectKind = kind.Value
	}

	pre.OriginalText = readText(h, item).Value
	return pre
}

func (p *ItemProcessor) capturePost(h hostapi.Host, item hostapi.Item) PostState {
	text := readText(h, item).Value
	count := hostapi.Read(h.VariableCount, 0).Value

	return PostState{
		CurrentText:   truncateText(text, p.governor.MaxTextLength),
		HasVariables:  count > 0,
		VariableCount: count,
	}
}

func readText(h hostapi.Host, item hostapi.Item) hostapi.Field[string] {
	return hostapi.Read(func() (string, error) {
		s, ok, err := h.Text(item)
		if err != nil || !ok {
			return "", err
		}
		return s, nil
	}, "")
}

// truncateText caps s at limit runes, marking the cut with TextEllipsis.
func truncateText(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + TextEllipsis
}

func joinError(existing, msg string) string {
	if existing == "" {
		return msg
	}
	return strings.Join([]string{existing, msg}, "; ")
}
