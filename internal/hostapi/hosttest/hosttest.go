// Package hosttest provides an in-memory Host for tests.
package hosttest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rshade/varbatch/internal/hostapi"
)

// Object is one entry in the fake collection.
type Object struct {
	Key     string
	Kind    string
	Text    string
	Missing bool
}

type handle struct{ key string }

func (h handle) ID() string { return h.key }

// Host is a thread-safe in-memory host. Failure hooks are keyed by 1-based
// index or by item key.
type Host struct {
	mu        sync.Mutex
	objects   []Object
	variables int
	selected  map[string]bool

	// SelectErr makes Select fail for the given keys.
	SelectErr map[string]error
	// KindErr makes Kind fail for the given keys.
	KindErr map[string]error
	// TextPanic makes Text panic for the given keys.
	TextPanic map[string]bool
	// LenPanics makes Len panic.
	LenPanics bool
	// LenErr makes Len fail.
	LenErr error

	// Log records every host call in order, e.g. "clear", "select:item-1".
	Log []string
}

// New builds a host whose items are text frames with the given texts.
func New(texts ...string) *Host {
	objs := make([]Object, len(texts))
	for i, t := range texts {
		objs[i] = Object{Key: fmt.Sprintf("item-%d", i+1), Kind: hostapi.KindText, Text: t}
	}
	return NewWithObjects(objs...)
}

// NewWithObjects builds a host from explicit objects.
func NewWithObjects(objs ...Object) *Host {
	return &Host{
		objects:   objs,
		selected:  map[string]bool{},
		SelectErr: map[string]error{},
		KindErr:   map[string]error{},
		TextPanic: map[string]bool{},
	}
}

// Len returns the number of objects.
func (h *Host) Len() (int, error) {
	if h.LenPanics {
		panic("len unavailable")
	}
	if h.LenErr != nil {
		return 0, h.LenErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects), nil
}

// Item returns the handle at a 1-based index.
func (h *Host) Item(index int) (hostapi.Item, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 1 || index > len(h.objects) || h.objects[index-1].Missing {
		return nil, hostapi.NotFound(index)
	}
	return handle{key: h.objects[index-1].Key}, nil
}

// ClearSelection empties the selection.
func (h *Host) ClearSelection() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = map[string]bool{}
	h.Log = append(h.Log, "clear")
	return nil
}

// Select adds item to the selection.
func (h *Host) Select(item hostapi.Item) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.SelectErr[item.ID()]; err != nil {
		return err
	}
	h.selected[item.ID()] = true
	h.Log = append(h.Log, "select:"+item.ID())
	return nil
}

// Selected returns the keys currently selected.
func (h *Host) Selected() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, o := range h.objects {
		if h.selected[o.Key] {
			out = append(out, o.Key)
		}
	}
	return out
}

// Kind returns the object kind.
func (h *Host) Kind(item hostapi.Item) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.KindErr[item.ID()]; err != nil {
		return "", err
	}
	o, err := h.find(item)
	if err != nil {
		return "", err
	}
	return o.Kind, nil
}

// Text returns the object text for text frames.
func (h *Host) Text(item hostapi.Item) (string, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.TextPanic[item.ID()] {
		panic("text accessor crashed")
	}
	o, err := h.find(item)
	if err != nil {
		return "", false, err
	}
	if o.Kind != hostapi.KindText {
		return "", false, nil
	}
	return o.Text, true, nil
}

// SetText replaces the text of item.
func (h *Host) SetText(item hostapi.Item, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.objects {
		if h.objects[i].Key == item.ID() {
			h.objects[i].Text = text
			return nil
		}
	}
	return hostapi.ErrItemNotFound
}

// VariableCount returns the number of variables created so far.
func (h *Host) VariableCount() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.variables, nil
}

// AddVariable increments the variable count.
func (h *Host) AddVariable() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.variables++
}

func (h *Host) find(item hostapi.Item) (Object, error) {
	for _, o := range h.objects {
		if o.Key == item.ID() {
			return o, nil
		}
	}
	return Object{}, hostapi.ErrItemNotFound
}

// Upper is an operation that upper-cases the active item and creates a variable.
// Items whose key is listed in Fail return an error instead, after the text was
// already changed, to mimic a host action that fails half-way.
func Upper(h *Host, fail ...string) hostapi.Operation {
	failing := map[string]bool{}
	for _, k := range fail {
		failing[k] = true
	}
	return hostapi.OperationFunc{OpName: "upper", Fn: func(_ context.Context, item hostapi.Item) error {
		text, _, err := h.Text(item)
		if err != nil {
			return err
		}
		if err = h.SetText(item, strings.ToUpper(text)); err != nil {
			return err
		}
		h.AddVariable()
		if failing[item.ID()] {
			return errors.New("action failed")
		}
		return nil
	}}
}
