// Package hostapi defines the contracts between the batch engine and the host
// that owns the object collection, the active selection and the opaque
// per-item operation.
//
// The engine never mutates items directly. Everything it learns about an item
// goes through Host, and everything it does to an item goes through Operation.
package hostapi

import (
	"context"
	"errors"
	"fmt"
)

// Well-known object kinds reported by hosts.
const (
	// KindUnknown is the default kind when the host does not report one.
	KindUnknown = "Unknown"

	// KindError is substituted when reading the kind itself fails.
	KindError = "Error"

	// KindText marks text-bearing objects whose contents are captured.
	KindText = "TextFrame"
)

// Host errors.
var (
	// ErrItemNotFound is returned when a handle is no longer valid at dispatch time.
	ErrItemNotFound = errors.New("item not found")

	// ErrUnknownOperation is returned when an action name is not registered.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Item is an opaque handle into the host collection.
type Item interface {
	// ID returns a stable host-side identifier, used only for diagnostics.
	ID() string
}

// Host exposes the ordered collection and the per-item accessors.
// Indexes are 1-based.
type Host interface {
	// Len returns the number of items in the collection.
	Len() (int, error)

	// Item returns the handle at index, or an error wrapping ErrItemNotFound.
	Item(index int) (Item, error)

	// ClearSelection empties the active selection.
	ClearSelection() error

	// Select marks item as the sole active target.
	Select(item Item) error

	// Kind reports the object kind of item.
	Kind(item Item) (string, error)

	// Text reports the visible text of item. ok is false when the item has none.
	Text(item Item) (text string, ok bool, err error)

	// VariableCount reports the number of variables defined in the document.
	VariableCount() (int, error)
}

// Operation is the opaque action applied to the active item.
type Operation interface {
	Name() string
	Apply(ctx context.Context, item Item) error
}

// OperationFunc adapts a plain function to Operation.
type OperationFunc struct {
	OpName string
	Fn     func(ctx context.Context, item Item) error
}

// Name returns the operation name.
func (f OperationFunc) Name() string { return f.OpName }

// Apply calls f.Fn.
func (f OperationFunc) Apply(ctx context.Context, item Item) error {
	if f.Fn == nil {
		return fmt.Errorf("operation %q has no implementation", f.OpName)
	}
	return f.Fn(ctx, item)
}

// NotFound builds an ErrItemNotFound error for the given 1-based index.
func NotFound(index int) error {
	return fmt.Errorf("item %d: %w", index, ErrItemNotFound)
}
