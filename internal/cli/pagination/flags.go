package pagination

import (
	"errors"
	"fmt"
	"strings"
)

// Paging defaults and sort orders.
const (
	DefaultLimit     = 20
	MaxLimit         = 1000
	DefaultSortOrder = SortOrderDesc
	SortOrderAsc     = "asc"
	SortOrderDesc    = "desc"
)

// Validation errors.
var (
	ErrInvalidLimit      = fmt.Errorf("limit must be between 0 and %d", MaxLimit)
	ErrNegativeOffset    = errors.New("offset cannot be negative")
	ErrNegativePage      = errors.New("page cannot be negative")
	ErrMixedModes        = errors.New("--page and --offset are mutually exclusive")
	ErrInvalidSortFormat = errors.New("invalid sort format: use 'field' or 'field:order' (e.g., 'finished:desc')")
	ErrInvalidSortOrder  = errors.New("sort order must be 'asc' or 'desc'")
	ErrInvalidSortField  = errors.New("invalid sort field")
)

// Params holds paging flags. Page is 1-based and, when set, uses Limit as the
// page size; otherwise Offset and Limit apply directly. A Limit of 0 means no
// limit.
type Params struct {
	Limit     int
	Offset    int
	Page      int
	SortField string
	SortOrder string
}

// NewParams returns Params with default values.
func NewParams() Params {
	return Params{Limit: DefaultLimit, SortOrder: DefaultSortOrder}
}

// Validate checks bounds and mode exclusivity.
func (p Params) Validate() error {
	if p.Limit < 0 || p.Limit > MaxLimit {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, p.Limit)
	}
	if p.Offset < 0 {
		return ErrNegativeOffset
	}
	if p.Page < 0 {
		return ErrNegativePage
	}
	if p.Page > 0 && p.Offset > 0 {
		return ErrMixedModes
	}
	return nil
}

// ParseSort parses "field" or "field:order". An empty string yields an empty
// field and the default order.
//
//nolint:nonamedreturns // Named returns improve readability for this multi-value function.
func ParseSort(expr string) (field, order string, err error) {
	if strings.TrimSpace(expr) == "" {
		return "", DefaultSortOrder, nil
	}

	parts := strings.Split(expr, ":")
	switch len(parts) {
	case 1:
		field, order = strings.TrimSpace(parts[0]), DefaultSortOrder
	case 2: //nolint:mnd // field and order
		field = strings.TrimSpace(parts[0])
		order = strings.ToLower(strings.TrimSpace(parts[1]))
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSortFormat, expr)
	}

	if field == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSortFormat, expr)
	}
	if order != SortOrderAsc && order != SortOrderDesc {
		return "", "", fmt.Errorf("%w: got %q", ErrInvalidSortOrder, order)
	}
	return field, order, nil
}

// OffsetLimit returns the effective offset and limit.
//
//nolint:nonamedreturns // Named returns improve readability for this multi-value function.
func (p Params) OffsetLimit() (offset, limit int) {
	if p.Page > 0 {
		return (p.Page - 1) * p.Limit, p.Limit
	}
	return p.Offset, p.Limit
}

// Apply returns the window of items selected by p. An offset past the end
// yields an empty slice.
func Apply[T any](p Params, items []T) []T {
	offset, limit := p.OffsetLimit()
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
