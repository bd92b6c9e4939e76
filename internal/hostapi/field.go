package hostapi

import (
	"fmt"
)

// Field is the outcome of one best-effort host read: the value actually read,
// or the default when the read failed. Err is kept for logging only.
type Field[T any] struct {
	Value   T
	Err     error
	Default bool
}

// OK reports whether the value came from the host.
func (f Field[T]) OK() bool {
	return !f.Default
}

// Read runs fn and converts any failure, including a panic inside the host,
// into a defaulted Field. It never panics and never returns an error.
func Read[T any](fn func() (T, error), def T) (field Field[T]) {
	defer func() {
		if r := recover(); r != nil {
			field = Field[T]{Value: def, Err: fmt.Errorf("host panic: %v", r), Default: true}
		}
	}()

	if fn == nil {
		return Field[T]{Value: def, Default: true}
	}

	v, err := fn()
	if err != nil {
		return Field[T]{Value: def, Err: err, Default: true}
	}
	return Field[T]{Value: v}
}

// Try runs fn, recovering a panic into the returned error.
func Try(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host panic: %v", r)
		}
	}()
	return fn()
}
