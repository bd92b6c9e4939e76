package hostapi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/hostapi"
)

func TestRead(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		f := hostapi.Read(func() (string, error) { return "TextFrame", nil }, hostapi.KindUnknown)
		assert.True(t, f.OK())
		assert.Equal(t, "TextFrame", f.Value)
		assert.NoError(t, f.Err)
	})

	t.Run("error yields default", func(t *testing.T) {
		f := hostapi.Read(func() (int, error) { return 7, errors.New("boom") }, 0)
		assert.False(t, f.OK())
		assert.Equal(t, 0, f.Value)
		assert.EqualError(t, f.Err, "boom")
	})

	t.Run("panic yields default", func(t *testing.T) {
		f := hostapi.Read(func() (string, error) { panic("host crashed") }, "fallback")
		assert.False(t, f.OK())
		assert.Equal(t, "fallback", f.Value)
		require.Error(t, f.Err)
		assert.Contains(t, f.Err.Error(), "host crashed")
	})

	t.Run("nil func", func(t *testing.T) {
		f := hostapi.Read[string](nil, "x")
		assert.False(t, f.OK())
		assert.Equal(t, "x", f.Value)
	})
}

func TestTry(t *testing.T) {
	assert.NoError(t, hostapi.Try(func() error { return nil }))
	assert.EqualError(t, hostapi.Try(func() error { return errors.New("nope") }), "nope")

	err := hostapi.Try(func() error { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host panic: bad")
}

func TestOperationFunc(t *testing.T) {
	called := false
	op := hostapi.OperationFunc{OpName: "noop", Fn: func(context.Context, hostapi.Item) error {
		called = true
		return nil
	}}
	assert.Equal(t, "noop", op.Name())
	require.NoError(t, op.Apply(context.Background(), nil))
	assert.True(t, called)

	empty := hostapi.OperationFunc{OpName: "empty"}
	assert.Error(t, empty.Apply(context.Background(), nil))
}

func TestNotFound(t *testing.T) {
	err := hostapi.NotFound(4)
	assert.ErrorIs(t, err, hostapi.ErrItemNotFound)
	assert.Equal(t, "item 4: item not found", err.Error())
}
