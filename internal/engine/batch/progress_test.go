package batch

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		current, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{5, 10, 50},
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.current, tt.total), "%d/%d", tt.current, tt.total)
	}
}

func TestProgress_Tracking(t *testing.T) {
	clock := &fakeNow{t: time.Date(2025, 8, 17, 9, 0, 0, 0, time.UTC)}
	p := newProgress(10, 3, clock.now)

	assert.Equal(t, 0, p.PercentComplete())
	assert.False(t, p.IsComplete())
	assert.Zero(t, p.EstimatedTimeRemaining())

	clock.advance(4 * time.Second)
	p.Report(4, 10)

	assert.Equal(t, 40, p.PercentComplete())
	assert.Equal(t, 1, p.ProcessedChunks())
	assert.Equal(t, 4*time.Second, p.ElapsedTime())
	assert.InDelta(t, 1.0, p.ItemsPerSecond(), 0.001)
	assert.Equal(t, 6*time.Second, p.EstimatedTimeRemaining())

	clock.advance(6 * time.Second)
	p.Report(10, 10)
	assert.True(t, p.IsComplete())
	assert.Zero(t, p.EstimatedTimeRemaining())

	snap := p.Snapshot()
	assert.Equal(t, 10, snap.ProcessedItems)
	assert.Equal(t, 3, snap.ProcessedChunks)
	assert.Equal(t, 100, snap.PercentComplete)
	assert.Equal(t, 10*time.Second, snap.ElapsedTime)
}

func TestProgress_ZeroChunkSize(t *testing.T) {
	p := NewProgress(5, 0)
	p.Report(5, 5)
	assert.Equal(t, 0, p.ProcessedChunks())
}

func TestProgress_Reset(t *testing.T) {
	clock := &fakeNow{t: time.Date(2025, 8, 17, 9, 0, 0, 0, time.UTC)}
	p := newProgress(4, 2, clock.now)
	clock.advance(time.Second)
	p.Report(2, 4)

	clock.advance(time.Second)
	p.Reset()
	assert.Equal(t, 0, p.ProcessedItems)
	assert.Equal(t, clock.now(), p.StartTime)
	assert.Zero(t, p.ElapsedTime())
}

func TestProgress_ConcurrentAccess(t *testing.T) {
	p := NewProgress(100, 3)
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			p.Report(n, 100)
		}(i)
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, p.PercentComplete(), 100)
}

func TestMultiReporter(t *testing.T) {
	var a, b []int
	m := MultiReporter{
		ReporterFunc(func(c, _ int) { a = append(a, c) }),
		nil,
		ReporterFunc(func(c, _ int) { b = append(b, c) }),
	}
	m.Report(1, 2)
	m.Report(2, 2)
	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, b)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := LogReporter{Logger: zerolog.New(&buf)}
	r.Report(1, 3)
	require.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), `"percent":33`)
	assert.Contains(t, buf.String(), `"message":"progress"`)
}

func TestPhase_Text(t *testing.T) {
	for p := PhaseIdle; p <= PhaseCancelled; p++ {
		b, err := p.MarshalText()
		require.NoError(t, err)
		var got Phase
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, p, got)
	}
	var bad Phase
	assert.Error(t, bad.UnmarshalText([]byte("paused")))
	assert.True(t, PhaseCancelled.Terminal())
	assert.False(t, PhaseTimedOut.Terminal())
}
