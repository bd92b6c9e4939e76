package metrics_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/batch/batchtest"
	"github.com/rshade/varbatch/internal/hostapi/hosttest"
	"github.com/rshade/varbatch/internal/metrics"
)

func TestMetrics_ObservesJob(t *testing.T) {
	m := metrics.New()
	h := hosttest.New("a", "b", "c", "d", "e")
	s, err := batch.NewScheduler(batch.Options{
		Clock:    batchtest.NewClock(),
		Observer: m,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), h, hosttest.Upper(h, "item-2"))
	require.NoError(t, err)

	assert.InDelta(t, 4, testutil.ToFloat64(m.ItemsTotal.WithLabelValues(metrics.OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ItemsTotal.WithLabelValues(metrics.OutcomeFailed)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ChunksTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ReclaimsTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PhaseTransitions.WithLabelValues("running", "completed")), 0)
	assert.InDelta(t, float64(batch.PhaseCompleted), testutil.ToFloat64(m.Phase), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.ItemDurationSeconds))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := metrics.New()
	m.ChunkCompleted(0, 3)
	path := filepath.Join(t.TempDir(), "varbatch.prom")

	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "varbatch_job_chunks_total 1")
}

func TestMetrics_PrivateRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	a.ReclaimHinted()

	assert.InDelta(t, 1, testutil.ToFloat64(a.ReclaimsTotal), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.ReclaimsTotal), 0)
}
