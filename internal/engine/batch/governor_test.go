package batch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/engine/batch"
)

func TestGovernor_ClampChunk(t *testing.T) {
	tests := []struct {
		name      string
		ceiling   int
		hint      int
		wantChunk int
	}{
		{"hint within ceiling", 3, 2, 2},
		{"hint at ceiling", 3, 3, 3},
		{"hint above ceiling is clamped", 3, 50, 3},
		{"zero hint uses ceiling", 3, 0, 3},
		{"negative hint uses ceiling", 3, -4, 3},
		{"strict ceiling", 2, 3, 2},
		{"misconfigured ceiling cannot exceed hard limit", 10, 10, batch.MaxChunkCeiling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := batch.DefaultGovernor()
			g.ChunkSize = tt.ceiling
			assert.Equal(t, tt.wantChunk, g.ClampChunk(tt.hint))
		})
	}
}

func TestGovernor_Gates(t *testing.T) {
	g := batch.DefaultGovernor()

	assert.Empty(t, g.Gates(0))
	assert.Empty(t, g.Gates(50))

	gates := g.Gates(51)
	require.Len(t, gates, 1)
	assert.Equal(t, batch.GateSoft, gates[0].Level)
	assert.Equal(t, 50, gates[0].Threshold)

	gates = g.Gates(120)
	require.Len(t, gates, 2)
	assert.Equal(t, batch.GateSoft, gates[0].Level)
	assert.Equal(t, batch.GateHard, gates[1].Level)
	assert.Equal(t, 120, gates[1].Count)
	assert.Contains(t, gates[1].Message(), "120")
}

func TestGovernor_ExportGate(t *testing.T) {
	g := batch.DefaultGovernor()

	_, ok := g.ExportGate(25)
	assert.False(t, ok)

	gate, ok := g.ExportGate(26)
	require.True(t, ok)
	assert.Equal(t, batch.GateExport, gate.Level)
	assert.Contains(t, gate.Message(), "26 variables")
}

func TestGovernor_CapItems(t *testing.T) {
	g := batch.DefaultGovernor()
	assert.Equal(t, 500, g.CapItems(500))
	assert.Equal(t, 0, g.CapItems(-1))

	strict, err := batch.GovernorForProfile(batch.ProfileStrict)
	require.NoError(t, err)
	assert.Equal(t, 30, strict.CapItems(45))
	assert.Equal(t, 12, strict.CapItems(12))
	assert.Equal(t, batch.StrictSoftThreshold, strict.SoftThreshold)
	assert.Equal(t, batch.DefaultExportSoftLimit, strict.ExportSoftLimit, "the export gate keeps its own limit")
	gates := strict.Gates(batch.StrictSoftThreshold + 1)
	require.Len(t, gates, 1)
	assert.Equal(t, batch.GateSoft, gates[0].Level)
	assert.Equal(t, batch.StrictSoftThreshold, gates[0].Threshold)
	assert.Empty(t, strict.Gates(batch.StrictSoftThreshold))
}

func TestGovernor_Profiles(t *testing.T) {
	for _, name := range []string{"", batch.ProfileStandard, batch.ProfileStrict, batch.ProfileRelaxed, "STRICT"} {
		t.Run(name, func(t *testing.T) {
			g, err := batch.GovernorForProfile(name)
			require.NoError(t, err)
			require.NoError(t, g.Validate())
			assert.LessOrEqual(t, g.ChunkSize, batch.MaxChunkCeiling)
			assert.GreaterOrEqual(t, g.ChunkPause, g.SettleDelay)
		})
	}

	_, err := batch.GovernorForProfile("turbo")
	assert.ErrorIs(t, err, batch.ErrUnknownProfile)
}

func TestGovernor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*batch.Governor)
		wantErr error
	}{
		{"default", func(*batch.Governor) {}, nil},
		{"chunk zero", func(g *batch.Governor) { g.ChunkSize = 0 }, batch.ErrInvalidChunkSize},
		{"chunk above ceiling", func(g *batch.Governor) { g.ChunkSize = 4 }, batch.ErrInvalidChunkSize},
		{"soft above hard", func(g *batch.Governor) { g.SoftThreshold = 200 }, batch.ErrInvalidThreshold},
		{"negative settle", func(g *batch.Governor) { g.SettleDelay = -time.Second }, batch.ErrInvalidTiming},
		{"pause shorter than settle", func(g *batch.Governor) { g.ChunkPause = 100 * time.Millisecond }, batch.ErrInvalidTiming},
		{"bad reclaim", func(g *batch.Governor) { g.Reclaim = batch.ReclaimPolicy{Mode: batch.ReclaimEveryN} }, batch.ErrInvalidReclaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := batch.DefaultGovernor()
			tt.mutate(&g)
			err := g.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseReclaimPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    batch.ReclaimPolicy
		wantErr bool
	}{
		{"", batch.ReclaimPolicy{Mode: batch.ReclaimChunk}, false},
		{"chunk", batch.ReclaimPolicy{Mode: batch.ReclaimChunk}, false},
		{"item", batch.ReclaimPolicy{Mode: batch.ReclaimItem}, false},
		{"never", batch.ReclaimPolicy{Mode: batch.ReclaimNever}, false},
		{"n:5", batch.ReclaimPolicy{Mode: batch.ReclaimEveryN, Every: 5}, false},
		{"n:0", batch.ReclaimPolicy{}, true},
		{"n:x", batch.ReclaimPolicy{}, true},
		{"sometimes", batch.ReclaimPolicy{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := batch.ParseReclaimPolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, batch.ErrInvalidReclaim)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestGovernor_Reclaim(t *testing.T) {
	g := batch.DefaultGovernor()
	assert.True(t, g.ReclaimAfterChunk())
	assert.False(t, g.ReclaimAfterItem(1))

	g.Reclaim = batch.ReclaimPolicy{Mode: batch.ReclaimEveryN, Every: 4}
	assert.False(t, g.ReclaimAfterChunk())
	assert.False(t, g.ReclaimAfterItem(3))
	assert.True(t, g.ReclaimAfterItem(4))
	assert.True(t, g.ReclaimAfterItem(8))
}
