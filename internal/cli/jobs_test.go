package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/cache"
	"github.com/rshade/varbatch/internal/export"
)

// seedJobs stores n completed jobs in the result cache under home.
func seedJobs(t *testing.T, home string, n int) {
	t.Helper()
	fs, err := cache.NewFileStore(filepath.Join(home, "cache"), true, cache.DefaultTTLSeconds, 0)
	require.NoError(t, err)
	store := cache.NewResultStore(fs)
	base := time.Now().Add(-time.Hour)
	for i := range n {
		res := &batch.Result{
			JobID:    "01J00000000000000000000" + string(rune('A'+i)) + "00",
			Phase:    batch.PhaseCompleted,
			Records:  make([]batch.ItemRecord, i+1),
			Failed:   i % 2,
			Finished: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Save(res, cache.JobMeta{Operation: "setvar", Document: "doc.yaml"}))
	}
}

func TestJobsList(t *testing.T) {
	home := isolateCLI(t)

	stdout, _, err := executeCmd(t, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No cached jobs.")

	seedJobs(t, home, 5)

	stdout, _, err = executeCmd(t, "jobs", "list", "--limit", "2", "--sort", "records:desc")
	require.NoError(t, err)
	assert.Contains(t, stdout, "JOB")
	assert.Contains(t, stdout, "01J00000000000000000000E00")
	assert.Contains(t, stdout, "01J00000000000000000000D00")
	assert.NotContains(t, stdout, "01J00000000000000000000A00")
	assert.Contains(t, stdout, "Showing 2 of 5 jobs (page 1 of 3)")

	stdout, _, err = executeCmd(t, "jobs", "list", "--json", "--limit", "2", "--page", "3")
	require.NoError(t, err)
	var payload struct {
		Jobs       []cache.JobSummary `json:"jobs"`
		Pagination struct {
			CurrentPage int `json:"current_page"`
			TotalItems  int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Len(t, payload.Jobs, 1)
	assert.Equal(t, 3, payload.Pagination.CurrentPage)
	assert.Equal(t, 5, payload.Pagination.TotalItems)

	_, _, err = executeCmd(t, "jobs", "list", "--sort", "savings")
	assert.Error(t, err)
	_, _, err = executeCmd(t, "jobs", "list", "--page", "2", "--offset", "1")
	assert.Error(t, err)
}

func TestJobsClean(t *testing.T) {
	home := isolateCLI(t)
	seedJobs(t, home, 3)

	stdout, _, err := executeCmd(t, "jobs", "clean")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 0 expired jobs.")

	stdout, _, err = executeCmd(t, "jobs", "clean", "--job", "01J00000000000000000000A00")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed job")

	stdout, _, err = executeCmd(t, "jobs", "list", "--json")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "01J00000000000000000000A00")

	_, _, err = executeCmd(t, "jobs", "clean", "--all")
	require.NoError(t, err)
	stdout, _, err = executeCmd(t, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No cached jobs.")

	_, _, err = executeCmd(t, "jobs", "clean", "--all", "--job", "x")
	assert.Error(t, err)
}

func TestJobs_CacheDisabled(t *testing.T) {
	isolateCLI(t)
	t.Setenv(config.EnvCacheEnabled, "false")

	_, _, err := executeCmd(t, "jobs", "list")
	assert.ErrorIs(t, err, errCacheDisabled)
	_, _, err = executeCmd(t, "export", "--csv", filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, errCacheDisabled)
}

func TestExport_MissingJob(t *testing.T) {
	isolateCLI(t)
	_, _, err := executeCmd(t, "export", "--job", "01J9NOPE", "--csv", filepath.Join(t.TempDir(), "x.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in the result cache")

	_, _, err = executeCmd(t, "export", "--newline-mode", "crlf", "--csv", filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, export.ErrInvalidNewlineMode)
}

func TestJobsShow_Plain(t *testing.T) {
	home := isolateCLI(t)
	seedJobs(t, home, 2)

	stdout, _, err := executeCmd(t, "--plain", "jobs", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "setvar  completed")
	assert.Contains(t, stdout, "records shown.")

	stdout, _, err = executeCmd(t, "--plain", "jobs", "show", "01J00000000000000000000B00")
	require.NoError(t, err)
	assert.Contains(t, stdout, "01J00000000000000000000B00  setvar  completed")
	assert.Contains(t, stdout, "INDEX")
	assert.Contains(t, stdout, "2 of 2 records shown.")

	stdout, _, err = executeCmd(t, "--plain", "jobs", "show", "01J00000000000000000000A00", "--failed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 of 1 records shown.")

	_, _, err = executeCmd(t, "--plain", "jobs", "show", "01J9NOPE")
	assert.Error(t, err)
}
