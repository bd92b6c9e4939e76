package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/cache"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{name: "default", params: NewParams()},
		{name: "offset mode", params: Params{Limit: 10, Offset: 20}},
		{name: "page mode", params: Params{Limit: 10, Page: 2}},
		{name: "no limit", params: Params{}},
		{name: "negative limit", params: Params{Limit: -1}, wantErr: ErrInvalidLimit},
		{name: "limit too large", params: Params{Limit: MaxLimit + 1}, wantErr: ErrInvalidLimit},
		{name: "negative offset", params: Params{Offset: -1}, wantErr: ErrNegativeOffset},
		{name: "negative page", params: Params{Page: -1}, wantErr: ErrNegativePage},
		{name: "mixed", params: Params{Limit: 5, Page: 1, Offset: 3}, wantErr: ErrMixedModes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		expr      string
		wantField string
		wantOrder string
		wantErr   error
	}{
		{"", "", SortOrderDesc, nil},
		{"failed", "failed", SortOrderDesc, nil},
		{"records:asc", "records", SortOrderAsc, nil},
		{" job : DESC ", "job", SortOrderDesc, nil},
		{"a:b:c", "", "", ErrInvalidSortFormat},
		{":asc", "", "", ErrInvalidSortFormat},
		{"job:sideways", "", "", ErrInvalidSortOrder},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			field, order, err := ParseSort(tt.expr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}

func TestApply(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name   string
		params Params
		want   []int
	}{
		{"first window", Params{Limit: 3}, []int{1, 2, 3}},
		{"offset", Params{Limit: 3, Offset: 5}, []int{6, 7}},
		{"page two", Params{Limit: 3, Page: 2}, []int{4, 5, 6}},
		{"last page", Params{Limit: 3, Page: 3}, []int{7}},
		{"past end", Params{Limit: 3, Offset: 10}, []int{}},
		{"unlimited", Params{}, items},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.params, items))
		})
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(Params{Limit: 3, Page: 2}, 7, 3)
	assert.Equal(t, Meta{CurrentPage: 2, PageSize: 3, TotalPages: 3, TotalItems: 7, Shown: 3, HasNext: true}, meta)

	meta = NewMeta(Params{Limit: 3, Offset: 6}, 7, 1)
	assert.Equal(t, 3, meta.CurrentPage)
	assert.False(t, meta.HasNext)

	meta = NewMeta(Params{}, 4, 4)
	assert.Equal(t, 1, meta.TotalPages)
	assert.False(t, meta.HasNext)

	assert.Zero(t, NewMeta(Params{}, 0, 0).TotalPages)
}

func TestSortJobs(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := []cache.JobSummary{
		{JobID: "b", Records: 10, Failed: 2, Phase: batch.PhaseCompleted, Finished: base},
		{JobID: "a", Records: 3, Failed: 0, Phase: batch.PhaseCancelled, Finished: base.Add(time.Hour)},
		{JobID: "c", Records: 7, Failed: 5, Phase: batch.PhaseCompleted, Finished: base.Add(-time.Hour)},
	}

	ids := func(js []cache.JobSummary) []string {
		out := make([]string, 0, len(js))
		for _, j := range js {
			out = append(out, j.JobID)
		}
		return out
	}

	sorted, err := SortJobs(jobs, "", SortOrderDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(sorted))

	sorted, err = SortJobs(jobs, "records", SortOrderAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids(sorted))

	sorted, err = SortJobs(jobs, "failed", SortOrderDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(sorted))

	assert.Equal(t, []string{"b", "a", "c"}, ids(jobs), "input is not modified")

	_, err = SortJobs(jobs, "savings", SortOrderAsc)
	assert.ErrorIs(t, err, ErrInvalidSortField)
	assert.Contains(t, JobSortFields(), "finished")
}
