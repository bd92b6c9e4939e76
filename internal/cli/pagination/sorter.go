package pagination

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/rshade/varbatch/internal/engine/cache"
)

// jobLess orders job summaries ascending by one field.
//
//nolint:gochecknoglobals // Static lookup table of sort fields.
var jobLess = map[string]func(a, b cache.JobSummary) bool{
	"finished":  func(a, b cache.JobSummary) bool { return a.Finished.Before(b.Finished) },
	"records":   func(a, b cache.JobSummary) bool { return a.Records < b.Records },
	"failed":    func(a, b cache.JobSummary) bool { return a.Failed < b.Failed },
	"job":       func(a, b cache.JobSummary) bool { return a.JobID < b.JobID },
	"operation": func(a, b cache.JobSummary) bool { return a.Operation < b.Operation },
	"phase":     func(a, b cache.JobSummary) bool { return a.Phase < b.Phase },
}

// JobSortFields returns the valid sort fields in a stable order.
func JobSortFields() []string {
	fields := make([]string, 0, len(jobLess))
	for f := range jobLess {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// SortJobs returns a sorted copy of jobs. An empty field sorts by finish time.
func SortJobs(jobs []cache.JobSummary, field, order string) ([]cache.JobSummary, error) {
	if field == "" {
		field = "finished"
	}
	less, ok := jobLess[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidSortField, field,
			strings.Join(JobSortFields(), ", "))
	}

	sorted := slices.Clone(jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if order == SortOrderDesc {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})
	return sorted, nil
}
