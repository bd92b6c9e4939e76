package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/varbatch/internal/engine/batch"
)

// JobMeta describes where a result came from.
type JobMeta struct {
	Operation string `json:"operation"`
	Document  string `json:"document,omitempty"`
}

// StoredResult is a job result as kept on disk.
type StoredResult struct {
	JobMeta

	Result *batch.Result `json:"result"`
}

// JobSummary is the listing view of a stored result.
type JobSummary struct {
	JobID     string
	Operation string
	Document  string
	Phase     batch.Phase
	Records   int
	Failed    int
	Finished  time.Time
	ExpiresIn time.Duration
}

// ResultStore persists job results keyed by job ID.
type ResultStore struct {
	store *FileStore
}

// NewResultStore wraps a FileStore.
func NewResultStore(store *FileStore) *ResultStore {
	return &ResultStore{store: store}
}

// Enabled reports whether results are persisted at all.
func (r *ResultStore) Enabled() bool {
	return r != nil && r.store != nil && r.store.IsEnabled()
}

// Save stores res under its job ID.
func (r *ResultStore) Save(res *batch.Result, meta JobMeta) error {
	if res == nil || res.JobID == "" {
		return ErrInvalidCacheKey
	}
	data, err := json.Marshal(StoredResult{JobMeta: meta, Result: res})
	if err != nil {
		return fmt.Errorf("encode result %s: %w", res.JobID, err)
	}
	return r.store.Set(res.JobID, data)
}

// Load returns the stored result for jobID.
func (r *ResultStore) Load(jobID string) (*StoredResult, error) {
	entry, err := r.store.Get(jobID)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	var sr StoredResult
	if err = json.Unmarshal(entry.Data, &sr); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", jobID, err)
	}
	if sr.Result == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrCacheNotFound)
	}
	return &sr, nil
}

// Latest returns the most recently stored result.
func (r *ResultStore) Latest() (*StoredResult, error) {
	entries, err := r.store.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrCacheNotFound
	}
	return r.Load(entries[0].Key)
}

// List summarizes the live results, newest first. Entries that cannot be
// decoded are skipped.
func (r *ResultStore) List() ([]JobSummary, error) {
	entries, err := r.store.List()
	if err != nil {
		return nil, err
	}
	now := r.store.now()
	var out []JobSummary
	for _, e := range entries {
		var sr StoredResult
		if json.Unmarshal(e.Data, &sr) != nil || sr.Result == nil {
			continue
		}
		out = append(out, JobSummary{
			JobID:     e.Key,
			Operation: sr.Operation,
			Document:  sr.Document,
			Phase:     sr.Result.Phase,
			Records:   len(sr.Result.Records),
			Failed:    sr.Result.Failed,
			Finished:  sr.Result.Finished,
			ExpiresIn: e.TimeUntilExpiration(now),
		})
	}
	return out, nil
}

// IsMissing reports whether err means the job is unknown or expired.
func IsMissing(err error) bool {
	return errors.Is(err, ErrCacheNotFound) || errors.Is(err, ErrCacheExpired)
}

// Delete removes one job.
func (r *ResultStore) Delete(jobID string) error {
	return r.store.Delete(jobID)
}

// Prune removes expired and unreadable results and returns how many were
// removed.
func (r *ResultStore) Prune() (int, error) {
	return r.store.CleanupExpired()
}

// Clear removes every stored result.
func (r *ResultStore) Clear() error {
	return r.store.Clear()
}
