package cache

import (
	"encoding/json"
	"time"
)

// Entry is a single cached value with TTL metadata.
type Entry struct {
	// Key is the entry key, a job ID for stored results.
	Key string `json:"key"`

	// Data is the cached value.
	Data json.RawMessage `json:"data"`

	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// NewEntry creates an entry created at now that lives for ttlSeconds.
func NewEntry(key string, data json.RawMessage, ttlSeconds int, now time.Time) *Entry {
	return &Entry{
		Key:        key,
		Data:       data,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(ttlSeconds) * time.Second),
		TTLSeconds: ttlSeconds,
	}
}

// IsExpired reports whether the entry expired at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// TimeUntilExpiration returns the remaining lifetime at now, or 0.
func (e *Entry) TimeUntilExpiration(now time.Time) time.Duration {
	return max(e.ExpiresAt.Sub(now), 0)
}
