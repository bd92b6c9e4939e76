package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rshade/varbatch/internal/atomicfile"
)

// cacheFileExtension is the file extension used for cache entries.
const cacheFileExtension = ".json"

const bytesPerMB = 1 << 20

// Common cache errors.
var (
	ErrCacheNotFound   = errors.New("cache entry not found")
	ErrCacheExpired    = errors.New("cache entry expired")
	ErrInvalidCacheKey = errors.New("cache key cannot be empty")
	ErrCacheDisabled   = errors.New("cache is disabled")
)

// FileStore stores entries as JSON files in one directory. It is safe for
// concurrent use within a process.
type FileStore struct {
	directory  string
	enabled    bool
	ttlSeconds int
	// maxSizeMB bounds the directory size; 0 means unlimited.
	maxSizeMB int
	now       func() time.Time

	mu sync.RWMutex
}

// NewFileStore creates a store, creating directory if needed. A disabled store
// rejects every call with ErrCacheDisabled.
func NewFileStore(directory string, enabled bool, ttlSeconds, maxSizeMB int) (*FileStore, error) {
	if !enabled {
		return &FileStore{enabled: false, now: time.Now}, nil
	}
	if directory == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultTTLSeconds
	}

	return &FileStore{
		directory:  directory,
		enabled:    true,
		ttlSeconds: ttlSeconds,
		maxSizeMB:  maxSizeMB,
		now:        time.Now,
	}, nil
}

// SetClock replaces the time source, for tests.
func (s *FileStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the entry for key. Expired entries are removed and reported as
// ErrCacheExpired.
func (s *FileStore) Get(key string) (*Entry, error) {
	if !s.enabled {
		return nil, ErrCacheDisabled
	}
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	s.mu.RLock()
	entry, err := s.readLocked(s.keyToFilePath(key))
	now := s.now()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if entry.IsExpired(now) {
		s.mu.Lock()
		_ = os.Remove(s.keyToFilePath(key))
		s.mu.Unlock()
		return nil, ErrCacheExpired
	}
	return entry, nil
}

// Set stores data under key, replacing any previous entry.
func (s *FileStore) Set(key string, data json.RawMessage) error {
	if !s.enabled {
		return ErrCacheDisabled
	}
	if key == "" {
		return ErrInvalidCacheKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := NewEntry(key, data, s.ttlSeconds, s.now())
	entryData, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err = atomicfile.WriteFile(s.keyToFilePath(key), entryData, 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return s.pruneLocked(key)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	if !s.enabled {
		return ErrCacheDisabled
	}
	if key == "" {
		return ErrInvalidCacheKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.keyToFilePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (s *FileStore) Clear() error {
	if !s.enabled {
		return ErrCacheDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.filesLocked()
	if err != nil {
		return err
	}
	for _, path := range files {
		if removeErr := os.Remove(path); removeErr != nil {
			return fmt.Errorf("failed to remove cache file %s: %w", filepath.Base(path), removeErr)
		}
	}
	return nil
}

// CleanupExpired removes expired and unreadable entries and returns how many
// files were removed.
func (s *FileStore) CleanupExpired() (int, error) {
	if !s.enabled {
		return 0, ErrCacheDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.filesLocked()
	if err != nil {
		return 0, err
	}
	now := s.now()
	removed := 0
	for _, path := range files {
		entry, readErr := s.readLocked(path)
		if readErr != nil || entry.IsExpired(now) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// List returns the live entries, newest first.
func (s *FileStore) List() ([]*Entry, error) {
	if !s.enabled {
		return nil, ErrCacheDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.filesLocked()
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []*Entry
	for _, path := range files {
		entry, readErr := s.readLocked(path)
		if readErr != nil || entry.IsExpired(now) {
			continue
		}
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b *Entry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Size returns the total size of the entries in bytes.
func (s *FileStore) Size() (int64, error) {
	if !s.enabled {
		return 0, ErrCacheDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sizeLocked()
}

// Count returns the number of entries, expired ones included.
func (s *FileStore) Count() (int, error) {
	if !s.enabled {
		return 0, ErrCacheDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.filesLocked()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// IsEnabled returns true if caching is enabled.
func (s *FileStore) IsEnabled() bool {
	return s.enabled
}

// GetDirectory returns the cache directory path.
func (s *FileStore) GetDirectory() string {
	return s.directory
}

// GetTTL returns the TTL in seconds.
func (s *FileStore) GetTTL() int {
	return s.ttlSeconds
}

// pruneLocked drops the oldest entries, never keep, until the directory fits
// in maxSizeMB.
func (s *FileStore) pruneLocked(keep string) error {
	if s.maxSizeMB <= 0 {
		return nil
	}
	limit := int64(s.maxSizeMB) * bytesPerMB
	size, err := s.sizeLocked()
	if err != nil || size <= limit {
		return err
	}

	files, err := s.filesLocked()
	if err != nil {
		return err
	}
	type aged struct {
		path string
		mod  time.Time
		size int64
	}
	var candidates []aged
	keepPath := s.keyToFilePath(keep)
	for _, path := range files {
		if path == keepPath {
			continue
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		candidates = append(candidates, aged{path: path, mod: info.ModTime(), size: info.Size()})
	}
	slices.SortFunc(candidates, func(a, b aged) int { return a.mod.Compare(b.mod) })

	for _, c := range candidates {
		if size <= limit {
			break
		}
		if os.Remove(c.path) == nil {
			size -= c.size
		}
	}
	return nil
}

func (s *FileStore) sizeLocked() (int64, error) {
	files, err := s.filesLocked()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, path := range files {
		if info, statErr := os.Stat(path); statErr == nil {
			total += info.Size()
		}
	}
	return total, nil
}

func (s *FileStore) filesLocked() ([]string, error) {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == cacheFileExtension {
			files = append(files, filepath.Join(s.directory, e.Name()))
		}
	}
	return files, nil
}

func (s *FileStore) readLocked(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	var entry Entry
	if err = json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, nil
}

// keyToFilePath converts a key to a filesystem-safe path.
func (s *FileStore) keyToFilePath(key string) string {
	safeKey := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(s.directory, safeKey+cacheFileExtension)
}
