package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It is the default backend for embedded
// deployments and tests; expired keys are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    string
	expireAt time.Time // zero means persistent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// live returns the entry at key, dropping it if expired. Caller holds mu.
func (s *MemoryStore) live(key string, now time.Time) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expireAt.IsZero() && now.After(e.expireAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if ttl == KeepTTL {
		e, ok := s.live(key, now)
		if !ok {
			return nil
		}
		e.value = value
		s.entries[key] = e
		return nil
	}

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key, time.Now())
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range keys {
		if _, ok := s.live(key, now); ok {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.live(key, now)
	if !ok {
		return false, nil
	}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	} else {
		e.expireAt = time.Time{}
	}
	s.entries[key] = e
	return true, nil
}

func (s *MemoryStore) Persist(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key, time.Now())
	if !ok {
		return false, nil
	}
	e.expireAt = time.Time{}
	s.entries[key] = e
	return true, nil
}

// Scan pages through matching keys in sorted order. The cursor is the offset
// into the sorted key list, which is stable enough for a bounded store.
func (s *MemoryStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 {
		count = 1000
	}

	now := time.Now()
	var matched []string
	for key := range s.entries {
		if _, ok := s.live(key, now); !ok {
			continue
		}
		if matchPattern(pattern, key) {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)

	start := int(cursor)
	if start >= len(matched) {
		return nil, 0, nil
	}
	end := start + int(count)
	if end >= len(matched) {
		return matched[start:], 0, nil
	}
	return matched[start:end], uint64(end), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// matchPattern supports the "prefix*" glob form used for namespace scans,
// plus exact match and the bare "*" wildcard.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}
