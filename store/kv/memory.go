package kv

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const shardCount = 32

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryShard struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// MemoryKV is an in-process KV backed by sharded maps. Each key maps to a
// single shard, so read-modify-write cycles on one key are serialized while
// unrelated keys proceed in parallel.
type MemoryKV struct {
	shards [shardCount]*memoryShard
}

// NewMemory creates an in-process KV store.
func NewMemory() *MemoryKV {
	m := &MemoryKV{}
	for i := range m.shards {
		m.shards[i] = &memoryShard{entries: make(map[string]*memoryEntry)}
	}
	return m
}

func (m *MemoryKV) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored slice.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = newEntry(value, ttl)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (m *MemoryKV) Update(_ context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	found := false
	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		current = e.value
		found = true
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = newEntry(next, ttl)
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	now := time.Now()
	var keys []string
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			// Scanning doubles as lazy reaping of expired entries.
			if e.expired(now) {
				delete(s.entries, k)
				continue
			}
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		s.mu.Unlock()
	}
	return keys, nil
}

func (m *MemoryKV) Close() error {
	return nil
}

func newEntry(value []byte, ttl time.Duration) *memoryEntry {
	stored := make([]byte, len(value))
	copy(stored, value)
	e := &memoryEntry{value: stored}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}
