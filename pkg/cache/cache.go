// Package cache is the best-effort keyed store used to short-circuit repeated
// external API calls. Get/set only, last writer wins; concurrent requests may
// race to populate a key and the design tolerates the redundant call.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the external cache collaborator. Values are opaque bytes; no TTL
// contract is assumed beyond "available for some bounded time".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Memory is a process-wide in-memory Store with a fixed per-entry lifetime.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory constructs a Memory store. A non-positive ttl keeps entries until
// process exit.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value when present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores a value, replacing any previous entry.
func (m *Memory) Set(_ context.Context, key string, value []byte) {
	entry := memoryEntry{value: value}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}
