// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tokenstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	voterID   string
	expiresAt time.Time
}

// Memory is a process-local Store backed by a mutex-guarded map. Expired
// entries are evicted lazily on Redeem and in bulk by Sweep. It does not
// survive a restart, which is acceptable for five-minute handshake tokens.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a Memory store with the given TTL (DefaultTTL if zero).
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Issue(ctx context.Context, voterID string) (string, error) {
	token := newToken()
	m.mu.Lock()
	m.entries[token] = memoryEntry{voterID: voterID, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return token, nil
}

func (m *Memory) Redeem(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[token]
	if !ok {
		return "", ErrNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, token)
		return "", ErrNotFound
	}
	return entry.voterID, nil
}

func (m *Memory) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}

// Sweep removes all expired entries and returns how many were evicted.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for token, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, token)
			evicted++
		}
	}
	return evicted
}
