// Package cache remembers the last reply produced for a normalized input.
package cache

import (
	"context"
	"sync"

	"ai-khaled/internal/textsim"
)

// ReplyCache maps normalized text to the most recent reply for it.
type ReplyCache interface {
	Get(ctx context.Context, text string) (string, bool)
	Set(ctx context.Context, text, reply string)
	Delete(ctx context.Context, text string)
}

// Memory is a process-lifetime cache. With maxEntries <= 0 it grows without
// bound; otherwise the oldest inserted key is evicted first.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]string
	order      []string
	maxEntries int
}

func NewMemory(maxEntries int) *Memory {
	return &Memory{entries: make(map[string]string), maxEntries: maxEntries}
}

func (m *Memory) Get(_ context.Context, text string) (string, bool) {
	key := textsim.Normalize(text)
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[key]
	return r, ok
}

func (m *Memory) Set(_ context.Context, text, reply string) {
	key := textsim.Normalize(text)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok && m.maxEntries > 0 {
		for len(m.order) >= m.maxEntries {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.entries, oldest)
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = reply
}

func (m *Memory) Delete(_ context.Context, text string) {
	key := textsim.Normalize(text)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	if m.maxEntries > 0 {
		for i, k := range m.order {
			if k == key {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
