package cache

import (
	"context"
	"time"

	"github.com/MeKo-Tech/godetect/internal/detector"
	lru "github.com/hashicorp/golang-lru"
)

const defaultMemorySize = 256

type memoryEntry struct {
	objs    []detector.DetectedObject
	expires time.Time
}

// Memory is an in-process LRU cache with optional expiry.
type Memory struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// NewMemory creates an LRU cache holding up to size entries.
func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	if size <= 0 {
		size = defaultMemorySize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c, ttl: ttl, now: time.Now}, nil
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]detector.DetectedObject, bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry, ok := v.(memoryEntry)
	if !ok {
		m.lru.Remove(key)
		return nil, false, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return cloneObjects(entry.objs), true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, objs []detector.DetectedObject) error {
	entry := memoryEntry{objs: cloneObjects(objs)}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.lru.Add(key, entry)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (m *Memory) Len() int { return m.lru.Len() }

// Close implements Cache.
func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

func cloneObjects(objs []detector.DetectedObject) []detector.DetectedObject {
	out := make([]detector.DetectedObject, len(objs))
	copy(out, objs)
	return out
}
