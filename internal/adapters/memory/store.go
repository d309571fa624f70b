// Package memory provides process-local implementations of the session store
// and cache ports for single-node deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geowhisper/towers/internal/core/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store implements ports.KeyValueStore, ports.AtomicUpdater and ports.CacheService on a
// mutex-guarded map. Expired entries are dropped lazily on read.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

// New creates a Store. ttl applies to KeyValueStore writes; zero disables it.
func New(ttl time.Duration) *Store {
	return &Store{items: make(map[string]entry), ttl: ttl, now: time.Now}
}

// Get returns the string value of key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	b, err := s.GetBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Set stores value under key with the store's session TTL.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.put(key, []byte(value), s.ttl)
	return nil
}

// GetBytes returns the raw value of key.
func (s *Store) GetBytes(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ports.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, ports.ErrNotFound
	}
	return e.value, nil
}

// Update applies fn to key under the store's write lock.
func (s *Store) Update(_ context.Context, key string, fn ports.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.items[key]
	if found && !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		e, found = entry{}, false
	}

	next, write, err := fn(string(e.value), found)
	if err != nil || !write {
		return err
	}
	s.items[key] = s.newEntry([]byte(next), s.ttl)
	return nil
}

// Len returns the number of stored keys, including expired ones not yet dropped.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) put(key string, value []byte, ttl time.Duration) {
	e := s.newEntry(value, ttl)
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
}

func (s *Store) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

// Cache adapts a Store to ports.CacheService.
type Cache struct {
	store *Store
}

// NewCache creates a process-local cache.
func NewCache() *Cache {
	return &Cache{store: New(0)}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.store.GetBytes(ctx, key)
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	c.store.put(key, value, time.Duration(ttlSeconds)*time.Second)
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.store.mu.Lock()
	delete(c.store.items, key)
	c.store.mu.Unlock()
	return nil
}
