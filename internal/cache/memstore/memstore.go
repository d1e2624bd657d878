// Package memstore is the in-process sharded TTL store.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/sitrep-cache/internal/cache"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
)

const numShards = 64

type Store struct {
	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*item
}

type item struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

var _ cache.Store = (*Store)(nil)

type Option func(*Store)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for i := range s.shards {
		s.shards[i].m = make(map[string]*item)
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	e, ok := s.load(key)
	if !ok {
		observability.IncCacheMiss("memory")
		return cache.Entry{}, false, nil
	}
	if !e.FreshAt(s.now()) {
		observability.IncCacheMiss("memory")
		return cache.Entry{}, false, nil
	}
	observability.IncCacheHit("memory")
	return e, true, nil
}

func (s *Store) GetStale(_ context.Context, key string) (cache.Entry, bool, error) {
	e, ok := s.load(key)
	if ok {
		observability.IncCacheStale("memory")
	}
	return e, ok, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.put(key, value, s.now(), ttl)
}

// SetEntry stores a value with an explicit storedAt, used when copying an
// entry from another tier. StoredAt still never moves backwards.
func (s *Store) SetEntry(e cache.Entry) {
	_ = s.put(e.Key, e.Value, e.StoredAt, e.TTL)
}

func (s *Store) put(key string, value []byte, at time.Time, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	sh := s.pick(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if old := sh.m[key]; old != nil && at.Before(old.storedAt) {
		at = old.storedAt
	}
	sh.m[key] = &item{value: cp, storedAt: at, ttl: ttl}
	return nil
}

func (s *Store) Clear(_ context.Context, key string) error {
	sh := s.pick(key)
	sh.mu.Lock()
	delete(sh.m, key)
	sh.mu.Unlock()
	return nil
}

func (s *Store) ClearPrefix(_ context.Context, prefix string) error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k := range sh.m {
			if strings.HasPrefix(k, prefix) {
				delete(sh.m, k)
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

func (s *Store) ClearAll(_ context.Context) error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.m = make(map[string]*item)
		sh.mu.Unlock()
	}
	return nil
}

// Sweep drops entries stored longer than retention ago and returns how
// many were removed. A zero retention keeps everything.
func (s *Store) Sweep(retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	cutoff := s.now().Add(-retention)
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, it := range sh.m {
			if it.storedAt.Before(cutoff) {
				delete(sh.m, k)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		total += len(s.shards[i].m)
		s.shards[i].mu.RUnlock()
	}
	return total
}

func (s *Store) load(key string) (cache.Entry, bool) {
	sh := s.pick(key)
	sh.mu.RLock()
	it := sh.m[key]
	sh.mu.RUnlock()
	if it == nil {
		return cache.Entry{}, false
	}
	return cache.Entry{Key: key, Value: it.value, StoredAt: it.storedAt, TTL: it.ttl}, true
}

func (s *Store) pick(key string) *shard {
	h := xxhash.Sum64String(key)
	idx := h & (uint64(len(s.shards)) - 1)
	return &s.shards[idx]
}
