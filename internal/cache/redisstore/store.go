package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/cache"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
)

// envelope is the stored form of one entry. Keys carry no Redis expiry
// unless a stale retention is configured, then ttl + retention.
type envelope struct {
	Value    []byte    `json:"v"`
	StoredAt time.Time `json:"stored_at"`
	TTLms    int64     `json:"ttl_ms"`
}

type Store struct {
	c         *Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ cache.Store = (*Store)(nil)

type StoreOption func(*Store)

func WithPrefix(p string) StoreOption {
	return func(s *Store) { s.prefix = p }
}

// WithStaleRetention bounds how long an expired value stays readable.
// Zero keeps values until they are cleared.
func WithStaleRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(c *Client, opts ...StoreOption) *Store {
	s := &Store{c: c, prefix: "sitrep:", now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	e, ok, err := s.load(ctx, key)
	if err != nil {
		return cache.Entry{}, false, err
	}
	if !ok || !e.FreshAt(s.now()) {
		observability.IncCacheMiss("redis")
		return cache.Entry{}, false, nil
	}
	observability.IncCacheHit("redis")
	return e, true, nil
}

func (s *Store) GetStale(ctx context.Context, key string) (cache.Entry, bool, error) {
	e, ok, err := s.load(ctx, key)
	if err != nil {
		return cache.Entry{}, false, err
	}
	if ok {
		observability.IncCacheStale("redis")
	}
	return e, ok, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.put(ctx, cache.Entry{Key: key, Value: value, StoredAt: s.now(), TTL: ttl})
}

// SetEntry writes an entry keeping its StoredAt.
func (s *Store) SetEntry(ctx context.Context, e cache.Entry) error {
	return s.put(ctx, e)
}

func (s *Store) put(ctx context.Context, e cache.Entry) error {
	if old, ok, err := s.load(ctx, e.Key); err == nil && ok && e.StoredAt.Before(old.StoredAt) {
		e.StoredAt = old.StoredAt
	}
	b, err := json.Marshal(envelope{Value: e.Value, StoredAt: e.StoredAt.UTC(), TTLms: e.TTL.Milliseconds()})
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", e.Key, err)
	}
	var expiry time.Duration
	if s.retention > 0 {
		expiry = e.TTL + s.retention
	}
	return s.c.Set(ctx, s.prefix+e.Key, b, expiry)
}

func (s *Store) Clear(ctx context.Context, key string) error {
	return s.c.Del(ctx, s.prefix+key)
}

func (s *Store) ClearPrefix(ctx context.Context, prefix string) error {
	_, err := s.c.DelPrefix(ctx, s.prefix+prefix)
	return err
}

func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.c.DelPrefix(ctx, s.prefix)
	return err
}

func (s *Store) load(ctx context.Context, key string) (cache.Entry, bool, error) {
	raw, ok, err := s.c.Get(ctx, s.prefix+key)
	if err != nil || !ok {
		return cache.Entry{}, false, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return cache.Entry{}, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return cache.Entry{
		Key:      key,
		Value:    env.Value,
		StoredAt: env.StoredAt,
		TTL:      time.Duration(env.TTLms) * time.Millisecond,
	}, true, nil
}
