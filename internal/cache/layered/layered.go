// Package layered puts the in-process store in front of the Redis tier.
package layered

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/cache"
)

// Near is the local tier. It must not fail.
type Near interface {
	cache.Store
	SetEntry(e cache.Entry)
}

// Far is the shared tier; its errors degrade to misses.
type Far interface {
	cache.Store
	SetEntry(ctx context.Context, e cache.Entry) error
}

type Store struct {
	near Near
	far  Far
	log  *slog.Logger
	now  func() time.Time
}

var _ cache.Store = (*Store)(nil)

func New(near Near, far Far, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{near: near, far: far, log: log, now: time.Now}
}

func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if e, ok, _ := s.near.Get(ctx, key); ok {
		return e, true, nil
	}
	e, ok, err := s.far.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "far cache get failed", "key", key, "err", err)
		return cache.Entry{}, false, nil
	}
	if ok {
		s.near.SetEntry(e)
	}
	return e, ok, nil
}

// GetStale prefers the newer of the two tiers.
func (s *Store) GetStale(ctx context.Context, key string) (cache.Entry, bool, error) {
	ne, nok, _ := s.near.GetStale(ctx, key)
	fe, fok, err := s.far.GetStale(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "far cache stale read failed", "key", key, "err", err)
		fok = false
	}
	switch {
	case nok && fok:
		if fe.StoredAt.After(ne.StoredAt) {
			s.near.SetEntry(fe)
			return fe, true, nil
		}
		return ne, true, nil
	case fok:
		s.near.SetEntry(fe)
		return fe, true, nil
	case nok:
		return ne, true, nil
	}
	return cache.Entry{}, false, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := cache.Entry{Key: key, Value: value, StoredAt: s.now(), TTL: ttl}
	s.near.SetEntry(e)
	if err := s.far.SetEntry(ctx, e); err != nil {
		s.log.WarnContext(ctx, "far cache set failed", "key", key, "err", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	return errors.Join(s.near.Clear(ctx, key), s.far.Clear(ctx, key))
}

func (s *Store) ClearPrefix(ctx context.Context, prefix string) error {
	return errors.Join(s.near.ClearPrefix(ctx, prefix), s.far.ClearPrefix(ctx, prefix))
}

func (s *Store) ClearAll(ctx context.Context) error {
	return errors.Join(s.near.ClearAll(ctx), s.far.ClearAll(ctx))
}
