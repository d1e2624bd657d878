// Package cache defines the TTL store contract shared by the memory and
// Redis tiers.
package cache

import (
	"context"
	"time"
)

// Entry is one cached value. StoredAt never moves backwards for a key.
type Entry struct {
	Key      string
	Value    []byte
	StoredAt time.Time
	TTL      time.Duration
}

// FreshAt reports whether the entry is within its TTL at now.
func (e Entry) FreshAt(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Age is how long ago the value was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return max(now.Sub(e.StoredAt), 0)
}

// Remaining is the TTL left at now, zero once expired.
func (e Entry) Remaining(now time.Time) time.Duration {
	return max(e.TTL-now.Sub(e.StoredAt), 0)
}

// Store is a keyed TTL store that keeps expired values readable through
// GetStale until they are cleared.
type Store interface {
	// Get returns the entry only while it is fresh.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// GetStale returns the entry regardless of expiry.
	GetStale(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context, key string) error
	ClearPrefix(ctx context.Context, prefix string) error
	ClearAll(ctx context.Context) error
}
