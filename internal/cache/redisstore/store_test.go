package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newStoreForTest(t *testing.T, retention time.Duration) (*Store, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	rc, mr := newMini(t)
	fc := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	return NewStore(rc, WithPrefix("t:"), WithStaleRetention(retention), WithClock(fc.Now)), fc, mr
}

func TestStore_FreshThenStale(t *testing.T) {
	s, fc, _ := newStoreForTest(t, time.Hour)
	ctx := context.Background()

	if err := s.Set(ctx, "report:a", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	e, ok, err := s.Get(ctx, "report:a")
	if err != nil || !ok || string(e.Value) != "payload" {
		t.Fatalf("Get=%q,%v,%v", e.Value, ok, err)
	}
	if e.TTL != time.Minute {
		t.Fatalf("ttl=%v want 1m", e.TTL)
	}

	fc.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "report:a"); ok {
		t.Fatalf("expected miss after ttl")
	}
	e, ok, err = s.GetStale(ctx, "report:a")
	if err != nil || !ok || string(e.Value) != "payload" {
		t.Fatalf("GetStale=%q,%v,%v", e.Value, ok, err)
	}
	if e.Age(fc.Now()) != 2*time.Minute {
		t.Fatalf("age=%v want 2m", e.Age(fc.Now()))
	}
}

func TestStore_RetentionEndsStaleReads(t *testing.T) {
	s, _, mr := newStoreForTest(t, time.Hour)
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if got := mr.TTL("t:k"); got != time.Hour+time.Minute {
		t.Fatalf("redis ttl=%v want 1h1m", got)
	}
	mr.FastForward(time.Hour + 2*time.Minute)
	if _, ok, _ := s.GetStale(ctx, "k"); ok {
		t.Fatalf("expected stale value gone after retention")
	}
}

func TestStore_DefaultKeepsStaleValueUntilCleared(t *testing.T) {
	rc, mr := newMini(t)
	fc := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	s := NewStore(rc, WithPrefix("t:"), WithClock(fc.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), time.Minute)
	if got := mr.TTL("t:k"); got != 0 {
		t.Fatalf("redis ttl=%v want none", got)
	}
	mr.FastForward(48 * time.Hour)
	fc.Add(48 * time.Hour)
	if e, ok, _ := s.GetStale(ctx, "k"); !ok || string(e.Value) != "v" {
		t.Fatalf("GetStale=%q,%v want v,true", e.Value, ok)
	}
	_ = s.Clear(ctx, "k")
	if _, ok, _ := s.GetStale(ctx, "k"); ok {
		t.Fatalf("expected miss after Clear")
	}
}

func TestStore_StoredAtMonotonic(t *testing.T) {
	s, fc, _ := newStoreForTest(t, 0)
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("a"), time.Minute)
	first, _, _ := s.GetStale(ctx, "k")

	fc.Add(-30 * time.Second)
	_ = s.Set(ctx, "k", []byte("b"), time.Minute)
	second, _, _ := s.GetStale(ctx, "k")

	if second.StoredAt.Before(first.StoredAt) {
		t.Fatalf("storedAt moved backwards: %v -> %v", first.StoredAt, second.StoredAt)
	}
}

func TestStore_ClearPrefixAndClearAll_Idempotent(t *testing.T) {
	s, _, mr := newStoreForTest(t, time.Hour)
	ctx := context.Background()

	_ = s.Set(ctx, "hotspot:1", []byte("v"), time.Minute)
	_ = s.Set(ctx, "report:1", []byte("v"), time.Minute)
	_ = mr.Set("other:keep", "x")

	for range 2 {
		if err := s.ClearPrefix(ctx, "hotspot:"); err != nil {
			t.Fatalf("ClearPrefix: %v", err)
		}
	}
	if _, ok, _ := s.GetStale(ctx, "hotspot:1"); ok {
		t.Fatalf("hotspot entry should be gone")
	}
	if _, ok, _ := s.GetStale(ctx, "report:1"); !ok {
		t.Fatalf("report entry should survive")
	}

	for range 2 {
		if err := s.ClearAll(ctx); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
	}
	if _, ok, _ := s.GetStale(ctx, "report:1"); ok {
		t.Fatalf("report entry should be gone")
	}
	if !mr.Exists("other:keep") {
		t.Fatalf("ClearAll must stay inside its prefix")
	}
}

func TestStore_CorruptEnvelopeIsError(t *testing.T) {
	s, _, mr := newStoreForTest(t, time.Hour)
	_ = mr.Set("t:bad", "not-json")
	if _, _, err := s.GetStale(context.Background(), "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
}
