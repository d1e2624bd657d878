package redisstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
	"github.com/mohammed-shakir/sitrep-cache/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "k1")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("Get=%q,%v,%v want v1,true,nil", got, ok, err)
	}
	if _, ok, err := rc.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "k1"); ok {
		t.Fatalf("k1 should be deleted")
	}
}

func TestDelPrefix_ScansAllBatches(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	for i := range 1200 {
		_ = rc.Set(ctx, fmt.Sprintf("p:a:%d", i), []byte("v"), time.Minute)
	}
	_ = rc.Set(ctx, "p:b:1", []byte("v"), time.Minute)

	n, err := rc.DelPrefix(ctx, "p:a:")
	if err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if n != 1200 {
		t.Fatalf("deleted=%d want 1200", n)
	}
	if _, ok, _ := rc.Get(ctx, "p:b:1"); !ok {
		t.Fatalf("other prefix must survive")
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestNew_FailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := New(ctx, "127.0.0.1:1", WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatalf("expected ping error")
	}
	if _, err := New(ctx, ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `cache_ops_total{op="set"`) ||
		!strings.Contains(body, `cache_ops_total{op="get"`) ||
		!strings.Contains(body, `cache_ops_total{op="del"`) {
		t.Fatalf("missing cache_ops_total metrics; got:\n%s", body)
	}
	if !strings.Contains(body, `cache_op_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing cache_op_duration_seconds histogram; got:\n%s", body)
	}
}
