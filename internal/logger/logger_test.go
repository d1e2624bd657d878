package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSlogBridge_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "sitrep", Component: "test"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithCategory(ctx, "report")
	ctx = WithCycleID(ctx, "cycle-7")
	log.InfoContext(ctx, "fetched", "items", 3, "err", errors.New("boom"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"request_id": "req-1",
		"category":   "report",
		"cycle_id":   "cycle-7",
		"service":    "sitrep",
		"component":  "test",
		"msg":        "fetched",
		"level":      "info",
		"err":        "boom",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s=%v want %v (line %s)", k, got[k], v, buf.String())
		}
	}
	if got["items"] != float64(3) {
		t.Fatalf("items=%v want 3", got["items"])
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)
	t.Cleanup(func() { Build(Config{Level: "info"}, &bytes.Buffer{}) })

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level, got %q", buf.String())
	}
	log.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line should be written")
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	v, _ := ctx.Value(ctxReqIDKey).(string)
	if len(v) != 16 {
		t.Fatalf("generated id=%q want 16 hex chars", v)
	}
}
