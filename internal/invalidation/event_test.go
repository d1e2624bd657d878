package invalidation

import (
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate_OneScopeAtMost(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpInvalidate, TS: mustTS(),
		Category: "hotspot",
		BBox:     &BBox{X1: 4, Y1: 11, X2: 5, Y2: 12, SRID: "EPSG:4326"},
	}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error when category and bbox are both set")
	}
}

func TestEvent_Validate_HappyPaths(t *testing.T) {
	for _, ev := range []Event{
		{Version: 1, Op: OpInvalidate},
		{Version: 2, Op: OpInvalidate, Category: "reports"},
		{Version: 3, Op: OpInvalidate, RegionID: "zuru"},
		{Version: 4, Op: OpInvalidate, BBox: &BBox{X1: 4, Y1: 11, X2: 5, Y2: 12}},
	} {
		if err := ev.Validate(); err != nil {
			t.Fatalf("%+v: unexpected: %v", ev, err)
		}
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	for name, ev := range map[string]Event{
		"zero version":  {Op: OpInvalidate},
		"wrong op":      {Version: 1, Op: "delete"},
		"bad category":  {Version: 1, Op: OpInvalidate, Category: "weather"},
		"inverted bbox": {Version: 1, Op: OpInvalidate, BBox: &BBox{X1: 5, Y1: 11, X2: 4, Y2: 12}},
		"wrong srid":    {Version: 1, Op: OpInvalidate, BBox: &BBox{X1: 4, Y1: 11, X2: 5, Y2: 12, SRID: "EPSG:3857"}},
	} {
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_Scope(t *testing.T) {
	cases := map[string]Event{
		"category:report": {Category: "reports"},
		"region:zuru":     {RegionID: " Zuru "},
		"all":             {},
	}
	for want, ev := range cases {
		if got := ev.Scope(); got != want {
			t.Fatalf("scope=%q want %q", got, want)
		}
	}
}
