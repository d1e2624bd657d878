package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type fixedReporter struct {
	ready bool
	parts []int32
}

func (f fixedReporter) Readiness() (bool, []int32) { return f.ready, f.parts }

func TestReadiness_Handler(t *testing.T) {
	cases := []struct {
		name string
		rr   ReadinessReporter
		code int
		body string
	}{
		{"no consumer", AlwaysReady{}, http.StatusOK, `{"status":"ready"}`},
		{"assigned", fixedReporter{ready: true, parts: []int32{0, 2}}, http.StatusOK, `{"status":"ready","partitions":[0,2]}`},
		{"rebalancing", fixedReporter{}, http.StatusServiceUnavailable, `{"status":"not_ready"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Readiness(tc.rr)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.code {
				t.Fatalf("status=%d want %d", rec.Code, tc.code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tc.body {
				t.Fatalf("body=%s want %s", got, tc.body)
			}
		})
	}
}
