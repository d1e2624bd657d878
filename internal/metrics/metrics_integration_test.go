package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)

	start := time.Now()
	observability.ObserveFetch("report", "gnews", "stale", "timeout")
	observability.ObserveUpstreamLatency("gnews", "timeout", time.Since(start).Seconds())
	observability.ObserveCacheOp("get", nil, 0.002)
	observability.IncCacheHit("memory")
	observability.SetDataQuality("report", "stale")
	observability.SetRiskScore("zuru", 0.55)
	observability.IncInvalidation("", "api")
	observability.SetBreakerState("report:gnews", 2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`upstream_latency_seconds_bucket`,
		`cache_op_duration_seconds_count`,
		`sitrep_data_quality{category="report",quality="stale"} 1`,
		`sitrep_data_quality{category="report",quality="live"} 0`,
		`sitrep_region_risk_score{region="zuru"} 0.55`,
		`sitrep_breaker_state{source="report:gnews"} 2`,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "sitrep_fetch_total",
		`category="report"`, `origin="stale"`, `outcome="timeout"`, `source="gnews"`)
	assertHasMetricLine(t, body, "sitrep_cache_invalidations_total",
		`category="all"`, `trigger="api"`)
	assertHasMetricLine(t, body, "cache_results_total",
		`tier="memory"`, `outcome="hit"`)
	assertHasMetricLine(t, body, "sitrep_build_info",
		`version="test"`)
}
