package metrics

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit_BuildInfoDefaultsToDev(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Revision: "abc123"}})

	want := `
# HELP sitrep_build_info Build of the running sitrep binary (always 1).
# TYPE sitrep_build_info gauge
sitrep_build_info{branch="",build_date="",go_version="` + runtime.Version() + `",revision="abc123",version="dev"} 1
`
	if err := testutil.GatherAndCompare(p.Gatherer(), strings.NewReader(want), "sitrep_build_info"); err != nil {
		t.Fatal(err)
	}
}

func TestHandler_ServesRuntimeCollectors(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "1.2.0"}})

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, s := range []string{"go_goroutines", `sitrep_build_info{`, `version="1.2.0"`} {
		if !strings.Contains(body, s) {
			t.Fatalf("expected %q in payload; got:\n%s", s, body)
		}
	}
}
