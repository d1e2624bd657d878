package router

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParseRegionIDs_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/overview?regions=Zuru,%20argungu,,zuru,koko-besse", nil)
	ids, err := ParseRegionIDs(req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []string{"zuru", "argungu", "koko-besse"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("got %v want %v", ids, want)
	}
}

func TestParseRegionIDs_AbsentMeansAll(t *testing.T) {
	ids, err := ParseRegionIDs(httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	if err != nil || ids != nil {
		t.Fatalf("got %v, %v want nil, nil", ids, err)
	}
}

func TestParseRegionIDs_RejectsBadInput(t *testing.T) {
	for _, q := range []string{"regions=zuru;drop", "regions=-zuru", "regions=%C3%A9"} {
		if _, err := ParseRegionIDs(httptest.NewRequest(http.MethodGet, "/api/risk?"+q, nil)); err == nil {
			t.Fatalf("expected error for %q", q)
		}
	}
}
