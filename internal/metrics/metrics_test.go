package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecordQueryAppearsInHandler(t *testing.T) {
	r := New()
	r.RecordQuery("udp", 0)
	r.RecordQuery("udp", 3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	out := string(body)

	if !strings.Contains(out, `dnscored_queries_total{rcode="noerror",transport="udp"} 1`) {
		t.Errorf("missing noerror counter in output:\n%s", out)
	}
	if !strings.Contains(out, `dnscored_queries_total{rcode="nxdomain",transport="udp"} 1`) {
		t.Errorf("missing nxdomain counter in output:\n%s", out)
	}
}

func TestObserveIterationsAndCacheSize(t *testing.T) {
	r := New()
	r.ObserveIterations(5)
	r.SetCacheSize(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Result().Body)
	out := string(body)

	if !strings.Contains(out, "dnscored_resolver_iterations_sum 5") {
		t.Errorf("missing iterations sum in output:\n%s", out)
	}
	if !strings.Contains(out, "dnscored_cache_entries 42") {
		t.Errorf("missing cache size gauge in output:\n%s", out)
	}
}

func TestRecordRRLAction(t *testing.T) {
	r := New()
	r.RecordRRLAction("drop")
	r.RecordRRLAction("drop")
	r.RecordRRLAction("allow")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Result().Body)
	out := string(body)

	if !strings.Contains(out, `dnscored_rrl_actions_total{action="drop"} 2`) {
		t.Errorf("missing drop counter in output:\n%s", out)
	}
	if !strings.Contains(out, `dnscored_rrl_actions_total{action="allow"} 1`) {
		t.Errorf("missing allow counter in output:\n%s", out)
	}
}
