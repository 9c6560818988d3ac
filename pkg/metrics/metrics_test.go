package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.ObserveSubmission(7, "accepted")
	m.ObserveSubmission(7, "rejected")
	m.ObserveSubmission(7, "rejected")
	m.ObserveCall("post_load", "ok")
	m.ObserveCacheHit()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(recorder, request)

	body := recorder.Body.String()
	for _, want := range []string{
		`formflow_submissions_total{form="7",outcome="accepted"} 1`,
		`formflow_submissions_total{form="7",outcome="rejected"} 2`,
		`formflow_external_calls_total{phase="post_load",result="ok"} 1`,
		`formflow_call_cache_hits_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing metric line %q", want)
		}
	}
}
