package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveUsage(12.5, 42.0)
	m.SetStreamCounts(3, 2)
	m.ObserveStream("stream1", true, 0)
	m.ObserveStream("stream2", false, 4)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"loadtest_cpu_percent",
		"loadtest_memory_percent",
		"loadtest_streams",
		"loadtest_streams_healthy",
		"loadtest_stream_up",
		"loadtest_stream_errors",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveUsage(50, 60)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "loadtest_cpu_percent 50") {
		t.Errorf("cpu gauge missing from scrape:\n%s", body)
	}
	if !strings.Contains(body, "loadtest_memory_percent 60") {
		t.Errorf("memory gauge missing from scrape:\n%s", body)
	}
}
