package monitoring

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthEndpoint(t *testing.T) {
	m := NewMonitor()

	rec := httptest.NewRecorder()
	m.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestHealthDegradedOnInstability(t *testing.T) {
	m := NewMonitor()
	m.RecordInstability()

	rec := httptest.NewRecorder()
	m.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 503 {
		t.Errorf("status = %d, want 503 when degraded", rec.Code)
	}
}

func TestStatusPerformance(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 10; i++ {
		m.RecordStep(1, 2*time.Millisecond)
	}
	m.RecordAbort()

	rec := httptest.NewRecorder()
	m.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var st Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Sampling.AbortedSteps != 1 {
		t.Errorf("aborted = %d, want 1", st.Sampling.AbortedSteps)
	}
	if st.Performance.TokensPerSecond <= 0 {
		t.Errorf("tokens/sec = %v, want > 0", st.Performance.TokensPerSecond)
	}
	if st.Performance.AvgLatencyMs <= 0 || st.Performance.P95LatencyMs <= 0 {
		t.Errorf("latency avg=%v p95=%v, want > 0", st.Performance.AvgLatencyMs, st.Performance.P95LatencyMs)
	}
}
