// Package monitoring serves health and status endpoints next to the
// Prometheus metrics export. The status report covers the sampling
// loop: throughput, step latency and abort/instability counters.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the /status payload.
type Status struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      string          `json:"uptime"`
	System      SystemInfo      `json:"system"`
	Sampling    SamplingInfo    `json:"sampling"`
	Performance PerformanceInfo `json:"performance"`
}

// SystemInfo describes the host process.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// SamplingInfo describes the sampling pipeline state.
type SamplingInfo struct {
	TokensSampled  int64 `json:"tokens_sampled"`
	AbortedSteps   int64 `json:"aborted_steps"`
	UnstableBuffer int64 `json:"unstable_buffers"`
}

// PerformanceInfo summarizes the recent step history.
type PerformanceInfo struct {
	TokensPerSecond float64   `json:"tokens_per_second"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	P95LatencyMs    float64   `json:"p95_latency_ms"`
	LastStep        time.Time `json:"last_step"`
}

type stepPoint struct {
	at       time.Time
	tokens   int
	duration time.Duration
}

// Monitor tracks the sampling loop and serves /healthz, /status and
// /metrics.
type Monitor struct {
	startTime time.Time
	server    *http.Server

	mu       sync.RWMutex
	history  []stepPoint
	lastStep time.Time
	aborted  int64
	unstable int64
}

func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// Start serves endpoints on addr. Blocks until Stop or a listen error.
func (m *Monitor) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", m.handleHealth)
	mux.HandleFunc("/status", m.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	m.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Log.Info("monitor listening", "addr", addr)
	return m.server.ListenAndServe()
}

// Stop shuts the server down.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// RecordStep notes one completed decode step.
func (m *Monitor) RecordStep(tokens int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.lastStep = now
	m.history = append(m.history, stepPoint{at: now, tokens: tokens, duration: duration})
	if len(m.history) > 1000 {
		m.history = m.history[1:]
	}
}

// RecordAbort notes an aborted step.
func (m *Monitor) RecordAbort() {
	m.mu.Lock()
	m.aborted++
	m.mu.Unlock()
}

// RecordInstability notes a non-finite buffer observation.
func (m *Monitor) RecordInstability() {
	m.mu.Lock()
	m.unstable++
	m.mu.Unlock()
}

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := m.status()
	if st.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{
		"status":    st.Status,
		"timestamp": st.Timestamp.Format(time.RFC3339),
	})
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.status())
}

func (m *Monitor) status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := "healthy"
	if m.unstable > 0 {
		status = "degraded"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Status{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
		System: SystemInfo{
			GoVersion:    runtime.Version(),
			OS:           runtime.GOOS,
			Arch:         runtime.GOARCH,
			NumCPU:       runtime.NumCPU(),
			MemoryUsedMB: int(mem.Alloc / 1024 / 1024),
		},
		Sampling: SamplingInfo{
			TokensSampled:  metrics.TotalTokens(),
			AbortedSteps:   m.aborted,
			UnstableBuffer: m.unstable,
		},
		Performance: m.performance(),
	}
}

func (m *Monitor) performance() PerformanceInfo {
	if len(m.history) == 0 {
		return PerformanceInfo{LastStep: m.lastStep}
	}

	var tokens int
	var total time.Duration
	latencies := make([]float64, 0, len(m.history))
	for _, p := range m.history {
		tokens += p.tokens
		total += p.duration
		latencies = append(latencies, float64(p.duration.Nanoseconds())/1e6)
	}
	sort.Float64s(latencies)

	p95 := int(float64(len(latencies)) * 0.95)
	if p95 >= len(latencies) {
		p95 = len(latencies) - 1
	}

	return PerformanceInfo{
		TokensPerSecond: float64(tokens) / total.Seconds(),
		AvgLatencyMs:    float64(total.Nanoseconds()) / float64(len(m.history)) / 1e6,
		P95LatencyMs:    latencies[p95],
		LastStep:        m.lastStep,
	}
}
