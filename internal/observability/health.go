package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const probeTimeout = 2 * time.Second

// CheckFunc probes one dependency; nil means healthy.
type CheckFunc func(ctx context.Context) error

// HealthChecker backs /healthz and /readyz. The exchange reports ready only
// after state recovery, and only while every dependency probe passes.
type HealthChecker struct {
	ready   atomic.Bool
	started time.Time

	mu     sync.RWMutex
	probes map[string]CheckFunc
}

type healthStatus struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Failed map[string]string `json:"failed,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		started: time.Now(),
		probes:  make(map[string]CheckFunc),
	}
}

func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }

func (h *HealthChecker) IsReady() bool { return h.ready.Load() }

// AddCheck registers a readiness probe; a later call with the same name
// replaces it.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	h.probes[name] = fn
	h.mu.Unlock()
}

// Probe runs every registered check and returns the failures by name.
func (h *HealthChecker) Probe(ctx context.Context) map[string]string {
	h.mu.RLock()
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	probes := make(map[string]CheckFunc, len(h.probes))
	for k, v := range h.probes {
		probes[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	failed := make(map[string]string)
	for _, name := range names {
		if err := probes[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}

func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, healthStatus{Status: "alive", Uptime: time.Since(h.started).String()})
}

func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !h.IsReady() {
		writeHealth(w, http.StatusServiceUnavailable, healthStatus{Status: "not_ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if failed := h.Probe(ctx); len(failed) > 0 {
		writeHealth(w, http.StatusServiceUnavailable, healthStatus{Status: "degraded", Failed: failed})
		return
	}
	writeHealth(w, http.StatusOK, healthStatus{Status: "ready"})
}

func writeHealth(w http.ResponseWriter, code int, body healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
