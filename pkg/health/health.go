// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker probes one dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component or of the whole process.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

const defaultCheckTimeout = 5 * time.Second

// Response is the JSON body returned by the probe endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single dependency check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

type registration struct {
	check    Checker
	critical bool
}

// Handler aggregates dependency checks. A failing critical check fails
// readiness; a failing non-critical check only degrades it.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
}

// NewHandler creates an empty health handler.
func NewHandler() *Handler {
	return &Handler{
		checks:  make(map[string]registration),
		timeout: defaultCheckTimeout,
	}
}

// RegisterCritical adds a check whose failure makes the service unready.
func (h *Handler) RegisterCritical(name string, c Checker) {
	h.register(name, c, true)
}

// RegisterNonCritical adds a check whose failure is reported but tolerated.
func (h *Handler) RegisterNonCritical(name string, c Checker) {
	h.register(name, c, false)
}

func (h *Handler) register(name string, c Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = registration{check: c, critical: critical}
}

// LivenessHandler reports 200 as long as the process serves requests.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{Status: StatusUp, Timestamp: time.Now().UTC()})
	}
}

// ReadinessHandler runs every registered check concurrently.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		code := http.StatusOK
		if resp.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeResponse(w, code, resp)
	}
}

// Check evaluates all registered dependencies.
func (h *Handler) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	regs := make(map[string]registration, len(h.checks))
	for k, v := range h.checks {
		regs[k] = v
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(regs))
	)
	for name, reg := range regs {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			res := CheckResult{Status: StatusUp, Critical: reg.critical}
			if err := reg.check(ctx); err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	overall := StatusUp
	for _, res := range results {
		if res.Status != StatusDown {
			continue
		}
		if res.Critical {
			overall = StatusDown
			break
		}
		overall = StatusDegraded
	}

	return Response{Status: overall, Timestamp: time.Now().UTC(), Checks: results}
}

func writeResponse(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
