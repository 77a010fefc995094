// Package handler serves liveness and readiness over HTTP and the standard gRPC health service.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check is one named readiness dependency.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(name string, p Pinger) Check {
	return Check{Name: name, Fn: p.PingContext}
}

// PolicyCheck adapts a PolicyChecker.
func PolicyCheck(name string, p PolicyChecker) Check {
	return Check{Name: name, Fn: p.HealthCheck}
}

// Handler reports liveness and readiness.
type Handler struct {
	checks []Check
}

// NewHandler returns a Handler running checks for readiness.
func NewHandler(checks ...Check) *Handler {
	return &Handler{checks: checks}
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Live always reports ok while the process serves requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, readyResponse{Status: "ok"})
}

// Ready runs every check and answers 503 if any fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	results, ok := h.run(r.Context())
	resp := readyResponse{Status: "ok", Checks: results}
	code := http.StatusOK
	if !ok {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// Healthy reports whether every check passes.
func (h *Handler) Healthy(ctx context.Context) bool {
	_, ok := h.run(ctx)
	return ok
}

func (h *Handler) run(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(h.checks))
	ok := true
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Fn(cctx)
		cancel()
		if err != nil {
			results[c.Name] = "unavailable"
			ok = false
			continue
		}
		results[c.Name] = "ok"
	}
	return results, ok
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
