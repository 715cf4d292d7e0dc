// Package health provides the liveness and readiness endpoints served
// alongside the Prometheus metrics.
//
//   - /healthz — liveness; returns 200 with the process uptime.
//   - /readyz  — readiness; returns 200 only while every registered probe
//     passes (Discord gateway up, providers constructed).
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe checks one dependency. A nil return means healthy.
type Probe func(ctx context.Context) error

// Handler serves the health endpoints. Probes are registered before the
// HTTP server starts; the handler is then safe for concurrent use.
type Handler struct {
	started time.Time
	names   []string
	probes  map[string]Probe
}

// NewHandler creates an empty Handler. Probes are added with [Handler.AddProbe].
func NewHandler() *Handler {
	return &Handler{
		started: time.Now(),
		probes:  make(map[string]Probe),
	}
}

// AddProbe registers a named readiness probe. Probes run in registration
// order on each /readyz request.
func (h *Handler) AddProbe(name string, p Probe) {
	h.names = append(h.names, name)
	h.probes[name] = p
}

type status struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Probes map[string]string `json:"probes,omitempty"`
}

// Healthz reports liveness. A process that can serve HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, status{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Readyz reports readiness: 200 only when every probe passes, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := status{
		Status: "ok",
		Probes: make(map[string]string, len(h.names)),
	}
	code := http.StatusOK

	for _, name := range h.names {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := h.probes[name](ctx)
		cancel()

		if err != nil {
			res.Probes[name] = "fail: " + err.Error()
			res.Status = "fail"
			code = http.StatusServiceUnavailable
		} else {
			res.Probes[name] = "ok"
		}
	}

	writeJSON(w, code, res)
}

// Register adds the health routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
